package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/faciam-dev/docmeta/internal/huma"
	"github.com/faciam-dev/docmeta/internal/logger"
	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

// apiError maps store and validation errors onto status errors. Anything
// unexpected is logged and reported as a 500 without internals.
func apiError(op string, err error) error {
	var ve *schema.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ve):
		return huma.ValidationFailed(ve)
	case errors.Is(err, docpath.ErrInvalidName):
		return huma.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, store.ErrExists):
		return huma.Error409Conflict(err.Error())
	}
	logger.L.Error(op, "err", err)
	return huma.Error500InternalServerError(op + " failed")
}

func writeError(w http.ResponseWriter, err error) { huma.WriteError(w, err) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
