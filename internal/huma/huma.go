// Package huma re-exports the parts of huma used by the handlers and adds the
// status errors shared by huma operations and plain chi routes.
package huma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	base "github.com/danielgtaylor/huma/v2"

	"github.com/faciam-dev/docmeta/pkg/schema"
)

type (
	API         = base.API
	Operation   = base.Operation
	StatusError = base.StatusError
	ErrorDetail = base.ErrorDetail
)

var (
	Error400BadRequest          = base.Error400BadRequest
	Error404NotFound            = base.Error404NotFound
	Error409Conflict            = base.Error409Conflict
	Error500InternalServerError = base.Error500InternalServerError
	Error503ServiceUnavailable  = base.Error503ServiceUnavailable
	NewError                    = base.NewError
)

// Register wraps huma.Register to expose through this package.
func Register[I, O any](api API, op Operation, handler func(context.Context, *I) (*O, error)) {
	base.Register[I, O](api, op, handler)
}

// Error422 returns a 422 status error with field location information.
func Error422(field, msg string) StatusError {
	return base.NewError(http.StatusUnprocessableEntity, msg, &ErrorDetail{Location: field, Message: msg})
}

// ValidationFailed reports every field of ve at body.<field>, so clients can
// point at the inputs to fix.
func ValidationFailed(ve *schema.ValidationError) StatusError {
	details := make([]error, len(ve.Fields))
	for i, f := range ve.Fields {
		details[i] = &ErrorDetail{Location: "body." + f.Field, Message: f.Label + ": " + f.Reason, Value: f.Field}
	}
	return base.NewError(http.StatusUnprocessableEntity, "document failed validation", details...)
}

// WriteError renders err as a problem document for handlers mounted on the
// router directly. Errors that carry no status become a 500.
func WriteError(w http.ResponseWriter, err error) {
	var se StatusError
	if !errors.As(err, &se) {
		se = Error500InternalServerError(err.Error())
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(se.GetStatus())
	_ = json.NewEncoder(w).Encode(se)
}
