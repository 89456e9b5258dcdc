package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// ErrNotFound matches API errors with status 404.
var ErrNotFound = errors.New("not found")

// ErrorDetail is one entry of a problem document's error list.
type ErrorDetail struct {
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Title  string
	Detail string
	Errors []ErrorDetail
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Errors) > 0 {
		parts := make([]string, len(e.Errors))
		for i, d := range e.Errors {
			parts[i] = d.Message
			if d.Location != "" {
				parts[i] = d.Location + ": " + d.Message
			}
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return fmt.Sprintf("api error %d: %s", e.Status, msg)
}

// Is reports whether target is ErrNotFound and e is a 404.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

func restyErr(resp *resty.Response) error {
	e := &APIError{Status: resp.StatusCode()}
	var body struct {
		Title  string        `json:"title"`
		Detail string        `json:"detail"`
		Errors []ErrorDetail `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		e.Title, e.Detail, e.Errors = body.Title, body.Detail, body.Errors
	} else if s := strings.TrimSpace(string(resp.Body())); s != "" && len(s) < 512 {
		e.Detail = s
	}
	if e.Detail == "" && e.Title == "" {
		e.Detail = resp.Status()
	}
	return e
}
