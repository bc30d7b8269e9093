// Package response defines the envelope every API reply is wrapped in.
package response

import (
	"net/http"

	"github.com/yourname/focustracker/internal"
)

// APIResponse carries either data (with optional meta) or an error.
type APIResponse struct {
	Data  interface{}        `json:"data,omitempty"`
	Meta  map[string]any     `json:"meta,omitempty"`
	Error *internal.AppError `json:"error,omitempty"`
}

func Success(data interface{}, meta map[string]any) APIResponse {
	return APIResponse{Data: data, Meta: meta}
}

func failure(status int, msg string) APIResponse {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return APIResponse{Error: internal.NewAppError(status, msg)}
}

func BadRequest(msg string) APIResponse    { return failure(http.StatusBadRequest, msg) }
func Unauthorized(msg string) APIResponse  { return failure(http.StatusUnauthorized, msg) }
func NotFound(msg string) APIResponse      { return failure(http.StatusNotFound, msg) }
func InternalError(msg string) APIResponse { return failure(http.StatusInternalServerError, msg) }

func NewAppError(status int, msg string) APIResponse {
	return failure(status, msg)
}
