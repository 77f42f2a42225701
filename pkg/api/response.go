// Package api defines the JSON envelope every HTTP response uses.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "savethespice-backend/internal/errors"
)

// Response is the envelope of every JSON body.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes data in a success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{Success: true, Data: data})
}

// NoContent answers 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes a failure envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	write(w, status, Response{Error: &ErrorInfo{Code: code, Message: message}})
}

// FromError maps err to its status and writes a failure envelope. Internal details of
// foreign errors are not exposed.
func FromError(w http.ResponseWriter, err error) {
	var unified *appErrors.UnifiedError
	if errors.As(err, &unified) {
		status := unified.HTTPStatusCode()
		msg := unified.Message
		if status >= 500 && unified.Type == appErrors.ErrorTypeInternal {
			msg = "internal server error"
		}
		Error(w, status, string(unified.Code), msg)
		return
	}
	Error(w, http.StatusInternalServerError, string(appErrors.CodeInternalError), "internal server error")
}

func write(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
