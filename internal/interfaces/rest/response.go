// Package rest carries the HTTP surface: the response envelope, the command
// handlers and the provider webhook receivers.
package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ssekandi/safiri-payments/internal/application"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}
	if response.Success {
		response.Data = data
	} else if apiErr, ok := data.(*APIError); ok {
		response.Error = apiErr
	}

	_ = json.NewEncoder(w).Encode(response)
}

// WriteError maps a service error onto the envelope. Unknown errors are
// reported as INTERNAL_ERROR without leaking their text to the caller.
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	if svcErr, ok := application.IsServiceError(err); ok {
		if svcErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error("request failed", "code", svcErr.Code, "error", err)
		}
		WriteJSON(w, svcErr.HTTPStatus, &APIError{
			Code:    svcErr.Code,
			Message: svcErr.Message,
		})
		return
	}

	logger.Error("request failed with unclassified error", "error", err)
	WriteJSON(w, http.StatusInternalServerError, &APIError{
		Code:    application.ErrCodeInternal,
		Message: "An internal error occurred",
	})
}
