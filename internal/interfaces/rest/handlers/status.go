package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ssekandi/safiri-payments/internal/interfaces/rest"
)

type StatusResponse struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Updated bool   `json:"updated"`
}

// HandleStatus checks the current status of a transaction by provider token
// or record id, refreshing it from the provider when still in flight.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	result, err := h.statusService.Check(r.Context(), ref)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, StatusResponse{
		Kind:    string(result.Kind),
		ID:      result.ID,
		Status:  string(result.Status),
		Message: result.Message,
		Updated: result.Updated,
	})
}
