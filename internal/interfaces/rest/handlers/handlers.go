// Package handlers exposes the command endpoints consumed by the booking
// application.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/application/services"
	"github.com/ssekandi/safiri-payments/internal/interfaces/rest"
)

type Handlers struct {
	payinService  *services.PayinService
	payoutService *services.PayoutService
	refundService *services.RefundService
	statusService *services.StatusService
	validate      *validator.Validate
	logger        *slog.Logger
}

func NewHandlers(
	payinService *services.PayinService,
	payoutService *services.PayoutService,
	refundService *services.RefundService,
	statusService *services.StatusService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		payinService:  payinService,
		payoutService: payoutService,
		refundService: refundService,
		statusService: statusService,
		validate:      validator.New(),
		logger:        logger,
	}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Post("/payments", h.HandlePayin)
	r.Post("/payouts", h.HandlePayout)
	r.Post("/refunds", h.HandleRefund)
	r.Get("/transactions/{ref}/status", h.HandleStatus)
	r.Get("/health", h.HandleHealth)
}

// decode reads and validates a JSON request body.
func (h *Handlers) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return application.NewInvalidInputError(fmt.Errorf("invalid request body: %w", err))
	}
	if err := h.validate.Struct(dst); err != nil {
		return application.NewInvalidInputError(err)
	}
	return nil
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
