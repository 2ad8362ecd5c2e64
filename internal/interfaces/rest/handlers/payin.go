package handlers

import (
	"net/http"

	"github.com/ssekandi/safiri-payments/internal/application/services"
	"github.com/ssekandi/safiri-payments/internal/interfaces/rest"
)

type PayinRequest struct {
	BookingID      string `json:"booking_id" validate:"required"`
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	Provider       string `json:"provider" validate:"omitempty,oneof=mtn airtel relworx"`
	PhoneNumber    string `json:"phone_number" validate:"required"`
	IdempotencyKey string `json:"idempotency_key" validate:"required"`
	Reason         string `json:"reason"`
}

type PayinResponse struct {
	PaymentID        string `json:"payment_id"`
	TransactionToken string `json:"transaction_token,omitempty"`
	Status           string `json:"status"`
	Message          string `json:"message,omitempty"`
	AlreadyExisted   bool   `json:"already_existed,omitempty"`
}

// HandlePayin initiates a passenger collection for a booking.
func (h *Handlers) HandlePayin(w http.ResponseWriter, r *http.Request) {
	var req PayinRequest
	if err := h.decode(r, &req); err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	result, err := h.payinService.Initiate(r.Context(), services.PayinCommand{
		BookingID:      req.BookingID,
		Amount:         req.Amount,
		Provider:       req.Provider,
		PhoneNumber:    req.PhoneNumber,
		IdempotencyKey: req.IdempotencyKey,
		Reason:         req.Reason,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	status := http.StatusCreated
	if result.AlreadyExisted {
		status = http.StatusOK
	}

	rest.WriteJSON(w, status, PayinResponse{
		PaymentID:        result.PaymentID,
		TransactionToken: result.TransactionToken,
		Status:           string(result.Status),
		Message:          result.Message,
		AlreadyExisted:   result.AlreadyExisted,
	})
}
