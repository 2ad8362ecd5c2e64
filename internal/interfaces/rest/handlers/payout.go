package handlers

import (
	"net/http"

	"github.com/ssekandi/safiri-payments/internal/application/services"
	"github.com/ssekandi/safiri-payments/internal/interfaces/rest"
)

type PayoutRequest struct {
	DriverID    string `json:"driver_id" validate:"required"`
	BookingID   string `json:"booking_id" validate:"required"`
	PaymentID   string `json:"payment_id"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Reason      string `json:"reason"`
}

type PayoutResponse struct {
	PayoutID         string `json:"payout_id"`
	TransactionToken string `json:"transaction_token,omitempty"`
	Status           string `json:"status"`
	Message          string `json:"message,omitempty"`
}

// HandlePayout initiates a driver disbursement.
func (h *Handlers) HandlePayout(w http.ResponseWriter, r *http.Request) {
	var req PayoutRequest
	if err := h.decode(r, &req); err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	result, err := h.payoutService.Initiate(r.Context(), services.PayoutCommand{
		DriverID:    req.DriverID,
		BookingID:   req.BookingID,
		PaymentID:   req.PaymentID,
		Amount:      req.Amount,
		PhoneNumber: req.PhoneNumber,
		Reason:      req.Reason,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, PayoutResponse{
		PayoutID:         result.PayoutID,
		TransactionToken: result.TransactionToken,
		Status:           string(result.Status),
		Message:          result.Message,
	})
}
