package handlers

import (
	"net/http"

	"github.com/ssekandi/safiri-payments/internal/application/services"
	"github.com/ssekandi/safiri-payments/internal/interfaces/rest"
)

type RefundRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
	BookingID string `json:"booking_id"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required"`

	// Optional seat-change context. When present the refund may not exceed
	// the value of the removed seats.
	SeatsRemoved int   `json:"seats_removed" validate:"omitempty,gt=0"`
	PricePerSeat int64 `json:"price_per_seat" validate:"omitempty,gt=0"`
}

type RefundResponse struct {
	RefundID    string `json:"refund_id"`
	RefundToken string `json:"refund_token,omitempty"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	Message     string `json:"message,omitempty"`
}

// HandleRefund initiates a reversal against a completed payment.
func (h *Handlers) HandleRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if err := h.decode(r, &req); err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	result, err := h.refundService.Initiate(r.Context(), services.RefundCommand{
		PaymentID:    req.PaymentID,
		BookingID:    req.BookingID,
		Amount:       req.Amount,
		Reason:       req.Reason,
		SeatsRemoved: req.SeatsRemoved,
		PricePerSeat: req.PricePerSeat,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	status := http.StatusCreated
	if result.Status.IsTerminal() {
		// Declined upstream; the record exists but no money is moving.
		status = http.StatusOK
	}

	rest.WriteJSON(w, status, RefundResponse{
		RefundID:    result.RefundID,
		RefundToken: result.RefundToken,
		Status:      string(result.Status),
		Type:        string(result.Type),
		Message:     result.Message,
	})
}
