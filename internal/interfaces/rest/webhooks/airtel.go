package webhooks

import (
	"net/http"

	"github.com/ssekandi/safiri-payments/internal/application/services"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

// airtelCallback is the transaction wrapper Airtel posts on completion.
// status_code carries the TS/TF/TIP code; older deliveries used status.
type airtelCallback struct {
	Transaction struct {
		ID            string `json:"id"`
		AirtelMoneyID string `json:"airtel_money_id"`
		Status        string `json:"status"`
		StatusCode    string `json:"status_code"`
		Message       string `json:"message"`
	} `json:"transaction"`
}

func (wh *Webhooks) HandleAirtel(w http.ResponseWriter, r *http.Request) {
	var cb airtelCallback
	body, ok := wh.readBody(w, r, &cb)
	if !ok {
		return
	}

	tx := cb.Transaction
	status := firstNonEmpty(tx.StatusCode, tx.Status)

	wh.apply(w, r, domain.ProviderAirtel, tx.ID, services.Signal{
		Target:         provider.MapAirtelStatus(status),
		ProviderStatus: status,
		Reason:         tx.Message,
		FinancialTxID:  tx.AirtelMoneyID,
		Raw:            body,
	})
}
