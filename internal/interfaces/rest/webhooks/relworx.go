package webhooks

import (
	"net/http"

	"github.com/ssekandi/safiri-payments/internal/application/services"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

// relworxCallback is the aggregator's completion notice. internal_reference
// is the token it issued at submission; customer_reference is ours.
type relworxCallback struct {
	Status               string `json:"status"`
	Message              string `json:"message"`
	CustomerReference    string `json:"customer_reference"`
	InternalReference    string `json:"internal_reference"`
	TransactionReference string `json:"transaction_reference"`
	TransactionStatus    string `json:"transaction_status"`
	ProviderTransaction  string `json:"provider_transaction_id"`
}

func (wh *Webhooks) HandleRelworx(w http.ResponseWriter, r *http.Request) {
	var cb relworxCallback
	body, ok := wh.readBody(w, r, &cb)
	if !ok {
		return
	}

	ref := firstNonEmpty(cb.InternalReference, cb.TransactionReference, cb.CustomerReference)
	status := firstNonEmpty(cb.TransactionStatus, cb.Status)

	wh.apply(w, r, domain.ProviderRelworx, ref, services.Signal{
		Target:         provider.MapRelworxStatus(status),
		ProviderStatus: status,
		Reason:         cb.Message,
		FinancialTxID:  cb.ProviderTransaction,
		Raw:            body,
	})
}
