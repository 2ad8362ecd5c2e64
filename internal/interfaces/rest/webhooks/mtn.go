package webhooks

import (
	"encoding/json"
	"net/http"

	"github.com/ssekandi/safiri-payments/internal/application/services"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

// mtnCallback mirrors the requesttopay/transfer resource MoMo delivers to
// the callback URL. The reason field arrives as an object or a bare string
// depending on API version.
type mtnCallback struct {
	ReferenceID            string          `json:"referenceId"`
	ExternalID             string          `json:"externalId"`
	Status                 string          `json:"status"`
	FinancialTransactionID string          `json:"financialTransactionId"`
	Reason                 json.RawMessage `json:"reason"`
}

func (c mtnCallback) reason() string {
	if len(c.Reason) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(c.Reason, &asString); err == nil {
		return asString
	}
	var asObject struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(c.Reason, &asObject); err == nil {
		return firstNonEmpty(asObject.Message, asObject.Code)
	}
	return string(c.Reason)
}

func (wh *Webhooks) HandleMTN(w http.ResponseWriter, r *http.Request) {
	var cb mtnCallback
	body, ok := wh.readBody(w, r, &cb)
	if !ok {
		return
	}

	// The reference id we generated at submission is the stored token. Some
	// deliveries only carry it in the header, some only carry externalId.
	ref := firstNonEmpty(cb.ReferenceID, r.Header.Get("X-Reference-Id"), cb.ExternalID)

	wh.apply(w, r, domain.ProviderMTN, ref, services.Signal{
		Target:         provider.MapMTNStatus(cb.Status),
		ProviderStatus: cb.Status,
		Reason:         cb.reason(),
		FinancialTxID:  cb.FinancialTransactionID,
		Raw:            body,
	})
}
