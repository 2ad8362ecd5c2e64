// Package webhooks receives provider callbacks and pushes them through the
// shared reconciliation path. Receivers are deliberately forgiving: provider
// payloads drift, so references are extracted from every field that has ever
// carried them, and anything we cannot act on is acknowledged rather than
// redelivered forever.
package webhooks

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/application/services"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/interfaces/rest"
)

const maxCallbackBody = 1 << 20

type Webhooks struct {
	status *services.StatusService
	logger *slog.Logger
}

func NewWebhooks(status *services.StatusService, logger *slog.Logger) *Webhooks {
	return &Webhooks{status: status, logger: logger}
}

func (wh *Webhooks) RegisterRoutes(r chi.Router) {
	// MoMo delivers callbacks with PUT, everything else uses POST.
	r.Post("/webhooks/mtn", wh.HandleMTN)
	r.Put("/webhooks/mtn", wh.HandleMTN)
	r.Post("/webhooks/airtel", wh.HandleAirtel)
	r.Post("/webhooks/relworx", wh.HandleRelworx)
}

// readBody reads and parses the callback payload. A malformed body is the
// one case worth a 400: the provider is sending something we will never
// understand, and their delivery logs should show it.
func (wh *Webhooks) readBody(w http.ResponseWriter, r *http.Request, dst any) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), wh.logger)
		return nil, false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		wh.logger.Warn("unparseable webhook payload", "path", r.URL.Path, "error", err)
		rest.WriteError(w, application.NewInvalidInputError(err), wh.logger)
		return nil, false
	}
	return body, true
}

// apply resolves the reference and applies the signal. Unknown transactions
// and conflicting terminal signals are logged and acknowledged with 200;
// failing the delivery would only make the provider retry a callback we can
// never act on.
func (wh *Webhooks) apply(w http.ResponseWriter, r *http.Request, prov domain.Provider, ref string, sig services.Signal) {
	ack := func() {
		rest.WriteJSON(w, http.StatusOK, map[string]string{"received": "ok"})
	}

	if ref == "" {
		wh.logger.Warn("webhook carried no transaction reference", "provider", prov)
		ack()
		return
	}

	resolved, err := wh.status.Resolve(r.Context(), ref)
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			wh.logger.Warn("webhook for unknown transaction", "provider", prov, "reference", ref)
			ack()
			return
		}
		rest.WriteError(w, application.NewInternalError(err), wh.logger)
		return
	}

	if resolved.Provider() != prov {
		wh.logger.Warn("webhook provider does not match stored record",
			"reference", ref,
			"webhook_provider", prov,
			"record_provider", resolved.Provider(),
		)
	}

	applied, err := wh.status.ApplySignal(r.Context(), resolved, sig)
	if err != nil {
		if errors.Is(err, domain.ErrConflictingTerminalState) {
			ack()
			return
		}
		rest.WriteError(w, application.NewInternalError(err), wh.logger)
		return
	}

	wh.logger.Info("webhook processed",
		"provider", prov,
		"kind", resolved.Kind,
		"id", resolved.ID(),
		"target", sig.Target,
		"applied", applied,
	)
	ack()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
