// Package notify delivers user-facing notifications to the booking
// application. Delivery is best effort by contract; callers never couple a
// financial transition to a notification outcome.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/config"
)

// HTTPNotifier posts notifications to the booking application's internal
// dispatch endpoint.
type HTTPNotifier struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPNotifier(cfg config.NotifierConfig, logger *slog.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

func (n *HTTPNotifier) Send(ctx context.Context, notification application.Notification) error {
	payload, err := json.Marshal(map[string]any{
		"user_id": notification.UserID,
		"title":   notification.Title,
		"message": notification.Message,
		"data":    notification.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/internal/notifications", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification dispatch returned %d", resp.StatusCode)
	}
	return nil
}

// Noop is used when no notification endpoint is configured.
type Noop struct{}

func (Noop) Send(ctx context.Context, n application.Notification) error {
	return nil
}
