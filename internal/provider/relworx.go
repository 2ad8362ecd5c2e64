package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ssekandi/safiri-payments/internal/config"
	"github.com/ssekandi/safiri-payments/internal/domain"
)

// RelworxClient talks to the aggregator, which fronts both mobile networks
// behind one API keyed by a bearer token and a managed account number.
// Refunds are executed as a send-payment back to the original payer; the
// aggregator has no dedicated reversal endpoint.
type RelworxClient struct {
	cfg        config.RelworxConfig
	httpClient *http.Client
}

func NewRelworxClient(cfg config.RelworxConfig) *RelworxClient {
	return &RelworxClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *RelworxClient) Name() domain.Provider {
	return domain.ProviderRelworx
}

func (c *RelworxClient) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"Accept":        "application/vnd.relworx.v2",
	}
}

type relworxResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	InternalReference string `json:"internal_reference"`
	// Older API revisions reported the reference under a different name.
	TransactionReference string `json:"transaction_reference"`
	Status               string `json:"status"`
	RequestStatus        string `json:"request_status"`
	ProviderTxID         string `json:"provider_transaction_id"`
	Amount               any    `json:"amount"`
	Currency             string `json:"currency"`
}

func (r relworxResponse) reference() string {
	return firstNonEmpty(r.InternalReference, r.TransactionReference)
}

func (r relworxResponse) amountValue() int64 {
	switch v := r.Amount.(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseFloat(v, 64)
		return int64(n)
	default:
		return 0
	}
}

func (c *RelworxClient) send(ctx context.Context, op, path string, payload any) (*Result, error) {
	status, body, err := doJSON(ctx, c.httpClient, http.MethodPost, c.cfg.BaseURL+path, c.headers(), payload)
	if err != nil {
		return nil, &Error{Provider: domain.ProviderRelworx, Op: op, Message: "request failed", Err: err}
	}
	if status >= 500 {
		return nil, &Error{Provider: domain.ProviderRelworx, Op: op, StatusCode: status, Message: string(body)}
	}

	var resp relworxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Provider: domain.ProviderRelworx, Op: op, StatusCode: status, Message: "bad response", Err: err}
	}

	if !resp.Success {
		return &Result{Success: false, Message: resp.Message, Raw: body}, nil
	}
	return &Result{Success: true, Token: resp.reference(), Message: resp.Message, Raw: body}, nil
}

func (c *RelworxClient) Payin(ctx context.Context, req PayinRequest) (*Result, error) {
	return c.send(ctx, "payin", "/api/mobile-money/request-payment", map[string]any{
		"account_no":  c.cfg.AccountNo,
		"reference":   req.Reference,
		"msisdn":      "+" + req.Phone,
		"currency":    req.Currency,
		"amount":      req.Amount,
		"description": req.Reason,
	})
}

func (c *RelworxClient) Payout(ctx context.Context, req PayoutRequest) (*Result, error) {
	return c.send(ctx, "payout", "/api/mobile-money/send-payment", map[string]any{
		"account_no":  c.cfg.AccountNo,
		"reference":   req.Reference,
		"msisdn":      "+" + req.Phone,
		"currency":    req.Currency,
		"amount":      req.Amount,
		"description": req.Reason,
	})
}

func (c *RelworxClient) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	return c.send(ctx, "refund", "/api/mobile-money/send-payment", map[string]any{
		"account_no":  c.cfg.AccountNo,
		"reference":   req.Reference,
		"msisdn":      "+" + req.Phone,
		"currency":    req.Currency,
		"amount":      req.Amount,
		"description": "refund: " + req.Reason,
	})
}

func (c *RelworxClient) CheckStatus(ctx context.Context, _ Kind, token string) (*StatusInfo, error) {
	url := c.cfg.BaseURL + "/api/mobile-money/check-request-status?internal_reference=" + token +
		"&account_no=" + c.cfg.AccountNo

	status, body, err := doJSON(ctx, c.httpClient, http.MethodGet, url, c.headers(), nil)
	if err != nil {
		return nil, &Error{Provider: domain.ProviderRelworx, Op: "status", Message: "request failed", Err: err}
	}
	if status != http.StatusOK {
		return nil, &Error{Provider: domain.ProviderRelworx, Op: "status", StatusCode: status, Message: string(body)}
	}

	var resp relworxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Provider: domain.ProviderRelworx, Op: "status", Message: "bad status response", Err: err}
	}

	return &StatusInfo{
		ProviderStatus: firstNonEmpty(resp.RequestStatus, resp.Status),
		Reason:         resp.Message,
		Amount:         resp.amountValue(),
		Currency:       resp.Currency,
		FinancialTxID:  resp.ProviderTxID,
		Raw:            body,
	}, nil
}
