package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ssekandi/safiri-payments/internal/config"
	"github.com/ssekandi/safiri-payments/internal/domain"
)

// AirtelClient talks to the Airtel Money API using OAuth client
// credentials. Airtel's callbacks are unreliable in practice, so records on
// this provider lean on the fast poller schedule.
type AirtelClient struct {
	cfg        config.AirtelConfig
	httpClient *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	refresh   singleflight.Group
}

func NewAirtelClient(cfg config.AirtelConfig) *AirtelClient {
	return &AirtelClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *AirtelClient) Name() domain.Provider {
	return domain.ProviderAirtel
}

// accessToken returns the cached OAuth token or refreshes it. The round
// trip runs outside the cache lock; singleflight collapses concurrent
// refreshes into a single request.
func (c *AirtelClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.expiresAt) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	v, err, _ := c.refresh.Do("token", func() (any, error) {
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *AirtelClient) fetchToken(ctx context.Context) (string, error) {
	status, body, err := doJSON(ctx, c.httpClient, http.MethodPost, c.cfg.BaseURL+"/auth/oauth2/token", nil, map[string]string{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"grant_type":    "client_credentials",
	})
	if err != nil {
		return "", &Error{Provider: domain.ProviderAirtel, Op: "token", Message: "token request failed", Err: err}
	}
	if status != http.StatusOK {
		return "", &Error{Provider: domain.ProviderAirtel, Op: "token", StatusCode: status, Message: string(body)}
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &Error{Provider: domain.ProviderAirtel, Op: "token", Message: "bad token response", Err: err}
	}

	c.mu.Lock()
	c.token = resp.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn-60) * time.Second)
	c.mu.Unlock()
	return resp.AccessToken, nil
}

func (c *AirtelClient) headers(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
		"X-Country":     c.cfg.Country,
		"X-Currency":    c.cfg.Currency,
		"Accept":        "*/*",
	}
}

// localMSISDN strips the country code; Airtel expects the 9-digit
// subscriber number.
func localMSISDN(msisdn string) string {
	return strings.TrimPrefix(msisdn, "256")
}

// airtelEnvelope is the common {data, status} response wrapper.
type airtelEnvelope struct {
	Data struct {
		Transaction struct {
			ID            string `json:"id"`
			AirtelMoneyID string `json:"airtel_money_id"`
			Status        string `json:"status"`
			StatusCode    string `json:"status_code"`
			Message       string `json:"message"`
		} `json:"transaction"`
	} `json:"data"`
	Status struct {
		Code       string `json:"code"`
		ResultCode string `json:"result_code"`
		Success    bool   `json:"success"`
		Message    string `json:"message"`
	} `json:"status"`
}

func (c *AirtelClient) call(ctx context.Context, op, method, path string, payload any) (*airtelEnvelope, []byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, nil, err
	}

	status, body, err := doJSON(ctx, c.httpClient, method, c.cfg.BaseURL+path, c.headers(token), payload)
	if err != nil {
		return nil, nil, &Error{Provider: domain.ProviderAirtel, Op: op, Message: "request failed", Err: err}
	}
	if status >= 500 {
		return nil, nil, &Error{Provider: domain.ProviderAirtel, Op: op, StatusCode: status, Message: string(body)}
	}

	var env airtelEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, &Error{Provider: domain.ProviderAirtel, Op: op, StatusCode: status, Message: "bad response", Err: err}
	}
	return &env, body, nil
}

func (c *AirtelClient) Payin(ctx context.Context, req PayinRequest) (*Result, error) {
	payload := map[string]any{
		"reference": req.Reason,
		"subscriber": map[string]any{
			"country":  c.cfg.Country,
			"currency": req.Currency,
			"msisdn":   localMSISDN(req.Phone),
		},
		"transaction": map[string]any{
			"amount":   req.Amount,
			"country":  c.cfg.Country,
			"currency": req.Currency,
			"id":       req.Reference,
		},
	}

	env, body, err := c.call(ctx, "payin", http.MethodPost, "/merchant/v1/payments/", payload)
	if err != nil {
		return nil, err
	}
	if !env.Status.Success {
		return &Result{Success: false, Message: env.Status.Message, Raw: body}, nil
	}
	return &Result{
		Success: true,
		Token:   firstNonEmpty(env.Data.Transaction.ID, req.Reference),
		Message: env.Status.Message,
		Raw:     body,
	}, nil
}

func (c *AirtelClient) Payout(ctx context.Context, req PayoutRequest) (*Result, error) {
	payload := map[string]any{
		"payee": map[string]any{
			"msisdn": localMSISDN(req.Phone),
		},
		"reference": req.Reason,
		"transaction": map[string]any{
			"amount": req.Amount,
			"id":     req.Reference,
		},
	}

	env, body, err := c.call(ctx, "payout", http.MethodPost, "/standard/v1/disbursements/", payload)
	if err != nil {
		return nil, err
	}
	if !env.Status.Success {
		return &Result{Success: false, Message: env.Status.Message, Raw: body}, nil
	}
	return &Result{
		Success: true,
		Token:   firstNonEmpty(env.Data.Transaction.ID, req.Reference),
		Message: env.Status.Message,
		Raw:     body,
	}, nil
}

func (c *AirtelClient) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	payload := map[string]any{
		"transaction": map[string]any{
			"airtel_money_id": req.OriginalToken,
		},
	}

	env, body, err := c.call(ctx, "refund", http.MethodPost, "/standard/v1/payments/refund", payload)
	if err != nil {
		return nil, err
	}
	if !env.Status.Success {
		return &Result{Success: false, Message: env.Status.Message, Raw: body}, nil
	}
	return &Result{
		Success: true,
		Token:   firstNonEmpty(env.Data.Transaction.AirtelMoneyID, env.Data.Transaction.ID, req.Reference),
		Message: env.Status.Message,
		Raw:     body,
	}, nil
}

func (c *AirtelClient) CheckStatus(ctx context.Context, kind Kind, token string) (*StatusInfo, error) {
	path := fmt.Sprintf("/standard/v1/payments/%s", token)
	if kind == KindPayout {
		path = fmt.Sprintf("/standard/v1/disbursements/%s", token)
	}

	env, body, err := c.call(ctx, "status", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	tx := env.Data.Transaction
	return &StatusInfo{
		ProviderStatus: firstNonEmpty(tx.Status, tx.StatusCode, env.Status.ResultCode),
		Reason:         firstNonEmpty(tx.Message, env.Status.Message),
		FinancialTxID:  tx.AirtelMoneyID,
		Currency:       c.cfg.Currency,
		Raw:            body,
	}, nil
}
