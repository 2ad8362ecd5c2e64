package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ssekandi/safiri-payments/internal/config"
	"github.com/ssekandi/safiri-payments/internal/domain"
)

// MTNClient talks to the MoMo Open API. Collections and disbursements are
// separate products with separate OAuth tokens; both are cached until
// shortly before expiry.
type MTNClient struct {
	cfg        config.MTNConfig
	httpClient *http.Client

	mu      sync.Mutex
	tokens  map[string]mtnToken
	refresh singleflight.Group
}

type mtnToken struct {
	value     string
	expiresAt time.Time
}

func NewMTNClient(cfg config.MTNConfig) *MTNClient {
	return &MTNClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		tokens: make(map[string]mtnToken),
	}
}

func (c *MTNClient) Name() domain.Provider {
	return domain.ProviderMTN
}

// accessToken returns the cached token for a product or refreshes it. The
// round trip runs outside the cache lock, and singleflight collapses
// concurrent refreshes into one request per product, so a hung token
// endpoint never serializes unrelated calls behind the mutex.
func (c *MTNClient) accessToken(ctx context.Context, product string) (string, error) {
	c.mu.Lock()
	if tok, ok := c.tokens[product]; ok && time.Now().Before(tok.expiresAt) {
		c.mu.Unlock()
		return tok.value, nil
	}
	c.mu.Unlock()

	v, err, _ := c.refresh.Do(product, func() (any, error) {
		return c.fetchToken(ctx, product)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *MTNClient) fetchToken(ctx context.Context, product string) (string, error) {
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.APIUser + ":" + c.cfg.APIKey))
	url := fmt.Sprintf("%s/%s/token/", c.cfg.BaseURL, product)
	headers := map[string]string{
		"Authorization":             "Basic " + basic,
		"Ocp-Apim-Subscription-Key": c.cfg.SubscriptionKey,
	}

	status, body, err := doJSON(ctx, c.httpClient, http.MethodPost, url, headers, nil)
	if err != nil {
		return "", &Error{Provider: domain.ProviderMTN, Op: "token", Message: "token request failed", Err: err}
	}
	if status != http.StatusOK {
		return "", &Error{Provider: domain.ProviderMTN, Op: "token", StatusCode: status, Message: string(body)}
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &Error{Provider: domain.ProviderMTN, Op: "token", Message: "bad token response", Err: err}
	}

	c.mu.Lock()
	c.tokens[product] = mtnToken{
		value:     resp.AccessToken,
		expiresAt: time.Now().Add(time.Duration(resp.ExpiresIn-60) * time.Second),
	}
	c.mu.Unlock()
	return resp.AccessToken, nil
}

func (c *MTNClient) productHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization":             "Bearer " + token,
		"Ocp-Apim-Subscription-Key": c.cfg.SubscriptionKey,
		"X-Target-Environment":      c.cfg.TargetEnv,
	}
}

type mtnError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// submit drives requesttopay, transfer and refund, which share the MoMo
// submission shape: a caller-generated X-Reference-Id becomes the provider
// token, and 202 Accepted acknowledges the submission.
func (c *MTNClient) submit(ctx context.Context, product, endpoint string, payload any) (*Result, error) {
	token, err := c.accessToken(ctx, product)
	if err != nil {
		return nil, err
	}

	reference := uuid.New().String()
	headers := c.productHeaders(token)
	headers["X-Reference-Id"] = reference
	headers["X-Callback-Url"] = c.cfg.CallbackURL

	url := fmt.Sprintf("%s/%s/v1_0/%s", c.cfg.BaseURL, product, endpoint)
	status, body, err := doJSON(ctx, c.httpClient, http.MethodPost, url, headers, payload)
	if err != nil {
		return nil, &Error{Provider: domain.ProviderMTN, Op: endpoint, Message: "request failed", Err: err}
	}

	switch {
	case status == http.StatusAccepted:
		return &Result{Success: true, Token: reference, Raw: body}, nil
	case status >= 400 && status < 500:
		var mErr mtnError
		_ = json.Unmarshal(body, &mErr)
		msg := firstNonEmpty(mErr.Message, mErr.Code, string(body))
		return &Result{Success: false, Message: msg, Raw: body}, nil
	default:
		return nil, &Error{Provider: domain.ProviderMTN, Op: endpoint, StatusCode: status, Message: string(body)}
	}
}

type mtnPaymentBody struct {
	Amount       string   `json:"amount"`
	Currency     string   `json:"currency"`
	ExternalID   string   `json:"externalId"`
	Payer        *mtnUser `json:"payer,omitempty"`
	Payee        *mtnUser `json:"payee,omitempty"`
	PayerMessage string   `json:"payerMessage"`
	PayeeNote    string   `json:"payeeNote"`
}

type mtnUser struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

func (c *MTNClient) Payin(ctx context.Context, req PayinRequest) (*Result, error) {
	return c.submit(ctx, "collection", "requesttopay", mtnPaymentBody{
		Amount:       strconv.FormatInt(req.Amount, 10),
		Currency:     req.Currency,
		ExternalID:   req.Reference,
		Payer:        &mtnUser{PartyIDType: "MSISDN", PartyID: req.Phone},
		PayerMessage: req.Reason,
		PayeeNote:    req.Reason,
	})
}

func (c *MTNClient) Payout(ctx context.Context, req PayoutRequest) (*Result, error) {
	return c.submit(ctx, "disbursement", "transfer", mtnPaymentBody{
		Amount:       strconv.FormatInt(req.Amount, 10),
		Currency:     req.Currency,
		ExternalID:   req.Reference,
		Payee:        &mtnUser{PartyIDType: "MSISDN", PartyID: req.Phone},
		PayerMessage: req.Reason,
		PayeeNote:    req.Reason,
	})
}

func (c *MTNClient) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	return c.submit(ctx, "disbursement", "refund", struct {
		Amount              string `json:"amount"`
		Currency            string `json:"currency"`
		ExternalID          string `json:"externalId"`
		PayerMessage        string `json:"payerMessage"`
		PayeeNote           string `json:"payeeNote"`
		ReferenceIDToRefund string `json:"referenceIdToRefund"`
	}{
		Amount:              strconv.FormatInt(req.Amount, 10),
		Currency:            req.Currency,
		ExternalID:          req.Reference,
		PayerMessage:        req.Reason,
		PayeeNote:           req.Reason,
		ReferenceIDToRefund: req.OriginalToken,
	})
}

// mtnStatusBody tolerates the reason field arriving either as an object or
// a bare string, which varies across MoMo API versions.
type mtnStatusBody struct {
	Amount                 string          `json:"amount"`
	Currency               string          `json:"currency"`
	FinancialTransactionID string          `json:"financialTransactionId"`
	ExternalID             string          `json:"externalId"`
	Status                 string          `json:"status"`
	Reason                 json.RawMessage `json:"reason"`
}

func (b mtnStatusBody) reason() string {
	if len(b.Reason) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(b.Reason, &asString); err == nil {
		return asString
	}
	var asObject mtnError
	if err := json.Unmarshal(b.Reason, &asObject); err == nil {
		return firstNonEmpty(asObject.Message, asObject.Code)
	}
	return string(b.Reason)
}

func (c *MTNClient) CheckStatus(ctx context.Context, kind Kind, token string) (*StatusInfo, error) {
	product, endpoint := "collection", "requesttopay"
	switch kind {
	case KindPayout:
		product, endpoint = "disbursement", "transfer"
	case KindRefund:
		product, endpoint = "disbursement", "refund"
	}

	authToken, err := c.accessToken(ctx, product)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/v1_0/%s/%s", c.cfg.BaseURL, product, endpoint, token)
	status, body, err := doJSON(ctx, c.httpClient, http.MethodGet, url, c.productHeaders(authToken), nil)
	if err != nil {
		return nil, &Error{Provider: domain.ProviderMTN, Op: "status", Message: "request failed", Err: err}
	}
	if status != http.StatusOK {
		return nil, &Error{Provider: domain.ProviderMTN, Op: "status", StatusCode: status, Message: string(body)}
	}

	var sb mtnStatusBody
	if err := json.Unmarshal(body, &sb); err != nil {
		return nil, &Error{Provider: domain.ProviderMTN, Op: "status", Message: "bad status response", Err: err}
	}

	amount, _ := strconv.ParseInt(sb.Amount, 10, 64)
	return &StatusInfo{
		ProviderStatus: sb.Status,
		Reason:         sb.reason(),
		Amount:         amount,
		Currency:       sb.Currency,
		FinancialTxID:  sb.FinancialTransactionID,
		Raw:            body,
	}, nil
}
