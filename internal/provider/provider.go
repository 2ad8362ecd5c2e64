// Package provider contains the payment provider adapters. Each adapter
// implements the same capability set -- payin, payout, refund, status check
// -- against its provider's own authentication scheme and wire format, and
// performs exactly one business request per call. Retry policy lives in the
// retry worker, never inside an adapter.
package provider

import (
	"context"
	"encoding/json"

	"github.com/ssekandi/safiri-payments/internal/domain"
)

// PayinRequest asks a provider to collect funds from a passenger's mobile
// money account. Phone numbers arrive pre-normalized (2567XXXXXXXX).
type PayinRequest struct {
	Phone     string
	Amount    int64
	Currency  string
	Reason    string
	Reference string
}

// PayoutRequest asks a provider to disburse funds to a driver.
type PayoutRequest struct {
	Phone     string
	Amount    int64
	Currency  string
	Reason    string
	Reference string
}

// RefundRequest reverses a previously collected payment, identified by the
// provider token of the original payin. Phone is the original payer's
// number; the aggregator needs it because its refunds are outbound
// payments back to the payer.
type RefundRequest struct {
	OriginalToken string
	Phone         string
	Amount        int64
	Currency      string
	Reason        string
	Reference     string
}

// Result is the uniform submission outcome. Business-level failures
// (insufficient funds, bad number) come back as Success=false with a
// message; only transport failures surface as errors.
type Result struct {
	Success bool
	// Token is the provider-assigned transaction token used to correlate
	// callbacks and status checks with this submission.
	Token   string
	Message string
	Raw     json.RawMessage
}

// StatusInfo is a provider's answer to a status check, in the provider's
// native vocabulary. Mapping to the canonical status happens in the status
// mapper, not here.
type StatusInfo struct {
	ProviderStatus string
	Reason         string
	Amount         int64
	Currency       string
	FinancialTxID  string
	Raw            json.RawMessage
}

// Kind tells an adapter which product a token belongs to. MTN and Airtel
// expose separate status endpoints for collections and disbursements; the
// aggregator ignores it.
type Kind string

const (
	KindPayin  Kind = "payin"
	KindPayout Kind = "payout"
	KindRefund Kind = "refund"
)

// Client is the capability set every provider adapter implements.
type Client interface {
	Name() domain.Provider
	Payin(ctx context.Context, req PayinRequest) (*Result, error)
	Payout(ctx context.Context, req PayoutRequest) (*Result, error)
	Refund(ctx context.Context, req RefundRequest) (*Result, error)
	CheckStatus(ctx context.Context, kind Kind, token string) (*StatusInfo, error)
}
