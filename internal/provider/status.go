package provider

import (
	"strings"

	"github.com/ssekandi/safiri-payments/internal/domain"
)

// Status mapping is deliberately table-driven and enumerates every known
// token per provider. Anything not enumerated maps to processing -- an
// unrecognized signal must never close out a transaction as completed or
// failed. The token sets mirror current provider documentation, misspellings
// included, and are the single place to amend when the docs change.

var mtnStatusMap = map[string]domain.Status{
	"successful": domain.StatusCompleted,
	"failed":     domain.StatusFailed,
	"rejected":   domain.StatusFailed,
	"timeout":    domain.StatusFailed,
	"pending":    domain.StatusProcessing,
	"ongoing":    domain.StatusProcessing,
	"created":    domain.StatusProcessing,
}

var airtelStatusMap = map[string]domain.Status{
	"ts":          domain.StatusCompleted,
	"success":     domain.StatusCompleted,
	"successful":  domain.StatusCompleted,
	"tf":          domain.StatusFailed,
	"failed":      domain.StatusFailed,
	"fail":        domain.StatusFailed,
	"tip":         domain.StatusProcessing,
	"ta":          domain.StatusProcessing,
	"in_process":  domain.StatusProcessing,
	"in progress": domain.StatusProcessing,
	"initiated":   domain.StatusProcessing,
	"pending":     domain.StatusProcessing,
}

var relworxStatusMap = map[string]domain.Status{
	"success": domain.StatusCompleted,
	// "successfull" is how the aggregator's docs and live callbacks spell it.
	"successfull": domain.StatusCompleted,
	"successful":  domain.StatusCompleted,
	"completed":   domain.StatusCompleted,
	"failed":      domain.StatusFailed,
	"error":       domain.StatusFailed,
	"cancelled":   domain.StatusFailed,
	"reversed":    domain.StatusFailed,
	"pending":     domain.StatusProcessing,
	"processing":  domain.StatusProcessing,
	"in_progress": domain.StatusProcessing,
}

func mapWith(table map[string]domain.Status, raw string) domain.Status {
	if s, ok := table[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return domain.StatusProcessing
}

func MapMTNStatus(raw string) domain.Status {
	return mapWith(mtnStatusMap, raw)
}

func MapAirtelStatus(raw string) domain.Status {
	return mapWith(airtelStatusMap, raw)
}

func MapRelworxStatus(raw string) domain.Status {
	return mapWith(relworxStatusMap, raw)
}

// MapStatus dispatches to the right provider table.
func MapStatus(p domain.Provider, raw string) domain.Status {
	switch p {
	case domain.ProviderMTN:
		return MapMTNStatus(raw)
	case domain.ProviderAirtel:
		return MapAirtelStatus(raw)
	case domain.ProviderRelworx:
		return MapRelworxStatus(raw)
	default:
		return domain.StatusProcessing
	}
}

// Failure reasons that indicate a temporary condition worth resubmitting.
var retryableReasonHints = []string{
	"timeout",
	"timed out",
	"temporary",
	"network",
	"unavailable",
	"internal error",
	"internal processing",
	"try again",
	"busy",
	"could not perform transaction",
}

// Failure reasons that can never succeed on resubmission. Checked first:
// a permanent hint wins over a retryable one.
var permanentReasonHints = []string{
	"invalid msisdn",
	"invalid number",
	"invalid phone",
	"not registered",
	"not found",
	"payee not allowed",
	"payer not allowed",
	"barred",
	"blocked",
	"insufficient funds",
	"not enough funds",
	"limit exceeded",
	"limit breached",
	"account on hold",
}

// IsRetryableFailure decides whether a failed payout should be resubmitted,
// from the provider's failure reason string. Unknown reasons are not
// retried; resubmitting blind risks double disbursement on a provider whose
// decline was actually final.
func IsRetryableFailure(reason string) bool {
	r := strings.ToLower(reason)
	for _, hint := range permanentReasonHints {
		if strings.Contains(r, hint) {
			return false
		}
	}
	for _, hint := range retryableReasonHints {
		if strings.Contains(r, hint) {
			return true
		}
	}
	return false
}
