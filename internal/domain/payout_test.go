package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssekandi/safiri-payments/internal/domain"
)

func failedPayout(t *testing.T) *domain.Payout {
	t.Helper()
	p, err := domain.NewPayout("po-1", "pay-1", "bk-1", "drv-1", 10000, "UGX", domain.ProviderMTN, "256772123456", "trip fare")
	require.NoError(t, err)
	p.Status = domain.StatusFailed
	p.CreatedAt = time.Now().Add(-time.Hour)
	return p
}

func TestPayoutCanRetry(t *testing.T) {
	now := time.Now()

	t.Run("failed payout past cooldown is retryable", func(t *testing.T) {
		p := failedPayout(t)
		assert.NoError(t, p.CanRetry(now))
	})

	t.Run("processing payout is not retryable", func(t *testing.T) {
		p := failedPayout(t)
		p.Status = domain.StatusProcessing
		assert.ErrorIs(t, p.CanRetry(now), domain.ErrPayoutNotRetryable)
	})

	t.Run("exhausted payout is not retryable", func(t *testing.T) {
		p := failedPayout(t)
		p.MaxRetriesReached = true
		assert.ErrorIs(t, p.CanRetry(now), domain.ErrPayoutNotRetryable)
	})

	t.Run("retry ceiling is enforced", func(t *testing.T) {
		p := failedPayout(t)
		p.RetryCount = domain.MaxPayoutRetries
		assert.ErrorIs(t, p.CanRetry(now), domain.ErrMaxRetriesReached)
	})

	t.Run("cooldown counts from creation", func(t *testing.T) {
		p := failedPayout(t)
		p.CreatedAt = now.Add(-time.Minute)
		assert.ErrorIs(t, p.CanRetry(now), domain.ErrRetryCooldownActive)
	})

	t.Run("cooldown counts from the last retry when later", func(t *testing.T) {
		p := failedPayout(t)
		last := now.Add(-2 * time.Minute)
		p.LastRetryAt = &last
		p.RetryCount = 1
		assert.ErrorIs(t, p.CanRetry(now), domain.ErrRetryCooldownActive)

		older := now.Add(-10 * time.Minute)
		p.LastRetryAt = &older
		assert.NoError(t, p.CanRetry(now))
	})
}

func TestPayoutRecordRetry(t *testing.T) {
	p := failedPayout(t)
	p.ProviderToken = "tok-old"
	now := time.Now()

	p.RecordRetry("tok-new", "network timeout", now)

	assert.Equal(t, 1, p.RetryCount)
	assert.Equal(t, domain.StatusProcessing, p.Status)
	assert.Equal(t, "tok-new", p.ProviderToken)
	require.Len(t, p.RetryHistory, 1)
	assert.Equal(t, 1, p.RetryHistory[0].Attempt)
	assert.Equal(t, "tok-old", p.RetryHistory[0].PreviousToken)
	assert.Equal(t, "tok-new", p.RetryHistory[0].NewToken)
	assert.Equal(t, "network timeout", p.RetryHistory[0].Reason)
}

func TestPayoutMarkExhausted(t *testing.T) {
	p := failedPayout(t)
	p.RetryCount = domain.MaxPayoutRetries

	p.MarkExhausted()

	assert.Equal(t, domain.StatusFailed, p.Status)
	assert.True(t, p.MaxRetriesReached)
	assert.ErrorIs(t, p.CanRetry(time.Now()), domain.ErrPayoutNotRetryable)
}
