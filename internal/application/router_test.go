package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

type stubClient struct {
	name domain.Provider
}

func (c *stubClient) Name() domain.Provider { return c.name }
func (c *stubClient) Payin(ctx context.Context, req provider.PayinRequest) (*provider.Result, error) {
	return &provider.Result{Success: true}, nil
}
func (c *stubClient) Payout(ctx context.Context, req provider.PayoutRequest) (*provider.Result, error) {
	return &provider.Result{Success: true}, nil
}
func (c *stubClient) Refund(ctx context.Context, req provider.RefundRequest) (*provider.Result, error) {
	return &provider.Result{Success: true}, nil
}
func (c *stubClient) CheckStatus(ctx context.Context, kind provider.Kind, token string) (*provider.StatusInfo, error) {
	return &provider.StatusInfo{}, nil
}

func newTestRouter(force bool) *application.ProviderRouter {
	return application.NewProviderRouter(force,
		&stubClient{name: domain.ProviderMTN},
		&stubClient{name: domain.ProviderAirtel},
		&stubClient{name: domain.ProviderRelworx},
	)
}

func TestProviderRouterSelect(t *testing.T) {
	const mtnNumber = "256772123456"
	const airtelNumber = "256702123456"
	const unknownNumber = "256712123456"

	t.Run("force flag overrides everything", func(t *testing.T) {
		r := newTestRouter(true)

		p, err := r.Select(mtnNumber, domain.ProviderMTN)
		require.NoError(t, err)
		assert.Equal(t, domain.ProviderRelworx, p)

		p, err = r.Select(unknownNumber, "")
		require.NoError(t, err)
		assert.Equal(t, domain.ProviderRelworx, p)
	})

	t.Run("explicit provider validated against the number", func(t *testing.T) {
		r := newTestRouter(false)

		p, err := r.Select(mtnNumber, domain.ProviderMTN)
		require.NoError(t, err)
		assert.Equal(t, domain.ProviderMTN, p)

		_, err = r.Select(mtnNumber, domain.ProviderAirtel)
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeWrongProvider, svcErr.Code)
	})

	t.Run("aggregator accepted for any supported network", func(t *testing.T) {
		r := newTestRouter(false)

		p, err := r.Select(mtnNumber, domain.ProviderRelworx)
		require.NoError(t, err)
		assert.Equal(t, domain.ProviderRelworx, p)

		p, err = r.Select(airtelNumber, domain.ProviderRelworx)
		require.NoError(t, err)
		assert.Equal(t, domain.ProviderRelworx, p)
	})

	t.Run("unknown provider name rejected", func(t *testing.T) {
		r := newTestRouter(false)

		_, err := r.Select(mtnNumber, domain.Provider("mpesa"))
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeInvalidInput, svcErr.Code)
	})

	t.Run("network inferred when no provider given", func(t *testing.T) {
		r := newTestRouter(false)

		p, err := r.Select(mtnNumber, "")
		require.NoError(t, err)
		assert.Equal(t, domain.ProviderMTN, p)

		p, err = r.Select(airtelNumber, "")
		require.NoError(t, err)
		assert.Equal(t, domain.ProviderAirtel, p)
	})

	t.Run("unsupported prefix rejected", func(t *testing.T) {
		r := newTestRouter(false)

		_, err := r.Select(unknownNumber, "")
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeUnsupportedNumber, svcErr.Code)
	})
}

func TestProviderRouterFor(t *testing.T) {
	r := newTestRouter(false)

	c, err := r.For(domain.ProviderAirtel)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderAirtel, c.Name())

	_, err = r.For(domain.Provider("mpesa"))
	assert.Error(t, err)
}
