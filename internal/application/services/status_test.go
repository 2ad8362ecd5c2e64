package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

type statusFixture struct {
	payments *MockPaymentRepository
	payouts  *MockPayoutRepository
	refunds  *MockRefundRepository
	mtn      *MockProviderClient
	service  *StatusService
}

func newStatusFixture() *statusFixture {
	f := &statusFixture{
		payments: NewMockPaymentRepository(),
		payouts:  NewMockPayoutRepository(),
		refunds:  NewMockRefundRepository(),
		mtn:      NewMockProviderClient(domain.ProviderMTN),
	}
	router := application.NewProviderRouter(false, f.mtn,
		NewMockProviderClient(domain.ProviderAirtel),
		NewMockProviderClient(domain.ProviderRelworx),
	)
	reconciler := NewReconciler(f.payments, f.payouts, f.refunds, nil, testLogger())
	f.service = NewStatusService(f.payments, f.payouts, f.refunds, router, reconciler, testLogger())
	return f
}

func (f *statusFixture) seedPayment(t *testing.T, status domain.Status) *domain.Payment {
	t.Helper()
	p, err := domain.NewPayment("pay-1", "bk-1", 15000, "UGX", domain.ProviderMTN, "256772123456", "idem-1")
	require.NoError(t, err)
	p.ProviderToken = "tok-1"
	p.Status = status
	f.payments.Seed(p)
	return p
}

func TestStatusResolve(t *testing.T) {
	f := newStatusFixture()
	f.seedPayment(t, domain.StatusProcessing)

	t.Run("by provider token", func(t *testing.T) {
		r, err := f.service.Resolve(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.Equal(t, provider.KindPayin, r.Kind)
		assert.Equal(t, "pay-1", r.ID())
	})

	t.Run("by record id", func(t *testing.T) {
		r, err := f.service.Resolve(context.Background(), "pay-1")
		require.NoError(t, err)
		assert.Equal(t, "pay-1", r.ID())
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := f.service.Resolve(context.Background(), "nope")
		assert.ErrorIs(t, err, application.ErrNotFound)
	})

	t.Run("empty reference", func(t *testing.T) {
		_, err := f.service.Resolve(context.Background(), "")
		assert.ErrorIs(t, err, application.ErrNotFound)
	})

	t.Run("storage failure surfaces instead of reading as unknown", func(t *testing.T) {
		f := newStatusFixture()
		f.seedPayment(t, domain.StatusProcessing)
		dbErr := errors.New("connection reset by peer")
		f.payments.FindByTokenFn = func(ctx context.Context, token string) (*domain.Payment, error) {
			return nil, dbErr
		}

		_, err := f.service.Resolve(context.Background(), "tok-1")

		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, application.ErrNotFound)
	})
}

func TestStatusCheck(t *testing.T) {
	t.Run("terminal record answers without a provider call", func(t *testing.T) {
		f := newStatusFixture()
		f.seedPayment(t, domain.StatusCompleted)

		called := false
		f.mtn.CheckStatusFn = func(ctx context.Context, kind provider.Kind, token string) (*provider.StatusInfo, error) {
			called = true
			return &provider.StatusInfo{}, nil
		}

		result, err := f.service.Check(context.Background(), "tok-1")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, result.Status)
		assert.False(t, called)
	})

	t.Run("provider completion is applied", func(t *testing.T) {
		f := newStatusFixture()
		f.seedPayment(t, domain.StatusProcessing)
		f.mtn.CheckStatusFn = func(ctx context.Context, kind provider.Kind, token string) (*provider.StatusInfo, error) {
			return &provider.StatusInfo{ProviderStatus: "SUCCESSFUL", FinancialTxID: "fin-1"}, nil
		}

		result, err := f.service.Check(context.Background(), "tok-1")

		require.NoError(t, err)
		assert.True(t, result.Updated)
		assert.Equal(t, domain.StatusCompleted, result.Status)

		stored, err := f.payments.FindByID(context.Background(), "pay-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, stored.Status)
	})

	t.Run("unknown provider status keeps the record open", func(t *testing.T) {
		f := newStatusFixture()
		f.seedPayment(t, domain.StatusProcessing)
		f.mtn.CheckStatusFn = func(ctx context.Context, kind provider.Kind, token string) (*provider.StatusInfo, error) {
			return &provider.StatusInfo{ProviderStatus: "SOMETHING_NEW"}, nil
		}

		result, err := f.service.Check(context.Background(), "tok-1")

		require.NoError(t, err)
		assert.False(t, result.Updated)
		assert.Equal(t, domain.StatusProcessing, result.Status)
	})

	t.Run("unreachable provider degrades to the stored status", func(t *testing.T) {
		f := newStatusFixture()
		f.seedPayment(t, domain.StatusProcessing)
		f.mtn.CheckStatusFn = func(ctx context.Context, kind provider.Kind, token string) (*provider.StatusInfo, error) {
			return nil, &provider.Error{Provider: domain.ProviderMTN, Op: "status", Message: "gateway down"}
		}

		result, err := f.service.Check(context.Background(), "tok-1")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcessing, result.Status)
		assert.Contains(t, result.Message, "last known status")
	})

	t.Run("unknown reference is a 404-class error", func(t *testing.T) {
		f := newStatusFixture()

		_, err := f.service.Check(context.Background(), "nope")

		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeNotFound, svcErr.Code)
	})
}
