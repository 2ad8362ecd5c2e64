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

type refundFixture struct {
	payments *MockPaymentRepository
	refunds  *MockRefundRepository
	mtn      *MockProviderClient
	watcher  *MockWatcher
	service  *RefundService
}

func newRefundFixture() *refundFixture {
	f := &refundFixture{
		payments: NewMockPaymentRepository(),
		refunds:  NewMockRefundRepository(),
		mtn:      NewMockProviderClient(domain.ProviderMTN),
		watcher:  &MockWatcher{},
	}
	router := application.NewProviderRouter(false, f.mtn,
		NewMockProviderClient(domain.ProviderAirtel),
		NewMockProviderClient(domain.ProviderRelworx),
	)
	f.service = NewRefundService(f.refunds, f.payments, router, f.watcher, testLogger())
	return f
}

func (f *refundFixture) seedCompletedPayment(t *testing.T, amount int64) *domain.Payment {
	t.Helper()
	p, err := domain.NewPayment("pay-1", "bk-1", amount, "UGX", domain.ProviderMTN, "256772123456", "idem-1")
	require.NoError(t, err)
	p.ProviderToken = "tok-1"
	p.Status = domain.StatusCompleted
	f.payments.Seed(p)
	return p
}

func TestRefundInitiate(t *testing.T) {
	t.Run("successful partial refund", func(t *testing.T) {
		f := newRefundFixture()
		f.seedCompletedPayment(t, 30000)

		result, err := f.service.Initiate(context.Background(), RefundCommand{
			PaymentID: "pay-1",
			BookingID: "bk-1",
			Amount:    10000,
			Reason:    "seat removed",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcessing, result.Status)
		assert.Equal(t, domain.RefundTypePartial, result.Type)
		assert.NotEmpty(t, result.RefundToken)

		stored, err := f.refunds.FindByID(context.Background(), result.RefundID)
		require.NoError(t, err)
		assert.Equal(t, result.RefundToken, stored.ProviderToken)

		assert.Equal(t, []string{result.RefundToken}, f.watcher.Watched())
	})

	t.Run("unknown payment", func(t *testing.T) {
		f := newRefundFixture()

		_, err := f.service.Initiate(context.Background(), RefundCommand{
			PaymentID: "missing",
			Amount:    1000,
			Reason:    "x",
		})

		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeNotFound, svcErr.Code)
	})

	t.Run("booking must own the payment", func(t *testing.T) {
		f := newRefundFixture()
		f.seedCompletedPayment(t, 30000)

		_, err := f.service.Initiate(context.Background(), RefundCommand{
			PaymentID: "pay-1",
			BookingID: "bk-other",
			Amount:    1000,
			Reason:    "x",
		})

		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeInvalidInput, svcErr.Code)
	})

	t.Run("seat-change ceiling is enforced", func(t *testing.T) {
		f := newRefundFixture()
		f.seedCompletedPayment(t, 30000)

		// Two seats removed at 10000 each: 25000 exceeds the 20000 ceiling.
		_, err := f.service.Initiate(context.Background(), RefundCommand{
			PaymentID:    "pay-1",
			Amount:       25000,
			Reason:       "seats removed",
			SeatsRemoved: 2,
			PricePerSeat: 10000,
		})

		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeInvalidInput, svcErr.Code)
		assert.ErrorIs(t, err, domain.ErrRefundExceedsCeiling)
	})

	t.Run("refund at the seat ceiling is allowed", func(t *testing.T) {
		f := newRefundFixture()
		f.seedCompletedPayment(t, 30000)

		result, err := f.service.Initiate(context.Background(), RefundCommand{
			PaymentID:    "pay-1",
			Amount:       20000,
			Reason:       "seats removed",
			SeatsRemoved: 2,
			PricePerSeat: 10000,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.RefundTypePartial, result.Type)
	})

	t.Run("non-completed payment conflicts", func(t *testing.T) {
		f := newRefundFixture()
		p := f.seedCompletedPayment(t, 30000)
		p.Status = domain.StatusProcessing
		f.payments.Seed(p)

		_, err := f.service.Initiate(context.Background(), RefundCommand{
			PaymentID: "pay-1",
			Amount:    1000,
			Reason:    "early",
		})

		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeConflict, svcErr.Code)
	})

	t.Run("amount above the payment rejected", func(t *testing.T) {
		f := newRefundFixture()
		f.seedCompletedPayment(t, 30000)

		_, err := f.service.Initiate(context.Background(), RefundCommand{
			PaymentID: "pay-1",
			Amount:    30001,
			Reason:    "too much",
		})

		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeInvalidInput, svcErr.Code)
	})

	t.Run("provider decline closes the refund as failed", func(t *testing.T) {
		f := newRefundFixture()
		f.seedCompletedPayment(t, 30000)
		f.mtn.RefundFn = func(ctx context.Context, req provider.RefundRequest) (*provider.Result, error) {
			return &provider.Result{Success: false, Message: "REFUND WINDOW CLOSED"}, nil
		}

		result, err := f.service.Initiate(context.Background(), RefundCommand{
			PaymentID: "pay-1",
			Amount:    10000,
			Reason:    "seat removed",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, result.Status)
		assert.Equal(t, "REFUND WINDOW CLOSED", result.Message)

		stored, err := f.refunds.FindByID(context.Background(), result.RefundID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, stored.Status)
		assert.Empty(t, f.watcher.Watched())
	})

	t.Run("transport failure keeps the failed record for audit", func(t *testing.T) {
		f := newRefundFixture()
		f.seedCompletedPayment(t, 30000)
		f.mtn.RefundFn = func(ctx context.Context, req provider.RefundRequest) (*provider.Result, error) {
			return nil, errors.New("connection refused")
		}

		_, err := f.service.Initiate(context.Background(), RefundCommand{
			PaymentID: "pay-1",
			Amount:    10000,
			Reason:    "seat removed",
		})

		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, application.ErrCodeSubmissionFailed, svcErr.Code)
	})
}
