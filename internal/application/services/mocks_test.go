package services

import (
	"context"
	"sync"
	"time"

	"github.com/ssekandi/safiri-payments/internal/application"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

// MockPaymentRepository is an in-memory PaymentRepository. The conditional
// UpdateStatus mirrors the real store's compare-and-swap semantics so races
// behave the same way in tests.
type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment

	CreateFn       func(ctx context.Context, p *domain.Payment) error
	FindByTokenFn  func(ctx context.Context, token string) (*domain.Payment, error)
	UpdateStatusFn func(ctx context.Context, id string, expected, target domain.Status) (bool, error)
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[string]*domain.Payment)}
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	// Overrides run outside the lock so they may reenter the mock.
	if m.CreateFn != nil {
		return m.CreateFn(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if existing.BookingID == p.BookingID && existing.IdempotencyKey == p.IdempotencyKey {
			return application.ErrDuplicateIdempotencyKey
		}
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, application.ErrNotFound
}

func (m *MockPaymentRepository) FindByIdempotencyKey(ctx context.Context, bookingID, key string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.BookingID == bookingID && p.IdempotencyKey == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, application.ErrNotFound
}

func (m *MockPaymentRepository) FindByToken(ctx context.Context, token string) (*domain.Payment, error) {
	if m.FindByTokenFn != nil {
		return m.FindByTokenFn(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ProviderToken == token && token != "" {
			cp := *p
			return &cp, nil
		}
	}
	return nil, application.ErrNotFound
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id string, expected, target domain.Status, raw []byte, financialTxID string) (bool, error) {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, expected, target)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != expected {
		return false, nil
	}
	p.Status = target
	if financialTxID != "" {
		p.FinancialTxID = &financialTxID
	}
	return true, nil
}

// Seed stores a payment directly, bypassing Create's idempotency check.
func (m *MockPaymentRepository) Seed(p *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ID] = &cp
}

// MockPayoutRepository is an in-memory PayoutRepository with the same
// claim-retry compare-and-swap as the real store.
type MockPayoutRepository struct {
	mu      sync.Mutex
	payouts map[string]*domain.Payout

	ClaimRetryFn func(ctx context.Context, id string, expectedRetryCount int) (bool, error)
}

func NewMockPayoutRepository() *MockPayoutRepository {
	return &MockPayoutRepository{payouts: make(map[string]*domain.Payout)}
}

func (m *MockPayoutRepository) Create(ctx context.Context, p *domain.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payouts[p.ID] = &cp
	return nil
}

func (m *MockPayoutRepository) FindByID(ctx context.Context, id string) (*domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payouts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, application.ErrNotFound
}

func (m *MockPayoutRepository) FindByToken(ctx context.Context, token string) (*domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payouts {
		if p.ProviderToken == token && token != "" {
			cp := *p
			return &cp, nil
		}
	}
	return nil, application.ErrNotFound
}

func (m *MockPayoutRepository) UpdateStatus(ctx context.Context, id string, expected, target domain.Status, raw []byte, providerStatus, failureReason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok || p.Status != expected {
		return false, nil
	}
	p.Status = target
	if providerStatus != "" {
		p.ProviderStatus = &providerStatus
	}
	if failureReason != "" {
		p.FailureReason = &failureReason
	}
	return true, nil
}

func (m *MockPayoutRepository) ClaimRetry(ctx context.Context, id string, expectedRetryCount int, cooldown time.Duration) (bool, error) {
	if m.ClaimRetryFn != nil {
		return m.ClaimRetryFn(ctx, id, expectedRetryCount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return false, nil
	}
	if p.Status != domain.StatusFailed || p.MaxRetriesReached {
		return false, nil
	}
	if p.RetryCount != expectedRetryCount || p.RetryCount >= domain.MaxPayoutRetries {
		return false, nil
	}
	ref := p.CreatedAt
	if p.LastRetryAt != nil && p.LastRetryAt.After(ref) {
		ref = *p.LastRetryAt
	}
	if time.Since(ref) < cooldown {
		return false, nil
	}
	now := time.Now()
	p.Status = domain.StatusProcessing
	p.RetryCount++
	p.LastRetryAt = &now
	return true, nil
}

func (m *MockPayoutRepository) RecordRetryResult(ctx context.Context, id string, attempt domain.RetryAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return application.ErrNotFound
	}
	if attempt.NewToken != "" {
		p.ProviderToken = attempt.NewToken
	}
	p.RetryHistory = append(p.RetryHistory, attempt)
	return nil
}

func (m *MockPayoutRepository) MarkExhausted(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return application.ErrNotFound
	}
	p.Status = domain.StatusFailed
	p.MaxRetriesReached = true
	return nil
}

func (m *MockPayoutRepository) FindRetryCandidates(ctx context.Context, cooldown time.Duration, limit int) ([]*domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Payout
	for _, p := range m.payouts {
		if len(out) >= limit {
			break
		}
		if p.Status != domain.StatusFailed || p.MaxRetriesReached {
			continue
		}
		if p.RetryCount < domain.MaxPayoutRetries {
			ref := p.CreatedAt
			if p.LastRetryAt != nil && p.LastRetryAt.After(ref) {
				ref = *p.LastRetryAt
			}
			if time.Since(ref) < cooldown {
				continue
			}
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockPayoutRepository) Seed(p *domain.Payout) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payouts[p.ID] = &cp
}

// MockRefundRepository is an in-memory RefundRepository.
type MockRefundRepository struct {
	mu      sync.Mutex
	refunds map[string]*domain.Refund
}

func NewMockRefundRepository() *MockRefundRepository {
	return &MockRefundRepository{refunds: make(map[string]*domain.Refund)}
}

func (m *MockRefundRepository) Create(ctx context.Context, r *domain.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.refunds[r.ID] = &cp
	return nil
}

func (m *MockRefundRepository) FindByID(ctx context.Context, id string) (*domain.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.refunds[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, application.ErrNotFound
}

func (m *MockRefundRepository) FindByToken(ctx context.Context, token string) (*domain.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.refunds {
		if r.ProviderToken == token && token != "" {
			cp := *r
			return &cp, nil
		}
	}
	return nil, application.ErrNotFound
}

func (m *MockRefundRepository) SetProviderToken(ctx context.Context, id, token string, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok {
		return application.ErrNotFound
	}
	r.ProviderToken = token
	return nil
}

func (m *MockRefundRepository) UpdateStatus(ctx context.Context, id string, expected, target domain.Status, raw []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[id]
	if !ok || r.Status != expected {
		return false, nil
	}
	r.Status = target
	return true, nil
}

func (m *MockRefundRepository) Seed(r *domain.Refund) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.refunds[r.ID] = &cp
}

// MockNotifier records dispatched notifications.
type MockNotifier struct {
	mu   sync.Mutex
	sent []application.Notification

	SendFn func(ctx context.Context, n application.Notification) error
}

func (m *MockNotifier) Send(ctx context.Context, n application.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendFn != nil {
		return m.SendFn(ctx, n)
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *MockNotifier) Sent() []application.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]application.Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

// MockProviderClient is a provider.Client with per-call overrides.
type MockProviderClient struct {
	name domain.Provider

	PayinFn       func(ctx context.Context, req provider.PayinRequest) (*provider.Result, error)
	PayoutFn      func(ctx context.Context, req provider.PayoutRequest) (*provider.Result, error)
	RefundFn      func(ctx context.Context, req provider.RefundRequest) (*provider.Result, error)
	CheckStatusFn func(ctx context.Context, kind provider.Kind, token string) (*provider.StatusInfo, error)
}

func NewMockProviderClient(name domain.Provider) *MockProviderClient {
	return &MockProviderClient{name: name}
}

func (m *MockProviderClient) Name() domain.Provider { return m.name }

func (m *MockProviderClient) Payin(ctx context.Context, req provider.PayinRequest) (*provider.Result, error) {
	if m.PayinFn != nil {
		return m.PayinFn(ctx, req)
	}
	return &provider.Result{Success: true, Token: "tok-" + req.Reference}, nil
}

func (m *MockProviderClient) Payout(ctx context.Context, req provider.PayoutRequest) (*provider.Result, error) {
	if m.PayoutFn != nil {
		return m.PayoutFn(ctx, req)
	}
	return &provider.Result{Success: true, Token: "tok-" + req.Reference}, nil
}

func (m *MockProviderClient) Refund(ctx context.Context, req provider.RefundRequest) (*provider.Result, error) {
	if m.RefundFn != nil {
		return m.RefundFn(ctx, req)
	}
	return &provider.Result{Success: true, Token: "rtok-" + req.Reference}, nil
}

func (m *MockProviderClient) CheckStatus(ctx context.Context, kind provider.Kind, token string) (*provider.StatusInfo, error) {
	if m.CheckStatusFn != nil {
		return m.CheckStatusFn(ctx, kind, token)
	}
	return &provider.StatusInfo{ProviderStatus: "pending"}, nil
}

// MockWatcher records Watch calls.
type MockWatcher struct {
	mu      sync.Mutex
	watched []string
}

func (m *MockWatcher) Watch(prov domain.Provider, kind provider.Kind, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watched = append(m.watched, token)
}

func (m *MockWatcher) Watched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.watched))
	copy(out, m.watched)
	return out
}
