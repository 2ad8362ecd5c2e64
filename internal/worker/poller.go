package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ssekandi/safiri-payments/internal/application/services"
	"github.com/ssekandi/safiri-payments/internal/domain"
	"github.com/ssekandi/safiri-payments/internal/provider"
)

const checkTimeout = 30 * time.Second

// Poller follows a submitted transaction with scheduled status checks until
// it settles or ages past the ceiling. Airtel's callbacks are unreliable, so
// its schedule starts faster; the others lean on webhooks and poll as a
// safety net. Past the ceiling the transaction is left to webhooks, manual
// checks and the retry engine.
type Poller struct {
	status  *services.StatusService
	ceiling time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPoller(status *services.StatusService, ceiling time.Duration, logger *slog.Logger) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		status:  status,
		ceiling: ceiling,
		logger:  logger,
		active:  make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Stop cancels all watch loops and waits for them to drain.
func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Watch starts following a token. Duplicate watches for the same token are
// coalesced; the existing loop keeps running.
func (p *Poller) Watch(prov domain.Provider, kind provider.Kind, token string) {
	if token == "" {
		return
	}

	p.mu.Lock()
	if _, ok := p.active[token]; ok {
		p.mu.Unlock()
		return
	}
	p.active[token] = struct{}{}
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.active, token)
			p.mu.Unlock()
		}()
		p.watch(prov, kind, token)
	}()
}

func (p *Poller) watch(prov domain.Provider, kind provider.Kind, token string) {
	start := time.Now()
	errStreak := 0

	for {
		age := time.Since(start)
		if age >= p.ceiling {
			p.logger.Info("poll ceiling reached, leaving transaction to background checks",
				"provider", prov,
				"kind", kind,
				"token", token,
			)
			return
		}

		interval := pollInterval(prov, age)
		if errStreak > 0 {
			interval = backoff(interval, errStreak)
		}

		select {
		case <-p.ctx.Done():
			return
		case <-time.After(interval):
		}

		ctx, cancel := context.WithTimeout(p.ctx, checkTimeout)
		result, err := p.status.Check(ctx, token)
		cancel()
		if err != nil {
			errStreak++
			p.logger.Warn("poll check failed",
				"provider", prov,
				"token", token,
				"streak", errStreak,
				"error", err,
			)
			continue
		}
		errStreak = 0

		if result.Status.IsTerminal() {
			p.logger.Info("transaction settled",
				"provider", prov,
				"kind", kind,
				"id", result.ID,
				"status", result.Status,
			)
			return
		}
	}
}

// pollInterval widens the schedule as the transaction ages. Airtel gets a
// faster first band; the later bands are shared.
func pollInterval(prov domain.Provider, age time.Duration) time.Duration {
	switch {
	case age < 15*time.Second:
		if prov == domain.ProviderAirtel {
			return 2 * time.Second
		}
		return 3 * time.Second
	case age < time.Minute:
		return 10 * time.Second
	case age < 3*time.Minute:
		return 20 * time.Second
	default:
		return 30 * time.Second
	}
}

// backoff doubles the interval per consecutive check failure, capped at one
// minute so a flapping provider does not silence the poller entirely.
func backoff(base time.Duration, streak int) time.Duration {
	if streak > 6 {
		streak = 6
	}
	d := base << streak
	if d > time.Minute {
		return time.Minute
	}
	return d
}
