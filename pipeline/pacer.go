package pipeline

import (
	"context"
	"sync"
	"time"

	"currency-features/models"
	"currency-features/services"
)

// Pacer spaces provider requests at least interval apart across all workers
type Pacer struct {
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewPacer creates a Pacer. A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Wait blocks until the caller's request slot. The first call returns immediately.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.interval <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := time.Now()
	at := p.next
	if at.Before(now) {
		at = now
	}
	p.next = at.Add(p.interval)
	p.mu.Unlock()

	return sleep(ctx, time.Until(at))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pacedProvider waits on a Pacer before every fetch
type pacedProvider struct {
	next  services.SeriesProvider
	pacer *Pacer
}

// Paced wraps provider so every FetchSeries call first waits on pacer
func Paced(provider services.SeriesProvider, pacer *Pacer) services.SeriesProvider {
	return &pacedProvider{next: provider, pacer: pacer}
}

func (p *pacedProvider) Name() string { return p.next.Name() }

func (p *pacedProvider) FetchSeries(ctx context.Context, ticker string, start, end time.Time) (models.PriceSeries, error) {
	if err := p.pacer.Wait(ctx); err != nil {
		return models.PriceSeries{}, err
	}
	return p.next.FetchSeries(ctx, ticker, start, end)
}

// pace applies pacer to the requests provider actually sends upstream. Decorators
// that answer from a cache are paced only on their misses.
func pace(provider services.SeriesProvider, pacer *Pacer) services.SeriesProvider {
	wrap := func(p services.SeriesProvider) services.SeriesProvider { return Paced(p, pacer) }
	if layered, ok := provider.(services.UpstreamWrapper); ok {
		return layered.WrapUpstream(wrap)
	}
	return wrap(provider)
}
