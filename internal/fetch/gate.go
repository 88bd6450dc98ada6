package fetch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// hostGate caps concurrency and paces requests per host.
type hostGate struct {
	limit int
	rate  rate.Limit
	burst int

	mu       sync.Mutex
	slots    map[string]chan struct{}
	limiters map[string]*rate.Limiter
}

func newHostGate(limit int, perSecond float64, burst int) *hostGate {
	if burst < 1 {
		burst = 1
	}
	return &hostGate{
		limit:    limit,
		rate:     rate.Limit(perSecond),
		burst:    burst,
		slots:    make(map[string]chan struct{}),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (g *hostGate) forHost(host string) (chan struct{}, *rate.Limiter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var sem chan struct{}
	if g.limit > 0 {
		sem = g.slots[host]
		if sem == nil {
			sem = make(chan struct{}, g.limit)
			g.slots[host] = sem
		}
	}

	var lim *rate.Limiter
	if g.rate > 0 {
		lim = g.limiters[host]
		if lim == nil {
			lim = rate.NewLimiter(g.rate, g.burst)
			g.limiters[host] = lim
		}
	}
	return sem, lim
}

// acquire blocks until host has a free slot and a pacing token.
func (g *hostGate) acquire(ctx context.Context, host string) (func(), error) {
	sem, lim := g.forHost(host)

	if sem != nil {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	release := func() {
		if sem != nil {
			<-sem
		}
	}

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			release()
			return nil, err
		}
	}
	return release, nil
}
