package worker

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent worker instances per capability type and hands out
// proxies. Capacity counters and breaker state are the only shared mutable
// state during a run; both are internally synchronized.
type Pool struct {
	registry *Registry
	cfg      Config
	clock    Clock
	max      int64

	mu      sync.Mutex
	sems    map[string]*semaphore.Weighted
	proxies map[string]*Proxy

	// logf is an optional debug log hook propagated to proxies.
	logf func(format string, args ...interface{})
}

// NewPool creates a pool over the registry with the given per-capability
// slot limit. A limit below 1 is clamped to 1. A nil clock uses system time.
func NewPool(registry *Registry, maxPerCapability int, cfg Config, clock Clock) *Pool {
	if maxPerCapability < 1 {
		maxPerCapability = 1
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Pool{
		registry: registry,
		cfg:      cfg,
		clock:    clock,
		max:      int64(maxPerCapability),
		sems:     make(map[string]*semaphore.Weighted),
		proxies:  make(map[string]*Proxy),
		logf:     func(format string, args ...interface{}) {},
	}
}

// SetLogf sets the debug log hook for the pool and future proxies.
func (p *Pool) SetLogf(fn func(format string, args ...interface{})) {
	if fn != nil {
		p.logf = fn
	}
}

// Acquire blocks until a slot for the capability is available and returns
// its proxy. The caller must Release the capability when the call finishes.
// Returns ErrUnknownCapability if nothing is registered for the capability.
func (p *Pool) Acquire(ctx context.Context, capability string) (*Proxy, error) {
	w, ok := p.registry.Get(capability)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, capability)
	}

	p.mu.Lock()
	sem, exists := p.sems[capability]
	if !exists {
		sem = semaphore.NewWeighted(p.max)
		p.sems[capability] = sem
	}
	proxy, exists := p.proxies[capability]
	if !exists {
		proxy = NewProxy(capability, w, p.cfg, p.clock)
		proxy.SetLogf(p.logf)
		p.proxies[capability] = proxy
	}
	p.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return proxy, nil
}

// Release returns a slot for the capability.
func (p *Pool) Release(capability string) {
	p.mu.Lock()
	sem := p.sems[capability]
	p.mu.Unlock()
	if sem != nil {
		sem.Release(1)
	}
}

// Proxy returns the proxy for a capability if one has been created.
func (p *Pool) Proxy(capability string) *Proxy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.proxies[capability]
}

// TotalCalls returns the number of worker call attempts across all proxies.
func (p *Pool) TotalCalls() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var total int64
	for _, proxy := range p.proxies {
		total += proxy.Calls()
	}
	return total
}
