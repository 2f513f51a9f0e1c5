package httpclient

import (
	"context"
	"net/url"
	"sync"
)

// HostGate is a process-global per-host concurrency limiter. Every component
// talking to the catalogue or subtitle hosts shares the same gate, so a batch
// download cannot thundering-herd one upstream.
//
//	release, err := httpclient.Gate.Acquire(ctx, u)
//	if err != nil { return err }
//	defer release()
type HostGate struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	limit int
}

// Gate is the shared per-host gate. Cap: 4 concurrent requests per host
// across the process.
var Gate = NewHostGate(4)

func NewHostGate(concurrency int) *HostGate {
	if concurrency < 1 {
		concurrency = 1
	}
	return &HostGate{slots: make(map[string]chan struct{}), limit: concurrency}
}

// Acquire blocks until a slot is available for rawURL's host or ctx is done.
// Returns a release func on success.
func (g *HostGate) Acquire(ctx context.Context, rawURL string) (func(), error) {
	slot := g.slotFor(rawURL)
	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *HostGate) slotFor(rawURL string) chan struct{} {
	key := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		key = u.Scheme + "://" + u.Host
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[key]
	if !ok {
		s = make(chan struct{}, g.limit)
		g.slots[key] = s
	}
	return s
}
