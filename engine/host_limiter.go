package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostEntry holds the token bucket for one host.
type hostEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// HostLimiter throttles requests per host with a token bucket.
// A nil or disabled HostLimiter never blocks.
type HostLimiter struct {
	rps   rate.Limit
	burst int

	mu    sync.Mutex
	hosts map[string]*hostEntry
}

// NewHostLimiter returns a limiter allowing rps requests per second per host.
// It returns nil (no throttling) when rps <= 0.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
		hosts: make(map[string]*hostEntry),
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil {
		return nil
	}
	return l.get(host).Wait(ctx)
}

func (l *HostLimiter) get(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.hosts[host]
	if !ok {
		entry = &hostEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.hosts[host] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Prune drops hosts not seen within maxIdle. Long-lived engines (the API
// server) call it periodically.
func (l *HostLimiter) Prune(maxIdle time.Duration) int {
	if l == nil {
		return 0
	}
	cutoff := time.Now().Add(-maxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for host, entry := range l.hosts {
		if entry.lastSeen.Before(cutoff) {
			delete(l.hosts, host)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked hosts.
func (l *HostLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hosts)
}
