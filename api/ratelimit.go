package api

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// writeRateLimiter bounds how fast one client can write documents. Every
// write replaces a whole document, so a runaway client could burn through
// the storage backend's own quota; the limiter sheds that load here with
// an explicit Retry-After instead of letting the backend throttle us.
type writeRateLimiter struct {
	mu     sync.Mutex
	writes map[string][]time.Time
}

const (
	// maxWritesPerWindow is how many writes one client may perform per
	// rate window.
	maxWritesPerWindow = 30
	rateWindow         = 1 * time.Minute
)

func newWriteRateLimiter() *writeRateLimiter {
	return &writeRateLimiter{writes: make(map[string][]time.Time)}
}

// check reports whether the client is over its write budget, along with
// how long it should wait before retrying.
func (rl *writeRateLimiter) check(client string) (blocked bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := rl.prune(client, time.Now())
	if len(recent) < maxWritesPerWindow {
		return false, 0
	}
	return true, time.Until(recent[0].Add(rateWindow))
}

// record counts a successful write against the client's budget.
func (rl *writeRateLimiter) record(client string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.writes[client] = append(rl.prune(client, now), now)
}

// prune drops writes older than the rate window. Callers must hold mu.
func (rl *writeRateLimiter) prune(client string, now time.Time) []time.Time {
	recent := rl.writes[client][:0]
	for _, t := range rl.writes[client] {
		if now.Sub(t) < rateWindow {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		delete(rl.writes, client)
		return nil
	}
	rl.writes[client] = recent
	return recent
}

// clientKey identifies the client for rate limiting. The remote host
// without the ephemeral port, so reconnecting does not reset the budget.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
