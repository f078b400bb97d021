package replication

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPeerRate / DefaultPeerBurst bound the inbound packet rate the
// server will accept from a single peer before dropping packets as a
// basic flood guard.
const (
	DefaultPeerRate  = 240 // packets/sec: ~4x the physic-sync cadence
	DefaultPeerBurst = 64
)

type peerLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PeerRateLimiter caps inbound packet rate per peer address.
type PeerRateLimiter struct {
	limiters sync.Map // map[string]*peerLimiterEntry
	ratePerS float64
	burst    int
}

// NewPeerRateLimiter constructs a limiter with the given rate and
// burst.
func NewPeerRateLimiter(ratePerS float64, burst int) *PeerRateLimiter {
	return &PeerRateLimiter{ratePerS: ratePerS, burst: burst}
}

// Allow reports whether a packet from peer should be accepted.
func (rl *PeerRateLimiter) Allow(peer string) bool {
	now := time.Now()
	if entry, ok := rl.limiters.Load(peer); ok {
		e := entry.(*peerLimiterEntry)
		e.lastSeen = now
		return e.limiter.Allow()
	}
	entry := &peerLimiterEntry{
		limiter:  rate.NewLimiter(rate.Limit(rl.ratePerS), rl.burst),
		lastSeen: now,
	}
	actual, _ := rl.limiters.LoadOrStore(peer, entry)
	return actual.(*peerLimiterEntry).limiter.Allow()
}

// Cleanup evicts peers not seen within maxAge, preventing unbounded
// growth across a long server lifetime (disconnected clients).
func (rl *PeerRateLimiter) Cleanup(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	rl.limiters.Range(func(key, value interface{}) bool {
		if value.(*peerLimiterEntry).lastSeen.Before(cutoff) {
			rl.limiters.Delete(key)
		}
		return true
	})
}
