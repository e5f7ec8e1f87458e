package signal

import (
	"sync"

	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/domain"
	"golang.org/x/time/rate"
)

type op int

const (
	opJoin op = iota
	opSignal
)

func (o op) String() string {
	if o == opJoin {
		return "join"
	}
	return "signal"
}

type limiterKey struct {
	user domain.UserID
	op   op
}

// RateLimiter keeps one token bucket per identity and operation, so opening
// more tabs does not buy more joins.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[limiterKey]*rate.Limiter
	limits  map[op]rate.Limit
	bursts  map[op]int
}

func NewRateLimiter(joinPerSec float64, joinBurst int, signalPerSec float64, signalBurst int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[limiterKey]*rate.Limiter),
		limits:  map[op]rate.Limit{opJoin: rate.Limit(joinPerSec), opSignal: rate.Limit(signalPerSec)},
		bursts:  map[op]int{opJoin: joinBurst, opSignal: signalBurst},
	}
}

func (rl *RateLimiter) Allow(uid domain.UserID, o op) bool {
	rl.mu.Lock()
	key := limiterKey{user: uid, op: o}
	lim, ok := rl.buckets[key]
	if !ok {
		lim = rate.NewLimiter(rl.limits[o], rl.bursts[o])
		rl.buckets[key] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

// Forget drops the buckets of an identity that went offline.
func (rl *RateLimiter) Forget(uid domain.UserID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, limiterKey{user: uid, op: opJoin})
	delete(rl.buckets, limiterKey{user: uid, op: opSignal})
}

// allow resolves sid to its identity. Unknown connections pass; the
// orchestrator rejects them with NotAuthenticated.
func (ctl *SignalWSController) allow(sid core.SessionID, o op) bool {
	if ctl.Limits == nil {
		return true
	}
	c, ok := ctl.Orch.Registry.Get(sid)
	if !ok {
		return true
	}
	if ctl.Limits.Allow(c.User.ID, o) {
		return true
	}
	ctl.Metrics.RateLimited(o.String())
	return false
}
