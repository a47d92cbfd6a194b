package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter gates entry to the submission pipeline. It combines an
// optional global token bucket with per-form per-IP buckets, so one noisy
// client cannot exhaust a form's capacity for everyone. Requests over the
// limit are rejected before any pipeline stage runs and before any external
// call is made.
type RateLimiter struct {
	mu     sync.Mutex
	global *rate.Limiter
	perIP  map[string]*ipBucket

	lastSweep time.Time
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleEviction is how long an idle per-IP bucket survives before a sweep
// removes it.
const idleEviction = 10 * time.Minute

// NewRateLimiter creates a limiter. globalPerSecond of zero disables the
// global bucket.
func NewRateLimiter(globalPerSecond float64, globalBurst int) *RateLimiter {
	rl := &RateLimiter{
		perIP:     make(map[string]*ipBucket),
		lastSweep: time.Now(),
	}
	if globalPerSecond > 0 {
		if globalBurst <= 0 {
			globalBurst = 1
		}
		rl.global = rate.NewLimiter(rate.Limit(globalPerSecond), globalBurst)
	}
	return rl
}

// Allow reports whether a submission from ip to formID may proceed.
// perMinute is the form's per-IP budget; zero or negative disables the
// per-IP bucket.
func (rl *RateLimiter) Allow(formID, ip string, perMinute int) bool {
	if rl.global != nil && !rl.global.Allow() {
		return false
	}
	if perMinute <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > idleEviction {
		rl.sweepLocked(now)
	}

	key := formID + "|" + ip
	bucket, ok := rl.perIP[key]
	if !ok {
		bucket = &ipBucket{
			limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		}
		rl.perIP[key] = bucket
	}
	bucket.lastSeen = now

	return bucket.limiter.Allow()
}

// sweepLocked drops buckets that have been idle long enough to refill
// completely. Callers hold rl.mu.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	for key, bucket := range rl.perIP {
		if now.Sub(bucket.lastSeen) > idleEviction {
			delete(rl.perIP, key)
		}
	}
	rl.lastSweep = now
}
