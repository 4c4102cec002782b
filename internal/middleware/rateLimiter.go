package middleware

import (
	"sync/atomic"
	"time"
)

const burstLimit = 5

// RateLimiter is a lock-free token bucket throttling inbound events on a
// single connection. One bucket per client; a drained bucket means the
// event is dropped and the client warned, the connection stays open.
type RateLimiter struct {
	token    int32
	rate     time.Duration
	burst    int32
	lastTick int64
}

func NewRateLimiter(token int32, rate time.Duration) *RateLimiter {
	return &RateLimiter{
		token:    token,
		rate:     rate,
		lastTick: time.Now().Unix(),
		burst:    burstLimit,
	}
}

func (l *RateLimiter) Allow() bool {
	now := time.Now().Unix()
	last := atomic.LoadInt64(&l.lastTick)
	elapsed := now - last

	generated := int32(elapsed / int64(l.rate/time.Second+1))
	if generated > 0 {
		if atomic.CompareAndSwapInt64(&l.lastTick, last, now) {
			current := atomic.LoadInt32(&l.token)
			newBalance := current + generated
			if newBalance > l.burst {
				newBalance = l.burst
			}
			atomic.StoreInt32(&l.token, newBalance)
		}
	}

	for {
		current := atomic.LoadInt32(&l.token)
		if current <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&l.token, current, current-1) {
			return true
		}
	}
}
