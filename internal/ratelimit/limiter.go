package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Window is the length of one quota period.
const Window = 24 * time.Hour

// Stats is a point-in-time view of quota usage.
type Stats struct {
	Count         int       `json:"count"`
	Limit         int       `json:"limit"`
	Remaining     int       `json:"remaining"`
	WindowResetAt time.Time `json:"windowResetAt"`
}

// Limiter tracks requests against floor(dailyLimit × safetyFactor).
// It is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	limit       int
	count       int
	windowStart time.Time
	now         func() time.Time
}

// New creates a limiter with an effective budget of
// floor(dailyLimit × safetyFactor). The first window starts now.
//
// Parameters:
//   - dailyLimit: Vendor's hard daily request quota
//   - safetyFactor: Fraction of the quota that may be spent, in (0,1]
func New(dailyLimit int, safetyFactor float64) *Limiter {
	return newWithClock(dailyLimit, safetyFactor, time.Now)
}

func newWithClock(dailyLimit int, safetyFactor float64, now func() time.Time) *Limiter {
	return &Limiter{
		limit:       effectiveBudget(dailyLimit, safetyFactor),
		windowStart: now(),
		now:         now,
	}
}

// CanMakeRequest reports whether the budget has room for another request.
//
// It does not roll the window; a stale window is reset by the next
// RecordRequest, matching how usage is charged.
func (l *Limiter) CanMakeRequest() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.expiredLocked() {
		return l.limit > 0
	}
	return l.count < l.limit
}

// RecordRequest charges one request. If more than a full window has
// elapsed since the window started, the count resets and a new window
// begins now before the request is charged.
func (l *Limiter) RecordRequest() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.expiredLocked() {
		l.count = 0
		l.windowStart = l.now()
	}
	l.count++
}

// Stats returns current usage. Remaining is never negative.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Count:         l.count,
		Limit:         l.limit,
		Remaining:     max(l.limit-l.count, 0),
		WindowResetAt: l.windowStart.Add(Window),
	}
}

// effectiveBudget is floor(dailyLimit × safetyFactor). The product is
// snapped to 1e-9 first so 100 × 0.29 floors to 29, not 28.
func effectiveBudget(dailyLimit int, safetyFactor float64) int {
	const precision = 1e9
	product := math.Round(float64(dailyLimit)*safetyFactor*precision) / precision
	return int(math.Floor(product))
}

func (l *Limiter) expiredLocked() bool {
	return l.now().Sub(l.windowStart) > Window
}
