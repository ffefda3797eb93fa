// Package util holds small helpers shared by the data loaders.
package util

import "time"

const maxBackoff = 10

// RateLimiter paces requests at a base rate and slows down linearly while
// requests keep failing. A zero base rate disables pacing.
type RateLimiter struct {
	ticker     *time.Ticker
	errorCount int
	baseRate   time.Duration
}

func NewRateLimiter(baseRate time.Duration) *RateLimiter {
	rl := &RateLimiter{baseRate: baseRate}
	if baseRate > 0 {
		rl.ticker = time.NewTicker(rl.baseRate)
	}
	return rl
}

// Tick blocks until the next request may be sent.
func (rl *RateLimiter) Tick() {
	if rl.ticker != nil {
		<-rl.ticker.C
	}
}

func (rl *RateLimiter) Close() {
	if rl.ticker != nil {
		rl.ticker.Stop()
	}
}

// Backoff returns the current multiple of the base rate.
func (rl *RateLimiter) Backoff() int {
	return rl.errorCount
}

func (rl *RateLimiter) UpdateRate(isError bool) {
	update := false
	if isError {
		if rl.errorCount < maxBackoff {
			rl.errorCount++
			update = true
		}
	} else if rl.errorCount > 0 {
		rl.errorCount--
		update = true
	}

	if update && rl.ticker != nil {
		tickerRate := rl.baseRate
		if rl.errorCount > 0 {
			tickerRate = rl.baseRate * time.Duration(rl.errorCount)
		}
		rl.ticker.Reset(tickerRate)
	}
}
