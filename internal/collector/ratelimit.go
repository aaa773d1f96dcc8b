package collector

import "golang.org/x/time/rate"

// NewRateLimiter returns a limiter shared by collector workers that allows
// perMinute provider calls per minute with a burst of one. It returns nil
// when perMinute <= 0, which disables pacing.
func NewRateLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
}
