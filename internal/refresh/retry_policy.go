package refresh

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// BackoffPolicy implements RetryPolicy with jittered exponential backoff.
type BackoffPolicy struct {
	maxAttempts    int
	baseDelay      time.Duration
	maxDelay       time.Duration
	multiplier     float64
	jitterFraction float64
	rateLimitFloor time.Duration
}

// BackoffConfig tunes a BackoffPolicy. Zero values fall back to defaults.
type BackoffConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	RateLimitFloor time.Duration
}

// NewBackoffPolicy builds a policy with sane defaults.
func NewBackoffPolicy(cfg BackoffConfig) *BackoffPolicy {
	p := &BackoffPolicy{
		maxAttempts:    cfg.MaxAttempts,
		baseDelay:      cfg.BaseDelay,
		maxDelay:       cfg.MaxDelay,
		multiplier:     cfg.Multiplier,
		jitterFraction: 0.2,
		rateLimitFloor: cfg.RateLimitFloor,
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 3
	}
	if p.baseDelay <= 0 {
		p.baseDelay = 500 * time.Millisecond
	}
	if p.maxDelay <= 0 {
		p.maxDelay = 30 * time.Second
	}
	if p.multiplier <= 1 {
		p.multiplier = 2
	}
	if p.rateLimitFloor <= 0 {
		p.rateLimitFloor = 2 * time.Second
	}
	return p
}

// MaxAttempts returns the attempt ceiling for transient failures.
func (p *BackoffPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Decide reports whether attempt number attempt (1-based) should be
// followed by another try, and the delay to wait first. Success and
// permanent outcomes terminate immediately; rate-limited outcomes are
// transient with a raised minimum delay.
func (p *BackoffPolicy) Decide(class Class, attempt int) (bool, time.Duration) {
	switch class {
	case ClassSuccess, ClassPermanent:
		return false, 0
	}
	if attempt >= p.maxAttempts {
		return false, 0
	}

	delay := float64(p.baseDelay) * math.Pow(p.multiplier, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	d := time.Duration(delay)
	if class == ClassRateLimited && d < p.rateLimitFloor {
		d = p.rateLimitFloor
	}
	return true, p.jittered(d)
}

// jittered spreads the delay by ±jitterFraction so entries that failed
// in the same batch do not retry in lockstep.
func (p *BackoffPolicy) jittered(d time.Duration) time.Duration {
	span := time.Duration(float64(d) * p.jitterFraction)
	if span <= 0 {
		return d
	}
	bound := big.NewInt(int64(2 * span))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return d
	}
	return d - span + time.Duration(n.Int64())
}
