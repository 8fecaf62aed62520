package session

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 30 * time.Second
)

// ReconnectPolicy bounds how the controller reopens a dropped feed.
// MaxAttempts of zero disables reconnection.
type ReconnectPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p ReconnectPolicy) Enabled() bool {
	return p.MaxAttempts > 0
}

func (p ReconnectPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultInitialInterval
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	b.MaxInterval = defaultMaxInterval
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Reset()
	return b
}

// reconnector counts the attempts made since the feed was last healthy.
type reconnector struct {
	policy   ReconnectPolicy
	backOff  *backoff.ExponentialBackOff
	attempts int
}

func newReconnector(policy ReconnectPolicy) *reconnector {
	return &reconnector{policy: policy, backOff: policy.newBackOff()}
}

// next returns the delay before the following attempt, false once exhausted.
func (r *reconnector) next() (time.Duration, bool) {
	if !r.policy.Enabled() || r.attempts >= r.policy.MaxAttempts {
		return 0, false
	}
	r.attempts++
	delay := r.backOff.NextBackOff()
	if delay == backoff.Stop {
		return 0, false
	}
	return delay, true
}

func (r *reconnector) reset() {
	r.attempts = 0
	r.backOff.Reset()
}
