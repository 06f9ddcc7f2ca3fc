package realtime

import "time"

// ReconnectPolicy controls the delay schedule between reconnect
// attempts. The delay for attempt n is BaseDelay * min(n, CapMultiplier),
// so it grows linearly and then holds at the cap. After MaxAttempts
// consecutive failures the client stops retrying and emits a terminal
// StatusFailed connection event.
type ReconnectPolicy struct {
	BaseDelay     time.Duration
	CapMultiplier int
	MaxAttempts   int
}

// DefaultReconnectPolicy returns the production schedule: 3s base delay
// capped at 5x (15s), giving up after 10 attempts.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay:     3 * time.Second,
		CapMultiplier: 5,
		MaxAttempts:   10,
	}
}

// Delay returns the wait before the given reconnect attempt. Attempts
// are numbered from 1.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > p.CapMultiplier {
		attempt = p.CapMultiplier
	}
	return p.BaseDelay * time.Duration(attempt)
}

// isValid reports whether the policy is usable by a client.
func (p ReconnectPolicy) isValid() bool {
	return p.BaseDelay > 0 && p.CapMultiplier >= 1 && p.MaxAttempts >= 1
}
