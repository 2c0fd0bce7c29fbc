package relay

import (
	"context"
	"time"

	"github.com/nerrad567/traffic-relay/internal/infrastructure/config"
)

// DelayPolicy decides how long to wait before the next connect attempt.
// failures is the number of consecutive failed attempts, starting at 1.
type DelayPolicy interface {
	Next(failures int) time.Duration
}

// FixedDelay waits the same interval after every failure.
type FixedDelay time.Duration

// Next implements DelayPolicy.
func (d FixedDelay) Next(int) time.Duration {
	return time.Duration(d)
}

// Backoff grows the wait geometrically from Initial up to Max.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Next implements DelayPolicy.
func (b Backoff) Next(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := float64(b.Initial)
	for i := 1; i < failures; i++ {
		d *= b.Multiplier
		if d >= float64(b.Max) {
			return b.Max
		}
	}
	if time.Duration(d) > b.Max {
		return b.Max
	}
	return time.Duration(d)
}

// PolicyFromConfig returns FixedDelay unless the config asks for growth.
func PolicyFromConfig(cfg config.MQTTReconnectConfig) DelayPolicy {
	if cfg.Multiplier <= 1 || cfg.MaxDelay <= cfg.Delay {
		return FixedDelay(cfg.Delay)
	}
	return Backoff{Initial: cfg.Delay, Max: cfg.MaxDelay, Multiplier: cfg.Multiplier}
}

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
