package simulator

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Light 1 cycle.
var cycle = []string{"red", "yellow", "green"}

// ErrNoPublisher is returned by Run when pub is nil.
var ErrNoPublisher = errors.New("simulator: publisher is required")

// Step is one pair of values published together.
type Step struct {
	Light1 string
	Light2 string
}

// StepAt returns step i of the cycle. Negative i counts as 0.
func StepAt(i int) Step {
	if i < 0 {
		i = 0
	}
	l1 := cycle[i%len(cycle)]
	l2 := "green"
	if l1 == "green" {
		l2 = "red"
	}
	return Step{Light1: l1, Light2: l2}
}

// Publisher sends one payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, payload string) error
}

// Logger is optional progress output for Run.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Config controls Run.
type Config struct {
	Light1Topic string
	Light2Topic string

	// Interval between steps. Defaults to 5s.
	Interval time.Duration

	// Count is the number of steps; 0 runs until ctx is cancelled.
	Count int

	// Sleep waits between steps. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger Logger
}

// Run publishes steps until Count is reached or ctx is cancelled. A
// failed publish is logged and the step continues, matching a publisher
// that keeps going through broker outages. It returns the number of
// steps completed, and nil on cancellation.
func Run(ctx context.Context, pub Publisher, cfg Config) (int, error) {
	if pub == nil {
		return 0, ErrNoPublisher
	}
	if cfg.Light1Topic == "" || cfg.Light2Topic == "" {
		return 0, fmt.Errorf("simulator: both light topics are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}

	for i := 0; cfg.Count <= 0 || i < cfg.Count; i++ {
		if ctx.Err() != nil {
			return i, nil
		}
		if i > 0 {
			if err := cfg.Sleep(ctx, cfg.Interval); err != nil {
				return i, nil
			}
		}

		step := StepAt(i)
		cfg.Logger.Info("publishing step", "step", i, "light1", step.Light1, "light2", step.Light2)
		if err := pub.Publish(ctx, cfg.Light1Topic, step.Light1); err != nil {
			cfg.Logger.Warn("publish failed", "topic", cfg.Light1Topic, "error", err)
		}
		if err := pub.Publish(ctx, cfg.Light2Topic, step.Light2); err != nil {
			cfg.Logger.Warn("publish failed", "topic", cfg.Light2Topic, "error", err)
		}
	}
	return cfg.Count, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
