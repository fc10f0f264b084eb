package readiness

import (
	"context"
	"time"

	"github.com/hupe1980/idxdeploy/model"
)

// DefaultPollInterval is the interval between readiness probes.
const DefaultPollInterval = 500 * time.Millisecond

// Gate waits until version is published.
type Gate interface {
	Wait(ctx context.Context, version model.VersionID) error
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, version model.VersionID) error

// Wait calls f.
func (f GateFunc) Wait(ctx context.Context, version model.VersionID) error {
	return f(ctx, version)
}

// poll calls ready until it reports true, fails, or ctx is done.
func poll(ctx context.Context, interval time.Duration, ready func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := ready(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
