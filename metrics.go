package idxdeploy

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordPlan is called after each planning step with the sizes of the
	// local and remote file sets.
	RecordPlan(local, remote int, duration time.Duration, err error)

	// RecordDeploy is called once per Deploy call.
	RecordDeploy(outcome Outcome, duration time.Duration, err error)

	// RecordWarmUp is called after each cache warm-up.
	RecordWarmUp(hints int, err error)

	// RecordClean is called after each done-marker garbage collection.
	RecordClean(removed int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPlan(int, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordDeploy(Outcome, time.Duration, error) {}
func (NoopMetricsCollector) RecordWarmUp(int, error)                    {}
func (NoopMetricsCollector) RecordClean(int, error)                     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PlanCount        atomic.Int64
	PlanErrors       atomic.Int64
	PlannedLocal     atomic.Int64
	PlannedRemote    atomic.Int64
	DeployCount      atomic.Int64
	DeployErrors     atomic.Int64
	DeployTotalNanos atomic.Int64
	Deployed         atomic.Int64
	AlreadyDone      atomic.Int64
	Skipped          atomic.Int64
	Cancelled        atomic.Int64
	WarmUpCount      atomic.Int64
	WarmUpErrors     atomic.Int64
	WarmUpHints      atomic.Int64
	CleanCount       atomic.Int64
	CleanErrors      atomic.Int64
	CleanRemoved     atomic.Int64
}

// RecordPlan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPlan(local, remote int, _ time.Duration, err error) {
	b.PlanCount.Add(1)
	if err != nil {
		b.PlanErrors.Add(1)
		return
	}
	b.PlannedLocal.Add(int64(local))
	b.PlannedRemote.Add(int64(remote))
}

// RecordDeploy implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDeploy(outcome Outcome, duration time.Duration, err error) {
	b.DeployCount.Add(1)
	b.DeployTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.DeployErrors.Add(1)
		return
	}
	switch outcome {
	case OutcomeDeployed:
		b.Deployed.Add(1)
	case OutcomeAlreadyDone:
		b.AlreadyDone.Add(1)
	case OutcomeSkipped:
		b.Skipped.Add(1)
	case OutcomeCancelled:
		b.Cancelled.Add(1)
	}
}

// RecordWarmUp implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWarmUp(hints int, err error) {
	b.WarmUpCount.Add(1)
	b.WarmUpHints.Add(int64(hints))
	if err != nil {
		b.WarmUpErrors.Add(1)
	}
}

// RecordClean implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClean(removed int, err error) {
	b.CleanCount.Add(1)
	b.CleanRemoved.Add(int64(removed))
	if err != nil {
		b.CleanErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PlanCount:      b.PlanCount.Load(),
		PlanErrors:     b.PlanErrors.Load(),
		PlannedLocal:   b.PlannedLocal.Load(),
		PlannedRemote:  b.PlannedRemote.Load(),
		DeployCount:    b.DeployCount.Load(),
		DeployErrors:   b.DeployErrors.Load(),
		DeployAvgNanos: b.getAvgDeployNanos(),
		Deployed:       b.Deployed.Load(),
		AlreadyDone:    b.AlreadyDone.Load(),
		Skipped:        b.Skipped.Load(),
		Cancelled:      b.Cancelled.Load(),
		WarmUpCount:    b.WarmUpCount.Load(),
		WarmUpErrors:   b.WarmUpErrors.Load(),
		CleanCount:     b.CleanCount.Load(),
		CleanRemoved:   b.CleanRemoved.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgDeployNanos() int64 {
	count := b.DeployCount.Load()
	if count == 0 {
		return 0
	}
	return b.DeployTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PlanCount      int64
	PlanErrors     int64
	PlannedLocal   int64
	PlannedRemote  int64
	DeployCount    int64
	DeployErrors   int64
	DeployAvgNanos int64
	Deployed       int64
	AlreadyDone    int64
	Skipped        int64
	Cancelled      int64
	WarmUpCount    int64
	WarmUpErrors   int64
	CleanCount     int64
	CleanRemoved   int64
}
