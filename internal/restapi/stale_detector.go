package restapi

import (
	"time"

	"rosariobus.dev/internal/coordinator"
)

const staleIntervals = 3

// staleThreshold is how long a coordinator may go without a successful
// refresh before its data counts as stale.
func staleThreshold(pollInterval time.Duration) time.Duration {
	if pollInterval <= 0 {
		pollInterval = coordinator.DefaultInterval
	}
	return staleIntervals * pollInterval
}

type StaleDetector struct {
	threshold time.Duration
}

func NewStaleDetector() *StaleDetector {
	return &StaleDetector{
		threshold: staleThreshold(0),
	}
}

func (d *StaleDetector) WithThreshold(threshold time.Duration) *StaleDetector {
	d.threshold = threshold
	return d
}

// Check reports whether data last refreshed at lastUpdate is stale at now.
// Data that was never refreshed is stale.
func (d *StaleDetector) Check(lastUpdate, now time.Time) bool {
	if lastUpdate.IsZero() {
		return true
	}
	return d.Age(lastUpdate, now) > d.threshold
}

func (d *StaleDetector) Age(lastUpdate, now time.Time) time.Duration {
	if lastUpdate.IsZero() {
		return d.threshold + 1
	}
	return now.Sub(lastUpdate)
}
