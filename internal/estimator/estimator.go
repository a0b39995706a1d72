// Package estimator predicts how long a citizen waits before being called.
// Everything here is pure: no state, no I/O, negative inputs clamp to zero.
package estimator

import (
	"math"
	"time"
)

const (
	// VarianceBuffer pads the naive estimate for real-world variance.
	VarianceBuffer = 1.15
	// CallWindow is the half-width of the expected call-time range.
	CallWindow = 15 * time.Minute
	// MinServedForSample is how many completions make the average trustworthy.
	MinServedForSample = 5
)

// Momentum labels.
const (
	MomentumExcellent = "excellent"
	MomentumGood      = "good"
	MomentumModerate  = "moderate"
	MomentumSlow      = "slow"
)

// SessionStats is the slice of session state confidence depends on.
type SessionStats struct {
	TotalServed     int
	HasObservedMean bool
	HasManualMean   bool
}

// Estimate returns the predicted wait in whole minutes.
func Estimate(peopleAhead int, avgServiceMinutes float64) int {
	if peopleAhead < 0 {
		peopleAhead = 0
	}
	if avgServiceMinutes < 0 || math.IsNaN(avgServiceMinutes) {
		avgServiceMinutes = 0
	}
	return int(math.Round(float64(peopleAhead) * avgServiceMinutes * VarianceBuffer))
}

// Confidence scores the estimate in [0, 1].
func Confidence(stats SessionStats) float64 {
	c := 0.5
	if stats.TotalServed >= MinServedForSample {
		c += 0.2
	}
	if stats.HasObservedMean {
		c += 0.2
	}
	if stats.HasManualMean {
		c += 0.1
	}
	// 0.5+0.2+0.2+0.1 lands on 1.0000000000000002 in float64
	c = math.Round(c*100) / 100
	return math.Min(c, 1.0)
}

// CallTimeRange is a ±15 minute window around now+estimate.
func CallTimeRange(now time.Time, estimatedMinutes int) (earliest, latest time.Time) {
	if estimatedMinutes < 0 {
		estimatedMinutes = 0
	}
	expected := now.Add(time.Duration(estimatedMinutes) * time.Minute)
	return expected.Add(-CallWindow), expected.Add(CallWindow)
}

// Momentum describes how quickly the queue is moving from the number of
// citizens still waiting.
func Momentum(waiting int) string {
	switch {
	case waiting <= 0:
		return MomentumExcellent
	case waiting < 5:
		return MomentumGood
	case waiting < 10:
		return MomentumModerate
	default:
		return MomentumSlow
	}
}
