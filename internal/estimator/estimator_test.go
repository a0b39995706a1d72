package estimator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name   string
		ahead  int
		avg    float64
		expect int
	}{
		{"nobody ahead", 0, 30, 0},
		{"one ahead", 1, 20, 23},
		{"three ahead", 3, 12, 41},
		{"fractional average", 2, 7.5, 17},
		{"negative ahead clamps", -4, 30, 0},
		{"negative average clamps", 3, -10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Estimate(tt.ahead, tt.avg))
		})
	}
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 0.5, Confidence(SessionStats{}))
	assert.Equal(t, 0.5, Confidence(SessionStats{TotalServed: 4}))
	assert.Equal(t, 0.7, Confidence(SessionStats{TotalServed: 5}))
	assert.Equal(t, 0.9, Confidence(SessionStats{TotalServed: 9, HasObservedMean: true}))
	assert.Equal(t, 0.6, Confidence(SessionStats{HasManualMean: true}))
	assert.Equal(t, 1.0, Confidence(SessionStats{TotalServed: 50, HasObservedMean: true, HasManualMean: true}))
}

func TestCallTimeRange(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	earliest, latest := CallTimeRange(now, 40)
	assert.Equal(t, now.Add(25*time.Minute), earliest)
	assert.Equal(t, now.Add(55*time.Minute), latest)

	earliest, latest = CallTimeRange(now, -5)
	assert.Equal(t, now.Add(-15*time.Minute), earliest)
	assert.Equal(t, now.Add(15*time.Minute), latest)
}

func TestMomentum(t *testing.T) {
	assert.Equal(t, MomentumExcellent, Momentum(0))
	assert.Equal(t, MomentumGood, Momentum(4))
	assert.Equal(t, MomentumModerate, Momentum(5))
	assert.Equal(t, MomentumModerate, Momentum(9))
	assert.Equal(t, MomentumSlow, Momentum(10))
}
