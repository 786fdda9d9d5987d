package shedding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msController(target time.Duration) *Controller {
	return NewController(ControllerConfig{TargetLatency: target}, nil)
}

func TestController_NoAdjustmentBelowMinSamples(t *testing.T) {
	c := msController(50 * time.Millisecond)

	adj := c.Record(500*time.Millisecond, 0)
	assert.Equal(t, ActionStable, adj.Action)
	assert.Equal(t, 1.0, c.Rate())

	adj = c.Record(500*time.Millisecond, 0)
	assert.Equal(t, ActionStable, adj.Action)
	assert.Equal(t, 1.0, c.Rate())
	assert.Empty(t, c.History())
}

func TestController_SustainedOverloadDecreasesRate(t *testing.T) {
	c := msController(50 * time.Millisecond)

	latencies := []time.Duration{
		200 * time.Millisecond,
		210 * time.Millisecond,
		205 * time.Millisecond,
		220 * time.Millisecond,
		215 * time.Millisecond,
	}

	prev := c.Rate()
	for i, l := range latencies {
		adj := c.Record(l, 0)
		if i < 2 {
			continue
		}
		// Mean is ~4x target from the third sample on.
		assert.Equal(t, ActionAggressive, adj.Action)
		assert.Less(t, c.Rate(), prev, "rate must strictly decrease under overload")
		prev = c.Rate()
	}

	// Keep the pressure on; the rate floors at the configured minimum.
	for i := 0; i < 50; i++ {
		c.Record(200*time.Millisecond, 0)
	}
	assert.InDelta(t, 0.5, c.Rate(), 1e-9)
}

func TestController_ModerateTier(t *testing.T) {
	c := msController(100 * time.Millisecond)

	// Mean settles around 1.6x target.
	for i := 0; i < 5; i++ {
		c.Record(160*time.Millisecond, 0)
	}
	history := c.History()
	require.NotEmpty(t, history)
	assert.Equal(t, ActionModerate, history[len(history)-1].Action)
	assert.GreaterOrEqual(t, c.Rate(), moderateFloor)
	assert.Less(t, c.Rate(), 1.0)

	for i := 0; i < 100; i++ {
		c.Record(160*time.Millisecond, 0)
	}
	assert.InDelta(t, moderateFloor, c.Rate(), 1e-9)
}

func TestController_ModerateTierRespectsConfiguredMinimum(t *testing.T) {
	// A configured minimum above the moderate floor must hold under
	// sustained moderate pressure.
	c := NewController(ControllerConfig{
		TargetLatency: 100 * time.Millisecond,
		MinRate:       0.9,
	}, nil)

	for i := 0; i < 200; i++ {
		c.Record(160*time.Millisecond, 0)
	}
	assert.InDelta(t, 0.9, c.Rate(), 1e-9)
}

func TestController_RelaxRecoversTowardFull(t *testing.T) {
	c := msController(50 * time.Millisecond)

	// Push the rate down first.
	for i := 0; i < 20; i++ {
		c.Record(200*time.Millisecond, 0)
	}
	require.InDelta(t, 0.5, c.Rate(), 1e-9)

	// Comfortable latency brings it back up, capped at 1.0.
	for i := 0; i < 60; i++ {
		c.Record(1*time.Millisecond, 0)
	}
	assert.InDelta(t, 1.0, c.Rate(), 1e-9)
}

func TestController_StableBandHoldsRate(t *testing.T) {
	c := msController(50 * time.Millisecond)

	for i := 0; i < 10; i++ {
		adj := c.Record(50*time.Millisecond, 3)
		if i >= 2 {
			assert.Equal(t, ActionStable, adj.Action)
		}
	}
	assert.Equal(t, 1.0, c.Rate())

	// Stable adjustments are still logged once enough samples exist.
	history := c.History()
	require.Len(t, history, 8)
	assert.Equal(t, 3, history[0].ProtectedKeys)
}

func TestController_RateAlwaysBounded(t *testing.T) {
	c := msController(50 * time.Millisecond)

	for i := 0; i < 200; i++ {
		c.Record(time.Duration(1+i%500)*time.Millisecond, 0)
		rate := c.Rate()
		assert.GreaterOrEqual(t, rate, 0.5)
		assert.LessOrEqual(t, rate, 1.0)
	}
}

func TestController_Defaults(t *testing.T) {
	c := NewController(ControllerConfig{}, nil)
	assert.Equal(t, 50*time.Millisecond, c.TargetLatency())
	assert.Equal(t, 1.0, c.Rate())
}
