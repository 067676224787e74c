package clock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"palantir/pkg/clock"
)

func TestClock_StepsThroughHorizon(t *testing.T) {
	c := clock.New(3)
	assert.Equal(t, 0, c.Now())

	assert.True(t, c.Step())
	assert.Equal(t, 1, c.Now())

	assert.True(t, c.Step())
	assert.Equal(t, 2, c.Now())

	assert.False(t, c.Step())
	assert.Equal(t, 3, c.Now())
}

func TestClock_SinglePeriodNeverSteps(t *testing.T) {
	c := clock.New(1)
	assert.False(t, c.Step())
	assert.Equal(t, 1, c.Now())
}

func TestClock_NewPanicsOnNonPositivePeriods(t *testing.T) {
	assert.Panics(t, func() { clock.New(0) })
	assert.Panics(t, func() { clock.New(-1) })
}
