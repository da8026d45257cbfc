package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_StartsAtEpoch(t *testing.T) {
	c := NewFakeClock()
	assert.Equal(t, Epoch, c.Now())
}

func TestFakeClock_AdvanceFiresDueTimersInOrder(t *testing.T) {
	c := NewFakeClock()
	var fired []string

	c.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(10*time.Second, func() { fired = append(fired, "late") })

	c.Advance(5 * time.Second)

	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, Epoch.Add(5*time.Second), c.Now())
	assert.Equal(t, 1, c.Pending())
}

func TestFakeClock_CallbackSeesDeadlineAsNow(t *testing.T) {
	c := NewFakeClock()
	var seen time.Time
	c.AfterFunc(2*time.Second, func() { seen = c.Now() })

	c.Advance(time.Minute)

	assert.Equal(t, Epoch.Add(2*time.Second), seen)
}

func TestFakeClock_NestedTimersInsideWindowFire(t *testing.T) {
	c := NewFakeClock()
	var fired []string
	c.AfterFunc(time.Second, func() {
		fired = append(fired, "outer")
		c.AfterFunc(time.Second, func() { fired = append(fired, "inner") })
	})

	c.Advance(3 * time.Second)

	assert.Equal(t, []string{"outer", "inner"}, fired)
}

func TestFakeClock_Stop(t *testing.T) {
	c := NewFakeClock()
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports nothing pending")

	c.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestFakeClock_SetBackwardsDoesNotFire(t *testing.T) {
	c := NewFakeClock()
	fired := false
	c.AfterFunc(time.Second, func() { fired = true })

	c.Set(Epoch.Add(-time.Hour))

	assert.False(t, fired)
	assert.Equal(t, Epoch.Add(-time.Hour), c.Now())
}
