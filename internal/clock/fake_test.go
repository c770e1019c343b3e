package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AfterFuncFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })

	c.Advance(500 * time.Millisecond)
	assert.Empty(t, fired)
	assert.Equal(t, 2, c.Pending())

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, epoch.Add(2500*time.Millisecond), c.Now())
}

func TestFake_StopPreventsFire(t *testing.T) {
	c := Fake(epoch)
	called := false
	timer := c.AfterFunc(time.Second, func() { called = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(time.Minute)
	assert.False(t, called)
}

func TestFake_CallbackMayScheduleTimer(t *testing.T) {
	c := Fake(epoch)
	count := 0
	c.AfterFunc(time.Second, func() {
		count++
		c.AfterFunc(time.Second, func() { count++ })
	})

	c.Advance(time.Second)
	assert.Equal(t, 1, count)
	c.Advance(time.Second)
	assert.Equal(t, 2, count)
}
