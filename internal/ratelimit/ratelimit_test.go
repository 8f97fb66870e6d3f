package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayWithinWindow(t *testing.T) {
	p := New(100*time.Millisecond, 200*time.Millisecond, 20*time.Millisecond, 1)

	d := p.Delay()
	assert.GreaterOrEqual(t, d, 80*time.Millisecond)
	assert.LessOrEqual(t, d, 220*time.Millisecond)
}

func TestDelayCreditsElapsedTime(t *testing.T) {
	p := New(30*time.Millisecond, 30*time.Millisecond, 0, 1)

	require.Equal(t, 30*time.Millisecond, p.Delay())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, time.Duration(0), p.Delay())
}

func TestRecordBlockedWidensWindow(t *testing.T) {
	p := New(10*time.Second, 20*time.Second, 0, 1)

	p.RecordBlocked()
	p.RecordBlocked()
	min, max := p.Window()
	assert.Equal(t, 10*time.Second, min)
	assert.Equal(t, 20*time.Second, max)

	p.RecordBlocked()
	min, max = p.Window()
	assert.Equal(t, 15*time.Second, min)
	assert.Equal(t, 30*time.Second, max)
}

func TestRecordCleanEasesBackToFloor(t *testing.T) {
	p := New(10*time.Second, 20*time.Second, 0, 1)

	for i := 0; i < 3; i++ {
		p.RecordBlocked()
	}
	min, _ := p.Window()
	require.Equal(t, 15*time.Second, min)

	for i := 0; i < 25; i++ {
		p.RecordClean()
	}
	min, max := p.Window()
	assert.Equal(t, 10*time.Second, min)
	assert.Equal(t, 20*time.Second, max)
}

func TestCleanStreakResetOnBlock(t *testing.T) {
	p := New(10*time.Second, 20*time.Second, 0, 1)

	for i := 0; i < 4; i++ {
		p.RecordClean()
	}
	p.RecordBlocked()
	for i := 0; i < 4; i++ {
		p.RecordClean()
	}
	min, max := p.Window()
	assert.Equal(t, 10*time.Second, min)
	assert.Equal(t, 20*time.Second, max)
}
