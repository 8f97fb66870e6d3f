package ratelimit

import (
	"math/rand"
	"sync"
	"time"
)

// Pacer spaces requests out at human browsing speed. Delays are drawn
// from [min, max] with jitter, credited against the time already spent
// since the previous request, and widened when the target starts
// blocking.
type Pacer struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	jitter     time.Duration
	floorMin   time.Duration
	floorMax   time.Duration
	lastAction time.Time
	blocked    int
	clean      int
	rng        *rand.Rand
}

func New(minDelay, maxDelay, jitter time.Duration, seed int64) *Pacer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Pacer{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   jitter,
		floorMin: minDelay,
		floorMax: maxDelay,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Delay returns how long to wait before the next request, already
// discounted by the time elapsed since the previous one.
func (p *Pacer) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	delay := p.minDelay
	if spread := p.maxDelay - p.minDelay; spread > 0 {
		delay += time.Duration(p.rng.Int63n(int64(spread)))
	}
	if p.jitter > 0 {
		delay += time.Duration(p.rng.Int63n(int64(2*p.jitter))) - p.jitter
	}

	if !p.lastAction.IsZero() {
		delay -= time.Since(p.lastAction)
	}
	p.lastAction = time.Now()

	if delay < 0 {
		return 0
	}
	return delay
}

// RecordBlocked widens the delay window after repeated blocks. Three
// strikes raise both bounds by half, capped at a minute.
func (p *Pacer) RecordBlocked() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.blocked++
	p.clean = 0

	if p.blocked < 3 {
		return
	}
	p.blocked = 0

	p.minDelay = clampDuration(time.Duration(float64(p.minDelay)*1.5), p.floorMin, time.Minute)
	p.maxDelay = clampDuration(time.Duration(float64(p.maxDelay)*1.5), p.floorMax, 2*time.Minute)
}

// RecordClean eases the window back toward its configured floor after a
// streak of clean responses.
func (p *Pacer) RecordClean() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clean++
	p.blocked = 0

	if p.clean < 5 {
		return
	}
	p.clean = 0

	p.minDelay = clampDuration(time.Duration(float64(p.minDelay)*0.9), p.floorMin, time.Minute)
	p.maxDelay = clampDuration(time.Duration(float64(p.maxDelay)*0.9), p.floorMax, 2*time.Minute)
}

// Window reports the current delay bounds.
func (p *Pacer) Window() (min, max time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.minDelay, p.maxDelay
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
