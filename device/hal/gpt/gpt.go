// Package gpt implements a software general purpose timer for hosted
// platforms.
//
// The timer counts in real time with a [time.Ticker]. Each expiry increments
// an elapsed count, the hosted stand-in for a status flag, and raises the
// interrupt line when the timer interrupt is enabled. Expiries that happen
// before the handler runs accumulate until they are cleared one by one.
package gpt

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/usblog/device/hal"
	"github.com/ardnew/usblog/device/hal/irq"
	"github.com/ardnew/usblog/pkg"
)

// Timer is a software [hal.Timer].
type Timer struct {
	line *irq.Line

	mu      sync.Mutex
	load    uint32
	mode    hal.TimerMode
	running bool
	done    chan struct{}
	reload  chan struct{}

	elapsed    atomic.Uint32
	irqEnabled atomic.Bool
	expiries   atomic.Uint64
}

var _ hal.Timer = (*Timer)(nil)

// New returns a stopped timer that raises line on expiry.
func New(line *irq.Line) *Timer {
	return &Timer{
		line:   line,
		mode:   hal.TimerOneShot,
		reload: make(chan struct{}, 1),
	}
}

// Stop halts counting. Pending elapsed flags are kept.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	close(t.done)
	t.running = false
}

// Run starts counting. It does nothing if the timer is already running or
// has no load.
func (t *Timer) Run() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	if t.load == 0 {
		pkg.LogWarn(pkg.ComponentHAL, "timer run without load")
		return
	}
	t.running = true
	t.done = make(chan struct{})
	period := time.Duration(t.load) * time.Microsecond
	go t.count(t.done, period, t.mode)
}

// Reset restarts the current period.
func (t *Timer) Reset() {
	select {
	case t.reload <- struct{}{}:
	default:
	}
}

// IsElapsed reports whether an expiry is pending.
func (t *Timer) IsElapsed() bool {
	return t.elapsed.Load() > 0
}

// ClearElapsed acknowledges one pending expiry.
func (t *Timer) ClearElapsed() {
	for {
		n := t.elapsed.Load()
		if n == 0 || t.elapsed.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// SetInterruptEnabled routes expiries to the interrupt line.
func (t *Timer) SetInterruptEnabled(enabled bool) {
	t.irqEnabled.Store(enabled)
}

// SetMode selects one-shot or repeat operation. It takes effect on the next
// Run.
func (t *Timer) SetMode(mode hal.TimerMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = mode
}

// SetLoad sets the period in microseconds. It takes effect on the next Run.
func (t *Timer) SetLoad(micros uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.load = micros
}

// Running reports whether the timer is counting.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Expiries returns the number of expiries since creation.
func (t *Timer) Expiries() uint64 {
	return t.expiries.Load()
}

// Expire records one expiry immediately, as if the period had ended.
func (t *Timer) Expire() {
	t.elapsed.Add(1)
	t.expiries.Add(1)
	if t.irqEnabled.Load() && t.line != nil {
		t.line.Raise()
	}
}

func (t *Timer) count(done <-chan struct{}, period time.Duration, mode hal.TimerMode) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.reload:
			ticker.Reset(period)
		case <-ticker.C:
			t.Expire()
			if mode == hal.TimerOneShot {
				t.mu.Lock()
				if t.done == done {
					t.running = false
				}
				t.mu.Unlock()
				return
			}
		}
	}
}
