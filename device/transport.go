package device

import (
	"fmt"
	"time"

	"github.com/ardnew/usblog/device/hal"
	"github.com/ardnew/usblog/pkg"
)

// ConfigState is the configuration state of the device as derived from the
// most recent bus poll.
type ConfigState uint8

// Configuration states.
const (
	Unconfigured ConfigState = iota // Not configured; includes reset and detached
	Configured                      // Host selected the configuration
)

// String returns a human-readable state name.
func (s ConfigState) String() string {
	switch s {
	case Unconfigured:
		return "Unconfigured"
	case Configured:
		return "Configured"
	default:
		return fmt.Sprintf("Unknown ConfigState (%d)", s)
	}
}

// DefaultTimerPeriod is the period of the drain timer.
const DefaultTimerPeriod = 10 * time.Millisecond

// Transport is the USB side of the log pipeline: the device controller and
// the periodic timer sharing its interrupt.
type Transport struct {
	bus   hal.Bus
	timer hal.Timer
}

// NewTransport returns a transport over bus and timer.
func NewTransport(bus hal.Bus, timer hal.Timer) *Transport {
	return &Transport{bus: bus, timer: timer}
}

// Poll services pending bus activity and reports whether any was processed.
func (t *Transport) Poll() (bool, error) {
	return t.bus.Poll()
}

// State returns the configuration state observed by the last Poll.
func (t *Transport) State() ConfigState {
	if t.bus.State() == hal.StateConfigured {
		return Configured
	}
	return Unconfigured
}

// BusState returns the detailed device state observed by the last Poll.
func (t *Transport) BusState() hal.State {
	return t.bus.State()
}

// Configure commits the configuration to hardware.
func (t *Transport) Configure() error {
	return t.bus.Configure()
}

// Write offers p to the bulk IN endpoint. It may accept a prefix of p. When
// nothing is accepted it returns [pkg.ErrWouldBlock]; the caller keeps the
// bytes and retries later.
func (t *Transport) Write(p []byte) (int, error) {
	n, err := t.bus.Write(p)
	if err == nil && n == 0 && len(p) > 0 {
		return 0, pkg.ErrWouldBlock
	}
	return n, err
}

// StartTimer programs the timer for a repeating period and starts it with
// its interrupt enabled. Stale elapsed flags are cleared first so the first
// interrupt reflects a full period.
func (t *Transport) StartTimer(period time.Duration) error {
	micros := period / time.Microsecond
	if micros <= 0 || micros > 1<<32-1 {
		return fmt.Errorf("%w: timer period %v", pkg.ErrInvalidParameter, period)
	}
	t.timer.Stop()
	t.ClearElapsed()
	t.timer.SetInterruptEnabled(true)
	t.timer.SetMode(hal.TimerRepeat)
	t.timer.SetLoad(uint32(micros))
	t.timer.Reset()
	t.timer.Run()
	pkg.LogDebug(pkg.ComponentTransport, "timer started", "period", period)
	return nil
}

// StopTimer halts the timer and masks its interrupt.
func (t *Transport) StopTimer() {
	t.timer.Stop()
	t.timer.SetInterruptEnabled(false)
}

// ClearElapsed acknowledges every pending timer expiry and returns how many
// were cleared.
func (t *Transport) ClearElapsed() int {
	n := 0
	for t.timer.IsElapsed() {
		t.timer.ClearElapsed()
		n++
	}
	return n
}
