package device

import (
	"github.com/ardnew/usblog/device/hal"
	"github.com/ardnew/usblog/pkg"
)

// pollResult is one scripted answer to Poll.
type pollResult struct {
	activity bool
	state    hal.State
	err      error
}

// mockBus is a scripted hal.Bus.
type mockBus struct {
	polls      []pollResult
	state      hal.State
	configures int
	configErr  error
	committed  bool

	// accept limits how many bytes each Write call takes; the last entry
	// repeats. Nil accepts everything.
	accept   []int
	writeErr error
	written  []byte
	onWrite  func()
}

func (b *mockBus) Poll() (bool, error) {
	if len(b.polls) == 0 {
		return false, nil
	}
	p := b.polls[0]
	b.polls = b.polls[1:]
	if p.activity {
		b.state = p.state
		if p.state != hal.StateConfigured {
			b.committed = false
		}
	}
	return p.activity, p.err
}

func (b *mockBus) State() hal.State { return b.state }

func (b *mockBus) Configure() error {
	b.configures++
	if b.configErr != nil {
		return b.configErr
	}
	if b.committed {
		return pkg.ErrAlreadyConfigured
	}
	b.committed = true
	return nil
}

func (b *mockBus) Write(data []byte) (int, error) {
	if b.onWrite != nil {
		b.onWrite()
	}
	if b.writeErr != nil {
		return 0, b.writeErr
	}
	n := len(data)
	if b.accept != nil {
		limit := b.accept[0]
		if len(b.accept) > 1 {
			b.accept = b.accept[1:]
		}
		if n > limit {
			n = limit
		}
	}
	if n == 0 {
		return 0, pkg.ErrWouldBlock
	}
	b.written = append(b.written, data[:n]...)
	return n, nil
}

// mockTimer records the calls made to it.
type mockTimer struct {
	calls      []string
	elapsed    int
	irqEnabled bool
	mode       hal.TimerMode
	load       uint32
}

func (t *mockTimer) Stop() { t.calls = append(t.calls, "stop") }
func (t *mockTimer) Run() { t.calls = append(t.calls, "run") }
func (t *mockTimer) Reset() { t.calls = append(t.calls, "reset") }
func (t *mockTimer) IsElapsed() bool { return t.elapsed > 0 }
func (t *mockTimer) SetMode(mode hal.TimerMode) { t.calls = append(t.calls, "mode"); t.mode = mode }
func (t *mockTimer) SetLoad(micros uint32) { t.calls = append(t.calls, "load"); t.load = micros }
func (t *mockTimer) SetInterruptEnabled(e bool) { t.calls = append(t.calls, "irq"); t.irqEnabled = e }
func (t *mockTimer) ClearElapsed() {
	if t.elapsed > 0 {
		t.elapsed--
	}
}

// mockAdapter bundles a mockBus and mockTimer as a hal.Adapter.
type mockAdapter struct {
	*mockBus
	timer *mockTimer
	irq   chan struct{}
}

func (a *mockAdapter) Timer() hal.Timer { return a.timer }
func (a *mockAdapter) Interrupt() <-chan struct{} { return a.irq }

func configuredPoll() pollResult {
	return pollResult{activity: true, state: hal.StateConfigured}
}

func resetPoll() pollResult {
	return pollResult{activity: true, state: hal.StateDefault}
}
