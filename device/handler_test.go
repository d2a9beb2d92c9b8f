package device

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ardnew/usblog/device/logqueue"
	"github.com/ardnew/usblog/pkg"
)

func newTestHandler(t *testing.T, bus *mockBus, timer *mockTimer, size int) (*logqueue.Producer, *Handler) {
	t.Helper()
	q := logqueue.New(make([]byte, size))
	prod, cons, err := q.Split()
	if err != nil {
		t.Fatal(err)
	}
	tr := NewTransport(bus, timer)
	cfg := NewConfigurator(tr)
	return prod, NewHandler(tr, cfg, cons, newStatus(q, cfg))
}

func TestHandler_DrainsInOrder(t *testing.T) {
	bus := &mockBus{polls: []pollResult{configuredPoll()}}
	prod, h := newTestHandler(t, bus, &mockTimer{}, 32)

	var want []byte
	for i, n := range []int{3, 5, 2, 7, 4} {
		r := bytes.Repeat([]byte{byte('a' + i)}, n)
		if err := prod.Push(r); err != nil {
			t.Fatal(err)
		}
		want = append(want, r...)
	}

	h.Service()

	if !bytes.Equal(bus.written, want) {
		t.Errorf("written %q, want %q", bus.written, want)
	}
	s := h.Status().Snapshot()
	if s.BytesSent != uint64(len(want)) || s.Queued != 0 {
		t.Errorf("BytesSent = %d Queued = %d", s.BytesSent, s.Queued)
	}
	if s.Commits != 1 || !s.Configured {
		t.Errorf("Commits = %d Configured = %v", s.Commits, s.Configured)
	}
}

func TestHandler_PartialWriteResumes(t *testing.T) {
	bus := &mockBus{
		polls:  []pollResult{configuredPoll()},
		accept: []int{2, 0},
	}
	prod, h := newTestHandler(t, bus, &mockTimer{}, 16)
	if err := prod.Push([]byte("hello")); err != nil {
		t.Fatal(err)
	}

	h.Service()
	if string(bus.written) != "he" {
		t.Fatalf("first interrupt wrote %q, want he", bus.written)
	}
	s := h.Status().Snapshot()
	if s.Queued != 3 || s.Deferrals != 1 {
		t.Errorf("Queued = %d Deferrals = %d, want 3 and 1", s.Queued, s.Deferrals)
	}

	bus.accept = nil
	h.Service()
	if string(bus.written) != "hello" {
		t.Errorf("after second interrupt wrote %q, want hello", bus.written)
	}
	if q := h.Status().Snapshot().Queued; q != 0 {
		t.Errorf("Queued = %d, want 0", q)
	}
}

func TestHandler_HoldsWhileUnconfigured(t *testing.T) {
	bus := &mockBus{polls: []pollResult{resetPoll()}}
	prod, h := newTestHandler(t, bus, &mockTimer{}, 16)
	_ = prod.Push([]byte("queued"))

	h.Service()

	if len(bus.written) != 0 {
		t.Errorf("wrote %q while unconfigured", bus.written)
	}
	if q := h.Status().Snapshot().Queued; q != 6 {
		t.Errorf("Queued = %d, want 6", q)
	}
}

func TestHandler_StopsAfterReset(t *testing.T) {
	bus := &mockBus{polls: []pollResult{configuredPoll(), resetPoll(), configuredPoll()}}
	prod, h := newTestHandler(t, bus, &mockTimer{}, 16)

	h.Service()
	_ = prod.Push([]byte("abc"))
	h.Service()
	if len(bus.written) != 0 {
		t.Errorf("wrote %q after reset", bus.written)
	}
	h.Service()
	if string(bus.written) != "abc" {
		t.Errorf("wrote %q after re-enumeration, want abc", bus.written)
	}
	if c := h.Status().Snapshot().Commits; c != 2 {
		t.Errorf("Commits = %d, want 2", c)
	}
}

func TestHandler_ClearsTimerBurst(t *testing.T) {
	timer := &mockTimer{elapsed: 4}
	_, h := newTestHandler(t, &mockBus{}, timer, 8)

	h.Service()

	if timer.elapsed != 0 {
		t.Errorf("elapsed = %d after Service, want 0", timer.elapsed)
	}
	if n := h.Status().Snapshot().TimerEvents; n != 4 {
		t.Errorf("TimerEvents = %d, want 4", n)
	}
}

func TestHandler_RefusesReentry(t *testing.T) {
	bus := &mockBus{polls: []pollResult{configuredPoll()}}
	prod, h := newTestHandler(t, bus, &mockTimer{}, 16)
	bus.onWrite = func() { h.Service() }
	_ = prod.Push([]byte("x"))

	h.Service()

	s := h.Status().Snapshot()
	if s.Reentries != 1 || s.Interrupts != 1 {
		t.Errorf("Reentries = %d Interrupts = %d, want 1 and 1", s.Reentries, s.Interrupts)
	}
	if string(bus.written) != "x" {
		t.Errorf("written %q, want x", bus.written)
	}
}

func TestHandler_RecordsFaults(t *testing.T) {
	tests := []struct {
		name      string
		bus       *mockBus
		wantStage string
		wantQueue int
	}{
		{
			name:      "write",
			bus:       &mockBus{polls: []pollResult{configuredPoll()}, writeErr: pkg.ErrProtocol},
			wantStage: "write",
			wantQueue: 4,
		},
		{
			name:      "poll",
			bus:       &mockBus{polls: []pollResult{{err: pkg.ErrProtocol}}},
			wantStage: "poll",
			wantQueue: 4,
		},
		{
			name:      "configure",
			bus:       &mockBus{polls: []pollResult{configuredPoll()}, configErr: pkg.ErrProtocol},
			wantStage: "configure",
			wantQueue: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prod, h := newTestHandler(t, tt.bus, &mockTimer{}, 16)
			_ = prod.Push([]byte("data"))

			h.Service()

			f := h.Status().Fault()
			if f == nil {
				t.Fatal("Fault() = nil")
			}
			if f.Stage != tt.wantStage || !errors.Is(f, pkg.ErrProtocol) {
				t.Errorf("Fault() = %v, want %s stage wrapping ErrProtocol", f, tt.wantStage)
			}
			s := h.Status().Snapshot()
			if s.Faults != 1 || s.Queued != tt.wantQueue {
				t.Errorf("Faults = %d Queued = %d", s.Faults, s.Queued)
			}
			if h.Status().ClearFault() == nil || h.Status().Fault() != nil {
				t.Error("ClearFault() did not reset the fault")
			}
		})
	}
}

func TestHandler_DropsAreVisible(t *testing.T) {
	prod, h := newTestHandler(t, &mockBus{}, &mockTimer{}, 4)
	_ = prod.Push([]byte("too long"))
	if d := h.Status().Snapshot().Dropped; d != 1 {
		t.Errorf("Dropped = %d, want 1", d)
	}
}

func TestHandler_Run(t *testing.T) {
	bus := &mockBus{polls: []pollResult{configuredPoll()}}
	prod, h := newTestHandler(t, bus, &mockTimer{}, 16)
	_ = prod.Push([]byte("run"))

	irq := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, irq) }()

	irq <- struct{}{}
	deadline := time.Now().Add(2 * time.Second)
	for h.Status().Snapshot().Interrupts == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := h.Run(ctx, irq); !errors.Is(err, pkg.ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if h.Running() {
		t.Error("Running() = true after Run returned")
	}
	if h.Status().Snapshot().BytesSent != 3 {
		t.Errorf("BytesSent = %d, want 3", h.Status().Snapshot().BytesSent)
	}
}

func TestHandler_RunStopsOnClosedLine(t *testing.T) {
	_, h := newTestHandler(t, &mockBus{}, &mockTimer{}, 8)
	irq := make(chan struct{})
	close(irq)
	if err := h.Run(context.Background(), irq); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
