package device

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/ardnew/usblog/device/logqueue"
	"github.com/ardnew/usblog/pkg"
)

// Handler is the USB interrupt service routine. It owns the consumer end of
// the log queue.
type Handler struct {
	transport *Transport
	config    *Configurator
	consumer  *logqueue.Consumer
	status    *Status

	busy    atomic.Bool
	running atomic.Bool
}

// NewHandler returns a handler draining consumer through transport.
func NewHandler(transport *Transport, config *Configurator, consumer *logqueue.Consumer, status *Status) *Handler {
	return &Handler{
		transport: transport,
		config:    config,
		consumer:  consumer,
		status:    status,
	}
}

// Status returns the handler's observable status.
func (h *Handler) Status() *Status {
	return h.status
}

// Service handles one interrupt assertion. It clears every pending timer
// expiry, polls the bus, updates the configuration state, and, while
// configured, moves queued bytes to the bulk endpoint until the queue is
// empty or the endpoint stops accepting. It never waits.
//
// A call made while another is in progress returns immediately.
func (h *Handler) Service() {
	if !h.busy.CompareAndSwap(false, true) {
		h.status.reentries.Add(1)
		return
	}
	defer h.busy.Store(false)

	s := h.status
	s.interrupts.Add(1)
	if n := h.transport.ClearElapsed(); n > 0 {
		s.timerEvents.Add(uint64(n))
	}

	activity, err := h.transport.Poll()
	s.polls.Add(1)
	if activity {
		s.activity.Add(1)
	}
	if err != nil {
		h.fault("poll", err)
	}
	if err := h.config.Update(activity, h.transport.State()); err != nil {
		h.fault("configure", err)
	}
	if !h.config.Configured() {
		return
	}
	h.drain()
}

func (h *Handler) drain() {
	for {
		g, ok := h.consumer.Read()
		if !ok {
			return
		}
		n, err := h.transport.Write(g.Bytes())
		if n > 0 {
			if rerr := g.Release(n); rerr != nil {
				h.fault("write", rerr)
				return
			}
			h.status.bytesSent.Add(uint64(n))
		}
		switch {
		case err == nil:
		case errors.Is(err, pkg.ErrWouldBlock):
			h.status.deferrals.Add(1)
			return
		default:
			h.fault("write", err)
			return
		}
	}
}

func (h *Handler) fault(stage string, err error) {
	h.status.recordFault(stage, err)
	pkg.LogDebug(pkg.ComponentIRQ, "transport fault", "stage", stage, "err", err)
}

// Run services irq on the calling goroutine, locked to its OS thread, until
// ctx is done or irq is closed. Only one Run may be active per handler.
func (h *Handler) Run(ctx context.Context, irq <-chan struct{}) error {
	if !h.running.CompareAndSwap(false, true) {
		return pkg.ErrAlreadyRunning
	}
	defer h.running.Store(false)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	pkg.LogDebug(pkg.ComponentIRQ, "interrupt handler running")
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-irq:
			if !ok {
				return nil
			}
			h.Service()
		}
	}
}

// Running reports whether Run is active.
func (h *Handler) Running() bool {
	return h.running.Load()
}

// Close stops the drain timer. Queued bytes stay in the queue.
func (h *Handler) Close() {
	h.transport.StopTimer()
}
