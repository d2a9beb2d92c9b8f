package device

import (
	"sync/atomic"
	"time"

	"github.com/ardnew/usblog/device/logqueue"
)

// Status collects what the interrupt handler observed. It is written from
// interrupt context and safe to read from anywhere.
type Status struct {
	queue  *logqueue.Queue
	config *Configurator

	interrupts  atomic.Uint64
	reentries   atomic.Uint64
	timerEvents atomic.Uint64
	polls       atomic.Uint64
	activity    atomic.Uint64
	bytesSent   atomic.Uint64
	deferrals   atomic.Uint64
	faults      atomic.Uint64
	lastFault   atomic.Pointer[Fault]
}

// Fault is a transport error recorded by the interrupt handler.
type Fault struct {
	Err   error
	Stage string // "poll", "configure" or "write"
	At    time.Time
}

// Error implements error.
func (f *Fault) Error() string {
	return f.Stage + ": " + f.Err.Error()
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Snapshot is a point-in-time copy of [Status].
type Snapshot struct {
	Interrupts  uint64 // Handler invocations that ran
	Reentries   uint64 // Invocations refused because the handler was running
	TimerEvents uint64 // Timer expiries cleared
	Polls       uint64 // Bus polls
	Activity    uint64 // Polls that processed bus activity
	Commits     uint64 // Configuration commits
	Configured  bool   // Configuration committed for this enumeration
	BytesSent   uint64 // Bytes accepted by the bulk endpoint
	Deferrals   uint64 // Drains stopped because the endpoint was busy
	Faults      uint64 // Transport errors
	LastFault   *Fault // Most recent transport error, nil if none
	Queued      int    // Bytes waiting in the log queue
	Dropped     uint64 // Records lost to queue overflow
}

func newStatus(q *logqueue.Queue, c *Configurator) *Status {
	return &Status{queue: q, config: c}
}

// Snapshot returns the current counters.
func (s *Status) Snapshot() Snapshot {
	qs := s.queue.State()
	return Snapshot{
		Interrupts:  s.interrupts.Load(),
		Reentries:   s.reentries.Load(),
		TimerEvents: s.timerEvents.Load(),
		Polls:       s.polls.Load(),
		Activity:    s.activity.Load(),
		Commits:     s.config.Commits(),
		Configured:  s.config.Configured(),
		BytesSent:   s.bytesSent.Load(),
		Deferrals:   s.deferrals.Load(),
		Faults:      s.faults.Load(),
		LastFault:   s.lastFault.Load(),
		Queued:      qs.Used,
		Dropped:     qs.Dropped,
	}
}

// Fault returns the most recent transport fault, or nil.
func (s *Status) Fault() *Fault {
	return s.lastFault.Load()
}

// ClearFault forgets the most recent fault and returns it.
func (s *Status) ClearFault() *Fault {
	return s.lastFault.Swap(nil)
}

func (s *Status) recordFault(stage string, err error) {
	s.faults.Add(1)
	s.lastFault.Store(&Fault{Err: err, Stage: stage, At: time.Now()})
}
