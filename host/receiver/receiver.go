package receiver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ardnew/usblog/pkg"
)

// Source delivers the device byte stream.
type Source interface {
	Read(ctx context.Context, p []byte) (int, error)
}

// Record is one reassembled log record.
type Record struct {
	Seq  uint64
	Time time.Time
	Data []byte

	parsed bool
	json   map[string]any
}

// NewRecord creates a record from data, which it does not copy. Records
// delivered by [Receiver.Run] share its read buffer, so sinks that keep Data
// must copy it.
func NewRecord(seq uint64, t time.Time, data []byte) *Record {
	return &Record{Seq: seq, Time: t, Data: data}
}

// JSON returns the record parsed as a JSON object, or nil.
func (r *Record) JSON() map[string]any {
	if !r.parsed {
		r.json, _ = parseJSON(r.Data)
		r.parsed = true
	}
	return r.json
}

// Level returns the "level" field of a JSON record, or "".
func (r *Record) Level() string {
	if obj := r.JSON(); obj != nil {
		if s, ok := obj["level"].(string); ok {
			return s
		}
	}
	return ""
}

// Stats is a point-in-time copy of a receiver's counters.
type Stats struct {
	Bytes      uint64 // Bytes read from the source
	Records    uint64 // Records reassembled
	Accepted   uint64 // Records that passed the filter
	Filtered   uint64 // Records rejected by the filter
	Oversized  uint64 // Records dropped for exceeding the size bound
	Partial    uint64 // Bytes of unterminated records discarded at disconnect
	SinkErrors uint64 // Failed sink writes
}

// Option configures a [Receiver].
type Option func(*Receiver)

// WithMaxRecord sets the largest record reassembled. The default is
// [DefaultMaxRecord].
func WithMaxRecord(n int) Option {
	return func(r *Receiver) {
		r.maxRecord = n
	}
}

// WithReadSize sets the size of each source read.
func WithReadSize(n int) Option {
	return func(r *Receiver) {
		if n > 0 {
			r.readSize = n
		}
	}
}

// Receiver reassembles, filters and dispatches records. Run must not be
// called concurrently; Stats may be read from anywhere.
type Receiver struct {
	filter    *Filter
	sinks     []Sink
	maxRecord int
	readSize  int

	seq        atomic.Uint64
	bytes      atomic.Uint64
	records    atomic.Uint64
	accepted   atomic.Uint64
	filtered   atomic.Uint64
	oversized  atomic.Uint64
	partial    atomic.Uint64
	sinkErrors atomic.Uint64
}

// New creates a receiver. A nil filter accepts every record.
func New(filter *Filter, sinks []Sink, opts ...Option) *Receiver {
	r := &Receiver{
		filter:    filter,
		sinks:     sinks,
		maxRecord: DefaultMaxRecord,
		readSize:  512,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads src until ctx is done, which returns nil, or src fails, which
// returns the source error. Each Run starts at a record boundary.
func (r *Receiver) Run(ctx context.Context, src Source) error {
	sp := newSplitter(r.maxRecord)
	defer func() {
		if n := sp.reset(); n > 0 {
			r.partial.Add(uint64(n))
			pkg.LogDebug(pkg.ComponentReceiver, "discarded partial record", "bytes", n)
		}
	}()

	buf := make([]byte, r.readSize)
	emit := func(line []byte) {
		r.Deliver(NewRecord(r.seq.Add(1)-1, time.Now(), line))
	}
	for {
		n, err := src.Read(ctx, buf)
		if n > 0 {
			r.bytes.Add(uint64(n))
			if dropped := sp.feed(buf[:n], emit); dropped > 0 {
				r.oversized.Add(uint64(dropped))
				pkg.LogWarn(pkg.ComponentReceiver, "oversized record dropped",
					"limit", r.maxRecord, "count", dropped)
			}
		}
		if err != nil {
			if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return nil
			}
			return err
		}
	}
}

// Deliver filters one record and writes it to every sink. Sink errors are
// counted and logged; the remaining sinks still run.
func (r *Receiver) Deliver(rec *Record) bool {
	r.records.Add(1)
	if !r.filter.Match(rec) {
		r.filtered.Add(1)
		return false
	}
	r.accepted.Add(1)
	for _, s := range r.sinks {
		if err := s.Write(rec); err != nil {
			r.sinkErrors.Add(1)
			pkg.LogWarn(pkg.ComponentReceiver, "sink write failed", "seq", rec.Seq, "err", err)
		}
	}
	return true
}

// Stats returns the current counters.
func (r *Receiver) Stats() Stats {
	return Stats{
		Bytes:      r.bytes.Load(),
		Records:    r.records.Load(),
		Accepted:   r.accepted.Load(),
		Filtered:   r.filtered.Load(),
		Oversized:  r.oversized.Load(),
		Partial:    r.partial.Load(),
		SinkErrors: r.sinkErrors.Load(),
	}
}
