package logqueue

import (
	"sync/atomic"

	"github.com/ardnew/usblog/pkg"
)

// Queue is a byte ring over caller-provided storage.
//
// head and tail are monotonic byte counts. tail is advanced only by the
// producer after the record bytes are in place; head is advanced only by the
// consumer after the bytes were handed off. The atomic store of each index
// publishes the bytes it covers to the other side.
type Queue struct {
	buf  []byte
	head atomic.Uint64
	tail atomic.Uint64

	dropped atomic.Uint64
	pushed  atomic.Uint64
	split   atomic.Bool
}

// State is a point-in-time snapshot of the queue for diagnostics.
type State struct {
	Capacity int    // Total storage in bytes
	Head     uint64 // Bytes consumed since creation
	Tail     uint64 // Bytes produced since creation
	Used     int    // Bytes currently queued
	Pushed   uint64 // Records accepted
	Dropped  uint64 // Records rejected for lack of space
}

// New returns a queue using storage as its ring. Every byte of storage is
// usable. The queue keeps storage for its lifetime; callers must not touch it.
func New(storage []byte) *Queue {
	return &Queue{buf: storage}
}

// Split returns the producer and consumer endpoints. It succeeds once; later
// calls return [pkg.ErrAlreadySplit].
func (q *Queue) Split() (*Producer, *Consumer, error) {
	if !q.split.CompareAndSwap(false, true) {
		return nil, nil, pkg.ErrAlreadySplit
	}
	return &Producer{q: q}, &Consumer{q: q}, nil
}

// Cap returns the storage capacity in bytes.
func (q *Queue) Cap() int {
	return len(q.buf)
}

// Len returns the number of queued bytes.
func (q *Queue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Free returns the number of bytes a push could currently use.
func (q *Queue) Free() int {
	return len(q.buf) - q.Len()
}

// State returns a snapshot of the queue indices and counters.
func (q *Queue) State() State {
	head := q.head.Load()
	tail := q.tail.Load()
	return State{
		Capacity: len(q.buf),
		Head:     head,
		Tail:     tail,
		Used:     int(tail - head),
		Pushed:   q.pushed.Load(),
		Dropped:  q.dropped.Load(),
	}
}

// Producer is the write endpoint of a [Queue].
type Producer struct {
	q *Queue
}

// Push appends record as a single unit. When the free space is smaller than
// the record, nothing is written, the drop counter is incremented, and
// [pkg.ErrQueueFull] is returned. An empty record is a no-op.
func (p *Producer) Push(record []byte) error {
	n := len(record)
	if n == 0 {
		return nil
	}
	q := p.q
	tail := q.tail.Load()
	head := q.head.Load()
	size := uint64(len(q.buf))
	if uint64(n) > size-(tail-head) {
		q.dropped.Add(1)
		return pkg.ErrQueueFull
	}

	pos := tail % size
	first := copy(q.buf[pos:], record)
	if first < n {
		copy(q.buf, record[first:])
	}
	q.tail.Store(tail + uint64(n))
	q.pushed.Add(1)
	return nil
}

// Dropped returns the number of records rejected since creation.
func (p *Producer) Dropped() uint64 {
	return p.q.dropped.Load()
}

// Free returns the number of bytes available to the next push.
func (p *Producer) Free() int {
	return p.q.Free()
}

// Queue returns the underlying queue for diagnostics.
func (p *Producer) Queue() *Queue {
	return p.q
}

// Consumer is the read endpoint of a [Queue].
type Consumer struct {
	q *Queue
}

// Read returns the next contiguous span of queued bytes. The span ends at the
// newest byte or at the end of the storage, whichever comes first. It reports
// false when the queue is empty. Reading again without a release returns the
// same span, possibly extended by newer pushes.
func (c *Consumer) Read() (Grant, bool) {
	q := c.q
	head := q.head.Load()
	tail := q.tail.Load()
	if head == tail {
		return Grant{}, false
	}
	size := uint64(len(q.buf))
	pos := head % size
	n := tail - head
	if pos+n > size {
		n = size - pos
	}
	return Grant{c: c, start: head, buf: q.buf[pos : pos+n]}, true
}

// Len returns the number of queued bytes.
func (c *Consumer) Len() int {
	return c.q.Len()
}

// Grant is a borrowed view of queued bytes. It is valid until released.
type Grant struct {
	c     *Consumer
	start uint64
	buf   []byte
}

// Bytes returns the granted bytes. The slice aliases the queue storage.
func (g Grant) Bytes() []byte {
	return g.buf
}

// Len returns the number of granted bytes.
func (g Grant) Len() int {
	return len(g.buf)
}

// Release consumes the first n granted bytes. The rest stays queued and is
// returned by the next [Consumer.Read]. Release(0) does nothing. A count
// outside [0, Len()], or a release of a grant already consumed, returns
// [pkg.ErrInvalidRelease].
func (g Grant) Release(n int) error {
	if n < 0 || n > len(g.buf) || g.c == nil {
		return pkg.ErrInvalidRelease
	}
	if n == 0 {
		return nil
	}
	q := g.c.q
	if q.head.Load() != g.start {
		return pkg.ErrInvalidRelease
	}
	q.head.Store(g.start + uint64(n))
	return nil
}
