// Package irq models a level-sensitive interrupt line for hosted platforms.
//
// Any number of sources may raise the line. Assertions that arrive before the
// handler runs coalesce into one delivery, the way a pending bit in an
// interrupt controller does.
package irq

import "sync/atomic"

// Line is a coalescing interrupt line.
type Line struct {
	pending chan struct{}
	raised  atomic.Uint64
}

// NewLine returns an idle interrupt line.
func NewLine() *Line {
	return &Line{pending: make(chan struct{}, 1)}
}

// Raise asserts the line. It never blocks.
func (l *Line) Raise() {
	l.raised.Add(1)
	select {
	case l.pending <- struct{}{}:
	default:
	}
}

// C returns the delivery channel read by the interrupt handler.
func (l *Line) C() <-chan struct{} {
	return l.pending
}

// Raised returns how many times the line was asserted.
func (l *Line) Raised() uint64 {
	return l.raised.Load()
}
