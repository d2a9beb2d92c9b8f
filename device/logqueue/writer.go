package logqueue

import (
	"errors"
	"io"

	"github.com/ardnew/usblog/pkg"
)

// Writer adapts a [Producer] to [io.Writer]. Each Write call is pushed as one
// record, which matches loggers that emit one Write per event.
//
// A record that does not fit is dropped and counted by the producer; Write
// still reports success so the logger never treats overflow as a failure.
type Writer struct {
	p *Producer
}

var _ io.Writer = (*Writer)(nil)

// NewWriter returns a Writer pushing into p.
func NewWriter(p *Producer) *Writer {
	return &Writer{p: p}
}

// Write pushes b as a single record.
func (w *Writer) Write(b []byte) (int, error) {
	if err := w.p.Push(b); err != nil && !errors.Is(err, pkg.ErrQueueFull) {
		return 0, err
	}
	return len(b), nil
}
