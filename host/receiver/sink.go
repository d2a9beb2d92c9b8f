package receiver

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ardnew/usblog/host/archive"
)

// Sink consumes accepted records.
type Sink interface {
	Write(r *Record) error
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(r *Record) error

// Write calls f(r).
func (f SinkFunc) Write(r *Record) error {
	return f(r)
}

// ConsoleSink renders JSON records the way zerolog's console writer does
// and passes other records through as lines.
type ConsoleSink struct {
	out io.Writer
	cw  zerolog.ConsoleWriter
}

// NewConsoleSink creates a console sink writing to w.
func NewConsoleSink(w io.Writer, color bool) *ConsoleSink {
	return &ConsoleSink{
		out: w,
		cw: zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    !color,
			TimeFormat: time.RFC3339,
		},
	}
}

// Write implements [Sink].
func (s *ConsoleSink) Write(r *Record) error {
	if r.JSON() != nil {
		if _, err := s.cw.Write(r.Data); err == nil {
			return nil
		}
	}
	return writeLine(s.out, r.Data)
}

// RawSink writes each record verbatim followed by a newline.
type RawSink struct {
	out io.Writer
}

// NewRawSink creates a raw sink writing to w.
func NewRawSink(w io.Writer) *RawSink {
	return &RawSink{out: w}
}

// Write implements [Sink].
func (s *RawSink) Write(r *Record) error {
	return writeLine(s.out, r.Data)
}

func writeLine(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}

// ArchiveSink appends records to an archive.
type ArchiveSink struct {
	a *archive.Archive
}

// NewArchiveSink creates a sink appending to a.
func NewArchiveSink(a *archive.Archive) *ArchiveSink {
	return &ArchiveSink{a: a}
}

// Write implements [Sink].
func (s *ArchiveSink) Write(r *Record) error {
	_, err := s.a.Append(r.Data, r.Time)
	return err
}
