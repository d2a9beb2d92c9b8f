package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/ardnew/usblog/host/archive"
	"github.com/ardnew/usblog/host/receiver"
	"github.com/ardnew/usblog/host/usbid"
	"github.com/ardnew/usblog/internal/cliconfig"
	"github.com/ardnew/usblog/pkg"
)

// names resolves device IDs for log messages. It is loaded on first use.
var names = sync.OnceValue(func() *usbid.Names {
	n, err := usbid.Load()
	if err != nil {
		pkg.LogDebug(pkg.ComponentCat, "usb id names unavailable", "err", err)
	}
	return n
})

// pipeline is a receiver with its sinks and the archive it may own.
type pipeline struct {
	rcv     *receiver.Receiver
	archive *archive.Archive
}

// newPipeline builds the filter and sinks described by cfg. Records are
// printed to out; when archived is set and cfg names an archive, they are
// also appended to it.
func newPipeline(cfg *cliconfig.Config, out io.Writer, archived bool) (*pipeline, error) {
	filter, err := receiver.NewFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}

	p := &pipeline{}
	var sinks []receiver.Sink
	switch cfg.Format {
	case cliconfig.FormatRaw:
		sinks = append(sinks, receiver.NewRawSink(out))
	default:
		sinks = append(sinks, receiver.NewConsoleSink(out, cfg.Color))
	}

	if archived && cfg.Archive != "" {
		p.archive, err = openArchive(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, receiver.NewArchiveSink(p.archive))
	}

	p.rcv = receiver.New(filter, sinks, receiver.WithMaxRecord(cfg.MaxRecord))
	return p, nil
}

func openArchive(cfg *cliconfig.Config) (*archive.Archive, error) {
	mode, err := archive.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return nil, err
	}
	a, err := archive.Open(archive.Options{Dir: cfg.Archive, Fsync: mode})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return a, nil
}

// close closes the archive, if any, and writes the receiver counters to w.
func (p *pipeline) close(w io.Writer) error {
	s := p.rcv.Stats()
	fmt.Fprintf(w, "records=%d accepted=%d filtered=%d oversized=%d partial=%dB sink_errors=%d bytes=%d\n",
		s.Records, s.Accepted, s.Filtered, s.Oversized, s.Partial, s.SinkErrors, s.Bytes)
	if p.archive == nil {
		return nil
	}
	pkg.LogDebug(pkg.ComponentArchive, "closing archive", "next", p.archive.Next())
	return p.archive.Close()
}
