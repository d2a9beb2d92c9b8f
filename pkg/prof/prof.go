//go:build profile

package prof

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	rpprof "runtime/pprof"
	"sync/atomic"
	"time"

	"github.com/ardnew/usblog/pkg"
)

// ErrCPUProfileActive indicates another session owns the CPU profiler.
var ErrCPUProfileActive = errors.New("cpu profile already active")

var cpuActive atomic.Bool

// Session is a running set of profiles.
type Session struct {
	opts    Options
	cpuFile *os.File
	server  *http.Server
	addr    net.Addr
}

// Enabled reports whether profiling support was compiled in.
func Enabled() bool { return true }

// Start begins the profiles selected by o. Only one session at a time may
// collect a CPU profile.
func Start(o Options) (s *Session, err error) {
	s = &Session{opts: o}
	defer func() {
		if err != nil {
			s.opts.Heap = ""
			s.Stop()
			s = nil
		}
	}()

	if o.CPU != "" {
		if !cpuActive.CompareAndSwap(false, true) {
			return nil, ErrCPUProfileActive
		}
		f, err := os.Create(o.CPU)
		if err != nil {
			cpuActive.Store(false)
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		if err := rpprof.StartCPUProfile(f); err != nil {
			f.Close()
			cpuActive.Store(false)
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		s.cpuFile = f
	}

	if o.Addr != "" {
		ln, err := net.Listen("tcp", o.Addr)
		if err != nil {
			return nil, fmt.Errorf("pprof listen: %w", err)
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		s.addr = ln.Addr()
		go func() {
			if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				pkg.LogWarn(pkg.ComponentDevice, "pprof server stopped", "addr", s.addr.String(), "err", err)
			}
		}()
		pkg.LogInfo(pkg.ComponentDevice, "pprof serving", "addr", s.addr.String())
	}
	return s, nil
}

// Addr returns the address of the pprof server, or nil.
func (s *Session) Addr() net.Addr {
	return s.addr
}

// Stop ends the CPU profile, writes the heap profile and shuts down the
// server. It is safe to call more than once.
func (s *Session) Stop() error {
	var errs []error
	if s.cpuFile != nil {
		rpprof.StopCPUProfile()
		errs = append(errs, s.cpuFile.Close())
		s.cpuFile = nil
		cpuActive.Store(false)
	}
	if s.opts.Heap != "" {
		errs = append(errs, writeHeap(s.opts.Heap))
		s.opts.Heap = ""
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		errs = append(errs, s.server.Shutdown(ctx))
		cancel()
		s.server = nil
	}
	return errors.Join(errs...)
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	defer f.Close()
	if err := rpprof.Lookup("heap").WriteTo(f, 0); err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	return nil
}
