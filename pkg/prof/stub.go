//go:build !profile

package prof

import (
	"errors"
	"net"
)

// ErrCPUProfileActive is never returned without the "profile" tag.
var ErrCPUProfileActive = errors.New("cpu profile already active")

// Session does nothing without the "profile" tag.
type Session struct{}

// Enabled reports whether profiling support was compiled in.
func Enabled() bool { return false }

// Start returns an inert session when built without the "profile" tag.
func Start(Options) (*Session, error) {
	return &Session{}, nil
}

// Addr returns nil.
func (*Session) Addr() net.Addr { return nil }

// Stop returns nil.
func (*Session) Stop() error { return nil }
