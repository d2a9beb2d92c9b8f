//go:build !profile

package prof

import (
	"path/filepath"
	"testing"
)

func TestStubIsInert(t *testing.T) {
	if Enabled() {
		t.Error("Enabled() = true without profile tag")
	}
	path := filepath.Join(t.TempDir(), "cpu.prof")
	s, err := Start(Options{CPU: path, Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if s.Addr() != nil {
		t.Errorf("Addr() = %v", s.Addr())
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestOptionsAny(t *testing.T) {
	tests := []struct {
		opts Options
		want bool
	}{
		{Options{}, false},
		{Options{CPU: "cpu.prof"}, true},
		{Options{Heap: "heap.prof"}, true},
		{Options{Addr: ":6060"}, true},
	}
	for _, tt := range tests {
		if got := tt.opts.Any(); got != tt.want {
			t.Errorf("%+v.Any() = %v, want %v", tt.opts, got, tt.want)
		}
	}
}
