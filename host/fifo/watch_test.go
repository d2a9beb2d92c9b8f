package fifo_test

import (
	"context"
	"errors"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/ardnew/usblog/host/fifo"
	"github.com/ardnew/usblog/pkg"
)

func mkfifo(path string) error {
	return syscall.Mkfifo(path, 0o600)
}

func nextDir(t *testing.T, dirs <-chan string) string {
	t.Helper()
	select {
	case dir, ok := <-dirs:
		if !ok {
			t.Fatal("watch channel closed")
		}
		return dir
	case <-time.After(3 * time.Second):
		t.Fatal("no device directory reported")
	}
	return ""
}

func TestWatchReportsExistingAndNew(t *testing.T) {
	busDir := t.TempDir()
	first := startDevice(t, busDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dirs, err := fifo.Watch(ctx, busDir)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if got := nextDir(t, dirs); got != first.bus.DeviceDir() {
		t.Errorf("first dir = %q, want %q", got, first.bus.DeviceDir())
	}

	second := startDevice(t, busDir)
	if got := nextDir(t, dirs); got != second.bus.DeviceDir() {
		t.Errorf("second dir = %q, want %q", got, second.bus.DeviceDir())
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-dirs:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}

func TestConnect(t *testing.T) {
	busDir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	startDevice(t, busDir)

	p, info, err := fifo.Connect(ctx, busDir, 0, 0, 2*time.Second)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer p.Close()
	if info.Dir != p.Dir() {
		t.Errorf("Info.Dir = %q, want %q", info.Dir, p.Dir())
	}
}

func TestConnectCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, _, err := fifo.Connect(ctx, t.TempDir(), 0, 0, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() error = %v, want DeadlineExceeded", err)
	}
}

func TestSessionReconnects(t *testing.T) {
	busDir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	first := startDevice(t, busDir)

	var sessions atomic.Int32
	err := fifo.Session(ctx, busDir, 0, 0, 2*time.Second,
		func(ctx context.Context, p *fifo.Port, info *fifo.Info) error {
			switch sessions.Add(1) {
			case 1:
				first.stop()
				startDevice(t, busDir)
				return pkg.ErrNoDevice
			default:
				cancel()
				return nil
			}
		})
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if n := sessions.Load(); n != 2 {
		t.Errorf("sessions = %d, want 2", n)
	}
}
