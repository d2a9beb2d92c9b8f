package fifo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	devfifo "github.com/ardnew/usblog/device/hal/fifo"
	"github.com/ardnew/usblog/internal/backoff"
	"github.com/ardnew/usblog/pkg"
)

// Watch reports device directories under busDir once their FIFOs exist:
// those already present first, then new ones as they appear. Each directory
// is reported once per appearance. The channel is closed when ctx is done or
// the watcher fails.
func Watch(ctx context.Context, busDir string) (<-chan string, error) {
	if err := os.MkdirAll(busDir, 0o755); err != nil {
		return nil, fmt.Errorf("create bus dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(busDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", busDir, err)
	}

	out := make(chan string, 8)
	go func() {
		defer close(out)
		defer watcher.Close()
		(&dirWatcher{
			busDir:  busDir,
			watcher: watcher,
			out:     out,
			seen:    make(map[string]bool),
			pending: make(map[string]bool),
		}).run(ctx)
	}()
	return out, nil
}

type dirWatcher struct {
	busDir  string
	watcher *fsnotify.Watcher
	out     chan<- string
	seen    map[string]bool
	pending map[string]bool
}

func (w *dirWatcher) run(ctx context.Context) {
	entries, err := os.ReadDir(w.busDir)
	if err != nil {
		pkg.LogWarn(pkg.ComponentHost, "failed to list bus dir", "busDir", w.busDir, "err", err)
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), devfifo.DevicePrefix) {
			if !w.consider(ctx, filepath.Join(w.busDir, e.Name())) {
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.handle(ctx, event) {
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			pkg.LogWarn(pkg.ComponentHost, "bus watcher error", "err", err)
		}
	}
}

// handle reports false once ctx is done.
func (w *dirWatcher) handle(ctx context.Context, event fsnotify.Event) bool {
	parent := filepath.Dir(event.Name)
	base := filepath.Base(event.Name)

	switch {
	case parent == filepath.Clean(w.busDir) && strings.HasPrefix(base, devfifo.DevicePrefix):
		if event.Op&fsnotify.Create != 0 {
			return w.consider(ctx, event.Name)
		}
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			delete(w.seen, event.Name)
			delete(w.pending, event.Name)
			pkg.LogDebug(pkg.ComponentHost, "device directory removed", "dir", event.Name)
		}

	case w.pending[parent] && base == devfifo.FileDataIn && event.Op&fsnotify.Create != 0:
		return w.consider(ctx, parent)
	}
	return true
}

// consider reports dir if its FIFOs are in place, and otherwise watches it
// until they are.
func (w *dirWatcher) consider(ctx context.Context, dir string) bool {
	if w.seen[dir] {
		return true
	}
	if !ready(dir) {
		if w.pending[dir] {
			return true
		}
		if err := w.watcher.Add(dir); err != nil {
			pkg.LogDebug(pkg.ComponentHost, "failed to watch device dir", "dir", dir, "err", err)
			return true
		}
		w.pending[dir] = true
		// The last FIFO may have appeared before the watch was added.
		if !ready(dir) {
			return true
		}
	}

	if w.pending[dir] {
		w.watcher.Remove(dir)
		delete(w.pending, dir)
	}
	w.seen[dir] = true
	pkg.LogDebug(pkg.ComponentHost, "device directory found", "dir", dir)
	select {
	case w.out <- dir:
		return true
	case <-ctx.Done():
		return false
	}
}

// ready reports whether the device has created its bulk IN FIFO, the last
// one it makes.
func ready(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, devfifo.FileDataIn))
	return err == nil && fi.Mode()&os.ModeNamedPipe != 0
}

// Connect waits for a device to appear on busDir, then opens and enumerates
// it. Directories that fail to enumerate are skipped. A zero vid and pid
// accept any device.
func Connect(ctx context.Context, busDir string, vid, pid uint16, timeout time.Duration) (*Port, *Info, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dirs, err := Watch(ctx, busDir)
	if err != nil {
		return nil, nil, err
	}
	for dir := range dirs {
		port, err := Open(dir, timeout)
		if err != nil {
			pkg.LogDebug(pkg.ComponentHost, "skipping device", "dir", dir, "err", err)
			continue
		}
		info, err := port.Enumerate(ctx, vid, pid)
		if err != nil {
			port.Close()
			if ctx.Err() != nil {
				break
			}
			pkg.LogWarn(pkg.ComponentHost, "enumeration failed", "dir", dir, "err", err)
			continue
		}
		return port, info, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return nil, nil, pkg.ErrNoDevice
}

// Session repeatedly connects to a device on busDir and hands the port to
// fn until ctx is done. When fn returns [pkg.ErrNoDevice] the session waits
// with backoff and reconnects; any other error ends the session.
func Session(ctx context.Context, busDir string, vid, pid uint16, timeout time.Duration,
	fn func(context.Context, *Port, *Info) error,
) error {
	b := backoff.New(backoff.DefaultInitial, backoff.DefaultMax)
	for {
		port, info, err := Connect(ctx, busDir, vid, pid, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.Reset()

		err = fn(ctx, port, info)
		port.Close()
		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil, errors.Is(err, pkg.ErrNoDevice):
			pkg.LogInfo(pkg.ComponentHost, "waiting for device", "busDir", busDir, "backoff", b.Current())
			if werr := b.Wait(ctx); werr != nil {
				return nil
			}
		default:
			return err
		}
	}
}
