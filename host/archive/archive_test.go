package archive

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/ardnew/usblog/pkg"
)

func newTestArchive(t *testing.T, dir string) *Archive {
	t.Helper()
	a, err := Open(Options{
		Dir:           dir,
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAppendScan(t *testing.T) {
	a := newTestArchive(t, t.TempDir())
	base := time.UnixMilli(1_700_000_000_000)

	for i := 0; i < 5; i++ {
		seq, err := a.Append([]byte(fmt.Sprintf("rec-%d", i)), base.Add(time.Duration(i)*time.Millisecond))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if seq != uint64(i) {
			t.Fatalf("seq = %d, want %d", seq, i)
		}
	}

	var got []Record
	if err := a.Scan(context.Background(), 2, func(r Record) error {
		got = append(got, r)
		return nil
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("scanned %d records, want 3", len(got))
	}
	for i, r := range got {
		want := uint64(i + 2)
		if r.Seq != want {
			t.Errorf("record %d: seq = %d, want %d", i, r.Seq, want)
		}
		if string(r.Data) != fmt.Sprintf("rec-%d", want) {
			t.Errorf("record %d: data = %q", i, r.Data)
		}
		if !r.Time.Equal(base.Add(time.Duration(want) * time.Millisecond)) {
			t.Errorf("record %d: time = %v", i, r.Time)
		}
	}
}

func TestScanStops(t *testing.T) {
	a := newTestArchive(t, t.TempDir())
	for i := 0; i < 3; i++ {
		if _, err := a.Append([]byte("x"), time.Now()); err != nil {
			t.Fatal(err)
		}
	}

	stop := errors.New("stop")
	calls := 0
	err := a.Scan(context.Background(), 0, func(Record) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("Scan() = %v after %d calls, want stop after 1", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Scan(ctx, 0, func(Record) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() with cancelled ctx = %v", err)
	}
}

func TestLastAndReopen(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(Options{Dir: dir, Fsync: FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, ok, err := a.Last(); err != nil || ok {
		t.Fatalf("Last() on empty archive = %v, %v", ok, err)
	}
	for _, s := range []string{"a", "b", "c"} {
		if _, err := a.Append([]byte(s), time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	last, ok, err := a.Last()
	if err != nil || !ok || last.Seq != 2 || string(last.Data) != "c" {
		t.Fatalf("Last() = %+v, %v, %v", last, ok, err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	a = newTestArchive(t, dir)
	if a.Next() != 3 {
		t.Errorf("Next() after reopen = %d, want 3", a.Next())
	}
	seq, err := a.Append([]byte("d"), time.Now())
	if err != nil || seq != 3 {
		t.Errorf("Append() after reopen = %d, %v", seq, err)
	}
}

func TestGet(t *testing.T) {
	a := newTestArchive(t, t.TempDir())
	if _, err := a.Append([]byte("only"), time.Now()); err != nil {
		t.Fatal(err)
	}

	r, err := a.Get(0)
	if err != nil || string(r.Data) != "only" {
		t.Errorf("Get(0) = %+v, %v", r, err)
	}
	if _, err := a.Get(1); !errors.Is(err, pebble.ErrNotFound) {
		t.Errorf("Get(1) error = %v, want ErrNotFound", err)
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Options{}); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("Open() error = %v, want ErrInvalidParameter", err)
	}
}

func TestParseFsyncMode(t *testing.T) {
	tests := []struct {
		in      string
		want    FsyncMode
		wantErr bool
	}{
		{"", FsyncModeInterval, false},
		{"interval", FsyncModeInterval, false},
		{"always", FsyncModeAlways, false},
		{"never", FsyncModeNever, false},
		{"sometimes", FsyncModeInterval, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFsyncMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFsyncMode(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFsyncMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if !tt.wantErr && tt.in != "" && got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}
