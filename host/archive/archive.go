package archive

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/ardnew/usblog/pkg"
)

// FsyncMode defines durability behavior for appends.
type FsyncMode int

const (
	// FsyncModeInterval lets Pebble coalesce WAL syncs within FsyncInterval.
	FsyncModeInterval FsyncMode = iota
	// FsyncModeAlways syncs the WAL on every append.
	FsyncModeAlways
	// FsyncModeNever leaves syncing to Pebble.
	FsyncModeNever
)

// DefaultFsyncInterval is the group-commit window for [FsyncModeInterval].
const DefaultFsyncInterval = 5 * time.Millisecond

// String returns the flag spelling of the mode.
func (m FsyncMode) String() string {
	switch m {
	case FsyncModeAlways:
		return "always"
	case FsyncModeNever:
		return "never"
	default:
		return "interval"
	}
}

// ParseFsyncMode converts "always", "interval" or "never" to a FsyncMode.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch s {
	case "", "interval":
		return FsyncModeInterval, nil
	case "always":
		return FsyncModeAlways, nil
	case "never":
		return FsyncModeNever, nil
	default:
		return FsyncModeInterval, fmt.Errorf("%w: fsync mode %q", pkg.ErrInvalidParameter, s)
	}
}

// Options configures an archive.
type Options struct {
	// Dir is the Pebble database directory.
	Dir string
	// Fsync determines when to sync the WAL.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync is FsyncModeInterval.
	FsyncInterval time.Duration
	// PebbleOptions allows advanced tuning. If nil, defaults are used.
	PebbleOptions *pebble.Options
}

// Record is one archived log record.
type Record struct {
	Seq  uint64
	Time time.Time
	Data []byte
}

var (
	recPrefix = []byte("rec/")
	recEnd    = []byte("rec0") // '/'+1
)

const (
	seqSize  = 8
	timeSize = 8
)

func recordKey(seq uint64) []byte {
	k := make([]byte, 0, len(recPrefix)+seqSize)
	k = append(k, recPrefix...)
	return binary.BigEndian.AppendUint64(k, seq)
}

func decodeRecord(key, value []byte) (Record, error) {
	if len(key) != len(recPrefix)+seqSize || len(value) < timeSize {
		return Record{}, fmt.Errorf("%w: malformed record %x", pkg.ErrProtocol, key)
	}
	ms := int64(binary.BigEndian.Uint64(value[:timeSize]))
	return Record{
		Seq:  binary.BigEndian.Uint64(key[len(recPrefix):]),
		Time: time.UnixMilli(ms),
		Data: append([]byte(nil), value[timeSize:]...),
	}, nil
}

// Archive is an append-only record store. Append is safe for concurrent use.
type Archive struct {
	db        *pebble.DB
	writeSync bool

	mu   sync.Mutex
	next uint64
	buf  []byte
}

// Open creates or opens an archive. Appends continue after the last stored
// sequence number.
func Open(opts Options) (*Archive, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: archive directory is required", pkg.ErrInvalidParameter)
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	switch opts.Fsync {
	case FsyncModeAlways:
		// Sync is requested on each commit.
	case FsyncModeNever:
	default:
		interval := opts.FsyncInterval
		if interval <= 0 {
			interval = DefaultFsyncInterval
		}
		po.WALMinSyncInterval = func() time.Duration { return interval }
	}

	db, err := pebble.Open(opts.Dir, po)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	a := &Archive{
		db:        db,
		writeSync: opts.Fsync == FsyncModeAlways,
	}

	last, ok, err := a.Last()
	if err != nil {
		db.Close()
		return nil, err
	}
	if ok {
		a.next = last.Seq + 1
	}

	pkg.LogInfo(pkg.ComponentArchive, "archive opened",
		"dir", opts.Dir, "fsync", opts.Fsync, "next", a.next)
	return a, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// Append stores data received at t and returns its sequence number.
func (a *Archive) Append(data []byte, t time.Time) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq := a.next
	a.buf = binary.BigEndian.AppendUint64(a.buf[:0], uint64(t.UnixMilli()))
	a.buf = append(a.buf, data...)

	b := a.db.NewBatch()
	defer b.Close()
	if err := b.Set(recordKey(seq), a.buf, nil); err != nil {
		return 0, fmt.Errorf("append %d: %w", seq, err)
	}
	syncMode := pebble.NoSync
	if a.writeSync {
		syncMode = pebble.Sync
	}
	if err := b.Commit(syncMode); err != nil {
		return 0, fmt.Errorf("append %d: %w", seq, err)
	}
	a.next++
	pkg.LogTrace(pkg.ComponentArchive, "record appended", "seq", seq, "bytes", len(data))
	return seq, nil
}

// Next returns the sequence number the next Append will use.
func (a *Archive) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// Scan calls fn for each record with a sequence number of at least from, in
// order. It stops at the first error from fn and returns it.
func (a *Archive) Scan(ctx context.Context, from uint64, fn func(Record) error) error {
	it, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: recordKey(from),
		UpperBound: recEnd,
	})
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := decodeRecord(it.Key(), it.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return it.Error()
}

// Last returns the most recent record. It reports false if the archive is
// empty.
func (a *Archive) Last() (Record, bool, error) {
	it, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: recPrefix,
		UpperBound: recEnd,
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("last: %w", err)
	}
	defer it.Close()

	if !it.Last() {
		if err := it.Error(); err != nil && !errors.Is(err, pebble.ErrNotFound) {
			return Record{}, false, fmt.Errorf("last: %w", err)
		}
		return Record{}, false, nil
	}
	rec, err := decodeRecord(it.Key(), it.Value())
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Get returns the record with the given sequence number.
func (a *Archive) Get(seq uint64) (Record, error) {
	key := recordKey(seq)
	val, closer, err := a.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Record{}, fmt.Errorf("record %d: %w", seq, err)
		}
		return Record{}, err
	}
	defer closer.Close()
	return decodeRecord(key, val)
}
