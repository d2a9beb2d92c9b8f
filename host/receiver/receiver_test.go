package receiver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ardnew/usblog/host/archive"
	"github.com/ardnew/usblog/pkg"
)

// chunkSource replays fixed chunks, then fails with err.
type chunkSource struct {
	chunks []string
	err    error
}

func (s *chunkSource) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(s.chunks) == 0 {
		return 0, s.err
	}
	n := copy(p, s.chunks[0])
	s.chunks[0] = s.chunks[0][n:]
	if s.chunks[0] == "" {
		s.chunks = s.chunks[1:]
	}
	return n, nil
}

func TestRunDelivers(t *testing.T) {
	var out bytes.Buffer
	r := New(nil, []Sink{NewRawSink(&out)})

	src := &chunkSource{
		chunks: []string{"first\nsec", "ond\nthi"},
		err:    pkg.ErrNoDevice,
	}
	if err := r.Run(context.Background(), src); !errors.Is(err, pkg.ErrNoDevice) {
		t.Fatalf("Run() error = %v, want ErrNoDevice", err)
	}
	if out.String() != "first\nsecond\n" {
		t.Errorf("output = %q", out.String())
	}

	st := r.Stats()
	if st.Records != 2 || st.Accepted != 2 || st.Partial != 3 {
		t.Errorf("Stats() = %+v", st)
	}
	if st.Bytes != uint64(len("first\nsecond\nthi")) {
		t.Errorf("Bytes = %d", st.Bytes)
	}
}

func TestRunSequenceContinues(t *testing.T) {
	var seqs []uint64
	r := New(nil, []Sink{SinkFunc(func(rec *Record) error {
		seqs = append(seqs, rec.Seq)
		return nil
	})})

	for i := 0; i < 2; i++ {
		src := &chunkSource{chunks: []string{"a\nb\n"}, err: pkg.ErrNoDevice}
		r.Run(context.Background(), src)
	}
	want := []uint64{0, 1, 2, 3}
	if len(seqs) != len(want) {
		t.Fatalf("seqs = %v, want %v", seqs, want)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Errorf("seqs = %v, want %v", seqs, want)
			break
		}
	}
}

func TestRunCancelled(t *testing.T) {
	r := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx, &chunkSource{}); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestDeliverFiltersAndCountsSinkErrors(t *testing.T) {
	f, err := NewFilter(`level == "error"`)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	failing := SinkFunc(func(*Record) error { return errors.New("disk full") })
	r := New(f, []Sink{failing, NewRawSink(&out)})

	r.Deliver(NewRecord(0, time.Now(), []byte(`{"level":"info"}`)))
	if !r.Deliver(NewRecord(1, time.Now(), []byte(`{"level":"error"}`))) {
		t.Error("Deliver() rejected a matching record")
	}

	st := r.Stats()
	if st.Filtered != 1 || st.Accepted != 1 || st.SinkErrors != 1 {
		t.Errorf("Stats() = %+v", st)
	}
	if out.String() != "{\"level\":\"error\"}\n" {
		t.Errorf("later sink output = %q", out.String())
	}
}

func TestOversizedCounted(t *testing.T) {
	r := New(nil, nil, WithMaxRecord(4), WithReadSize(3))
	src := &chunkSource{chunks: []string{"toolong\nok\n"}, err: io.EOF}
	r.Run(context.Background(), src)
	st := r.Stats()
	if st.Oversized != 1 || st.Records != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestConsoleSink(t *testing.T) {
	var out bytes.Buffer
	s := NewConsoleSink(&out, false)

	if err := s.Write(NewRecord(0, time.Now(), []byte(`{"level":"warn","message":"hello","counter":7}`))); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(NewRecord(1, time.Now(), []byte("not json"))); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	for _, want := range []string{"WRN", "hello", "counter=7", "not json\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestArchiveSink(t *testing.T) {
	a, err := archive.Open(archive.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	r := New(nil, []Sink{NewArchiveSink(a)})
	src := &chunkSource{chunks: []string{"x\ny\n"}, err: pkg.ErrNoDevice}
	r.Run(context.Background(), src)

	var got []string
	if err := a.Scan(context.Background(), 0, func(rec archive.Record) error {
		got = append(got, string(rec.Data))
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "x,y" {
		t.Errorf("archived %q", got)
	}
}
