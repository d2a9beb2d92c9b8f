package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ardnew/usblog/device"
	"github.com/ardnew/usblog/device/class/cdc"
	"github.com/ardnew/usblog/device/hal/fifo"
)

func levels(t *testing.T, out []byte) []string {
	t.Helper()
	var got []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		var ev struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad record %q: %v", sc.Text(), err)
		}
		if ev.Message != "hello" {
			t.Errorf("message = %q", ev.Message)
		}
		got = append(got, ev.Level)
	}
	return got
}

func TestBeatCadence(t *testing.T) {
	tests := []struct {
		counter uint32
		want    []string
	}{
		{0, []string{"", "trace", "debug", "info", "warn", "error"}},
		{1, []string{"", "trace"}},
		{3, []string{"", "trace", "debug"}},
		{5, []string{"", "trace", "info"}},
		{7, []string{"", "trace", "warn"}},
		{15, []string{"", "trace", "debug", "info"}},
		{31, []string{"", "trace", "error"}},
		{105, []string{"", "trace", "debug", "info", "warn"}},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		beat(zerolog.New(&buf).Level(zerolog.TraceLevel), tt.counter)
		got := levels(t, buf.Bytes())
		if len(got) != len(tt.want) {
			t.Errorf("counter %d: levels = %q, want %q", tt.counter, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("counter %d: levels = %q, want %q", tt.counter, got, tt.want)
				break
			}
		}
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	bus, err := fifo.Open(t.TempDir(), cdc.DefaultIdentity())
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()

	storage := make([]byte, 256)
	_, h, err := device.Setup(bus, storage)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	beats := loop(ctx, zerolog.New(&buf), h.Status(), 5*time.Millisecond)
	if beats == 0 {
		t.Fatal("no beats before cancel")
	}
	if got := bytes.Count(buf.Bytes(), []byte("\n")); got < int(beats) {
		t.Errorf("records = %d, want at least %d", got, beats)
	}
}
