package gpt

import (
	"testing"
	"time"

	"github.com/ardnew/usblog/device/hal"
	"github.com/ardnew/usblog/device/hal/irq"
)

func TestExpireAccumulates(t *testing.T) {
	line := irq.NewLine()
	tm := New(line)
	tm.SetInterruptEnabled(true)

	tm.Expire()
	tm.Expire()
	tm.Expire()

	cleared := 0
	for tm.IsElapsed() {
		tm.ClearElapsed()
		cleared++
	}
	if cleared != 3 {
		t.Errorf("cleared %d expiries, want 3", cleared)
	}
	if line.Raised() != 3 {
		t.Errorf("line raised %d times, want 3", line.Raised())
	}
}

func TestInterruptDisabled(t *testing.T) {
	line := irq.NewLine()
	tm := New(line)

	tm.Expire()
	if !tm.IsElapsed() {
		t.Error("IsElapsed() = false after Expire")
	}
	if line.Raised() != 0 {
		t.Error("line raised with timer interrupt disabled")
	}
}

func TestClearElapsedWhenIdle(t *testing.T) {
	tm := New(irq.NewLine())
	tm.ClearElapsed()
	if tm.IsElapsed() {
		t.Error("IsElapsed() = true on idle timer")
	}
}

func TestRepeatRaisesInterrupt(t *testing.T) {
	line := irq.NewLine()
	tm := New(line)
	tm.SetInterruptEnabled(true)
	tm.SetMode(hal.TimerRepeat)
	tm.SetLoad(1000)
	tm.Run()
	defer tm.Stop()

	deadline := time.After(2 * time.Second)
	for tm.Expiries() < 3 {
		select {
		case <-line.C():
		case <-deadline:
			t.Fatalf("only %d expiries before deadline", tm.Expiries())
		}
	}
	if !tm.Running() {
		t.Error("repeat timer stopped after expiring")
	}
}

func TestOneShotStops(t *testing.T) {
	line := irq.NewLine()
	tm := New(line)
	tm.SetInterruptEnabled(true)
	tm.SetMode(hal.TimerOneShot)
	tm.SetLoad(500)
	tm.Run()

	select {
	case <-line.C():
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot timer never expired")
	}
	deadline := time.Now().Add(time.Second)
	for tm.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if tm.Running() {
		t.Error("one-shot timer still running")
	}
}

func TestRunWithoutLoad(t *testing.T) {
	tm := New(irq.NewLine())
	tm.Run()
	if tm.Running() {
		t.Error("timer running without load")
	}
}
