package irq

import "testing"

func TestLineCoalesces(t *testing.T) {
	l := NewLine()
	for i := 0; i < 5; i++ {
		l.Raise()
	}
	if got := l.Raised(); got != 5 {
		t.Errorf("Raised() = %d, want 5", got)
	}

	select {
	case <-l.C():
	default:
		t.Fatal("no delivery after Raise")
	}
	select {
	case <-l.C():
		t.Error("second delivery for coalesced assertions")
	default:
	}
}

func TestLineIdle(t *testing.T) {
	l := NewLine()
	select {
	case <-l.C():
		t.Error("idle line delivered")
	default:
	}
}
