package pkg

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	errs := []error{
		ErrQueueFull,
		ErrInvalidRelease,
		ErrAlreadySplit,
		ErrWouldBlock,
		ErrStall,
		ErrTimeout,
		ErrCancelled,
		ErrProtocol,
		ErrNoDevice,
		ErrNotConfigured,
		ErrAlreadyConfigured,
		ErrBufferTooSmall,
		ErrDescriptorTooShort,
		ErrDescriptorTypeMismatch,
		ErrDescriptorMismatch,
		ErrAlreadyRunning,
		ErrInvalidParameter,
	}

	for i, err1 := range errs {
		if err1 == nil {
			t.Errorf("error %d is nil", i)
			continue
		}
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("error %d and %d are equal", i, j)
			}
		}
	}
}

func TestWrappedSentinels(t *testing.T) {
	err := fmt.Errorf("write ep2_in: %w", ErrWouldBlock)
	if !errors.Is(err, ErrWouldBlock) {
		t.Errorf("errors.Is(%v, ErrWouldBlock) = false", err)
	}
	if errors.Is(err, ErrQueueFull) {
		t.Errorf("errors.Is(%v, ErrQueueFull) = true", err)
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err     error
		wantMsg string
	}{
		{ErrQueueFull, "log queue full"},
		{ErrWouldBlock, "operation would block"},
		{ErrStall, "endpoint stalled"},
		{ErrTimeout, "transfer timeout"},
		{ErrNoDevice, "device not present"},
		{ErrAlreadyConfigured, "device already configured"},
	}

	for _, tt := range tests {
		t.Run(tt.wantMsg, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("error.Error() = %v, want %v", got, tt.wantMsg)
			}
		})
	}
}
