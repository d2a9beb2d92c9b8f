package pkg

import "errors"

// Log queue errors.
var (
	// ErrQueueFull indicates a record did not fit in the queue's free space.
	// The record was dropped and counted; queued content is unchanged.
	ErrQueueFull = errors.New("log queue full")

	// ErrInvalidRelease indicates a grant release outside [0, grant length].
	ErrInvalidRelease = errors.New("release exceeds grant")

	// ErrAlreadySplit indicates the queue endpoints were already handed out.
	ErrAlreadySplit = errors.New("queue already split")
)

// USB transport errors.
var (
	// ErrWouldBlock indicates the endpoint accepted no bytes; retry later.
	ErrWouldBlock = errors.New("operation would block")

	// ErrStall indicates an endpoint stall condition.
	ErrStall = errors.New("endpoint stalled")

	// ErrTimeout indicates a transfer timeout.
	ErrTimeout = errors.New("transfer timeout")

	// ErrCancelled indicates a cancelled transfer.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrProtocol indicates a protocol error.
	ErrProtocol = errors.New("protocol error")

	// ErrNoDevice indicates the device is not present.
	ErrNoDevice = errors.New("device not present")

	// ErrNotConfigured indicates the device is not configured.
	ErrNotConfigured = errors.New("device not configured")

	// ErrAlreadyConfigured indicates the configuration was already committed
	// in the current enumeration.
	ErrAlreadyConfigured = errors.New("device already configured")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrDescriptorTooShort indicates the descriptor data is too short.
	ErrDescriptorTooShort = errors.New("descriptor too short")

	// ErrDescriptorTypeMismatch indicates the descriptor type does not match expected.
	ErrDescriptorTypeMismatch = errors.New("descriptor type mismatch")

	// ErrDescriptorMismatch indicates an enumerated device does not carry the
	// expected vendor and product identifiers.
	ErrDescriptorMismatch = errors.New("unexpected device identity")

	// ErrAlreadyRunning indicates the handler is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")
)
