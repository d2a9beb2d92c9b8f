package hal

import "fmt"

// State is the USB device state as seen by the controller.
type State uint8

// USB device states (USB 2.0 Specification, Section 9.1).
const (
	StateAttached   State = 0 // Device is attached but not powered
	StatePowered    State = 1 // Device is powered
	StateDefault    State = 2 // Device has been reset, using default address
	StateAddress    State = 3 // Device has been assigned a unique address
	StateConfigured State = 4 // Host selected a configuration
	StateSuspended  State = 5 // Device is in suspend mode
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateAttached:
		return "Attached"
	case StatePowered:
		return "Powered"
	case StateDefault:
		return "Default"
	case StateAddress:
		return "Address"
	case StateConfigured:
		return "Configured"
	case StateSuspended:
		return "Suspended"
	default:
		return fmt.Sprintf("Unknown State (%d)", s)
	}
}

// Standard request codes handled by bus implementations during enumeration.
const (
	RequestGetStatus        uint8 = 0x00
	RequestSetAddress       uint8 = 0x05
	RequestGetDescriptor    uint8 = 0x06
	RequestGetConfiguration uint8 = 0x08
	RequestSetConfiguration uint8 = 0x09
)

// Request type bits.
const (
	RequestDirectionIn  uint8 = 0x80
	RequestDirectionOut uint8 = 0x00
)

// SetupPacket represents a USB SETUP packet.
// This is a fixed-size, zero-allocation structure for SETUP transactions.
type SetupPacket struct {
	RequestType uint8  // Request characteristics
	Request     uint8  // Specific request
	Value       uint16 // Request-specific value
	Index       uint16 // Request-specific index
	Length      uint16 // Number of bytes to transfer
}

// SetupPacketSize is the size of a USB SETUP packet in bytes.
const SetupPacketSize = 8

// ParseSetupPacket parses raw bytes into a SetupPacket.
// Returns false if data is too short.
func ParseSetupPacket(data []byte, out *SetupPacket) bool {
	if len(data) < SetupPacketSize {
		return false
	}
	out.RequestType = data[0]
	out.Request = data[1]
	out.Value = uint16(data[2]) | uint16(data[3])<<8
	out.Index = uint16(data[4]) | uint16(data[5])<<8
	out.Length = uint16(data[6]) | uint16(data[7])<<8
	return true
}

// MarshalTo writes the setup packet to buf.
// Returns the number of bytes written (8), or 0 if buf is too small.
func (s *SetupPacket) MarshalTo(buf []byte) int {
	if len(buf) < SetupPacketSize {
		return 0
	}
	buf[0] = s.RequestType
	buf[1] = s.Request
	buf[2] = byte(s.Value)
	buf[3] = byte(s.Value >> 8)
	buf[4] = byte(s.Index)
	buf[5] = byte(s.Index >> 8)
	buf[6] = byte(s.Length)
	buf[7] = byte(s.Length >> 8)
	return SetupPacketSize
}

// DescriptorType returns the descriptor type of a GET_DESCRIPTOR request.
func (s *SetupPacket) DescriptorType() uint8 {
	return uint8(s.Value >> 8)
}

// DescriptorIndex returns the descriptor index of a GET_DESCRIPTOR request.
func (s *SetupPacket) DescriptorIndex() uint8 {
	return uint8(s.Value)
}

// Bus is the USB device controller as seen from interrupt context.
//
// Every method must return without waiting on the host. Implementations are
// driven from a single interrupt context and need not be safe for concurrent
// use.
type Bus interface {
	// Poll services pending bus activity (resets, control requests).
	// Returns true if anything was processed.
	Poll() (bool, error)

	// State returns the device state observed by the most recent Poll.
	State() State

	// Configure commits the selected configuration to hardware and enables
	// the data endpoints. It returns [pkg.ErrAlreadyConfigured] when called
	// again within the same enumeration.
	Configure() error

	// Write queues data on the bulk IN endpoint. It may accept fewer bytes
	// than offered. When no bytes can be accepted it returns 0 and
	// [pkg.ErrWouldBlock].
	Write(data []byte) (int, error)
}

// TimerMode selects how a timer reloads after expiring.
type TimerMode uint8

// Timer modes.
const (
	TimerOneShot TimerMode = iota // Stop after one expiry
	TimerRepeat                   // Reload and keep counting
)

// String returns a human-readable mode name.
func (m TimerMode) String() string {
	switch m {
	case TimerOneShot:
		return "OneShot"
	case TimerRepeat:
		return "Repeat"
	default:
		return fmt.Sprintf("Unknown Mode (%d)", m)
	}
}

// Timer is a general purpose periodic timer sharing the USB interrupt line.
//
// Expiries set an elapsed flag. Several expiries may coalesce before the
// interrupt is serviced; each must be cleared with ClearElapsed.
type Timer interface {
	// Stop halts counting.
	Stop()

	// Run starts counting from the current value.
	Run()

	// Reset reloads the counter without changing run state.
	Reset()

	// IsElapsed reports whether an expiry is pending.
	IsElapsed() bool

	// ClearElapsed acknowledges one pending expiry.
	ClearElapsed()

	// SetInterruptEnabled routes expiries to the interrupt line.
	SetInterruptEnabled(enabled bool)

	// SetMode selects one-shot or repeat operation.
	SetMode(mode TimerMode)

	// SetLoad sets the period in microseconds.
	SetLoad(micros uint32)
}

// Adapter is a platform's USB peripheral together with its periodic timer
// and the interrupt line they share.
type Adapter interface {
	Bus

	// Timer returns the timer wired to the USB interrupt.
	Timer() Timer

	// Interrupt returns the interrupt line. A pending assertion is
	// delivered once no matter how many sources raised it.
	Interrupt() <-chan struct{}
}
