package fifo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ardnew/usblog/device/class/cdc"
	"github.com/ardnew/usblog/device/hal"
	"github.com/ardnew/usblog/device/hal/gpt"
	"github.com/ardnew/usblog/device/hal/irq"
	"github.com/ardnew/usblog/pkg"
)

// MaxTransfer is the most bytes one Write moves to the bulk IN FIFO,
// standing in for the endpoint's transfer descriptor size.
const MaxTransfer = 8 * cdc.BulkPacketSize

// rxSize holds one maximal message plus a partial header.
const rxSize = HeaderSize + MaxPayload + HeaderSize

// Bus is a hosted USB device controller backed by named pipes. It implements
// [hal.Adapter] with a software timer on the same interrupt line.
//
// Poll, Configure and Write are meant for interrupt context and must not be
// called concurrently with each other. State and Address may be read from
// anywhere.
type Bus struct {
	busDir    string
	deviceDir string
	uuid      string
	desc      *cdc.Descriptors

	line  *irq.Line
	timer *gpt.Timer

	connection *pipe
	control    *pipe
	status     *pipe
	dataIn     *pipe

	state   atomic.Uint32
	address atomic.Uint32

	// Interrupt-context state.
	config       uint8
	committed    bool
	lineCoding   cdc.LineCoding
	controlLines uint16
	setup        hal.SetupPacket
	rx           [rxSize]byte
	rxLen        int
	tx           [HeaderSize + MaxPayload]byte

	closeOnce sync.Once
	closed    atomic.Bool
}

var _ hal.Adapter = (*Bus)(nil)

// Open creates a device directory under busDir, creates its FIFOs, and
// signals the host that the device is attached. The device answers
// enumeration with the descriptors for id.
func Open(busDir string, id cdc.Identity) (*Bus, error) {
	uuid, err := generateUUID()
	if err != nil {
		return nil, fmt.Errorf("generate uuid: %w", err)
	}
	b := &Bus{
		busDir:     busDir,
		uuid:       uuid,
		deviceDir:  filepath.Join(busDir, DevicePrefix+uuid),
		desc:       cdc.NewDescriptors(id),
		line:       irq.NewLine(),
		lineCoding: cdc.DefaultLineCoding,
	}
	b.timer = gpt.New(b.line)
	b.state.Store(uint32(hal.StateAttached))

	if err := os.MkdirAll(b.deviceDir, 0o755); err != nil {
		return nil, fmt.Errorf("create device dir: %w", err)
	}
	for _, name := range []string{FileConnection, FileControl, FileStatus, FileDataIn} {
		if err := createFIFO(b.deviceDir, name); err != nil {
			b.cleanup()
			return nil, err
		}
	}
	for _, p := range []struct {
		name string
		dst  **pipe
	}{
		{FileConnection, &b.connection},
		{FileControl, &b.control},
		{FileStatus, &b.status},
		{FileDataIn, &b.dataIn},
	} {
		*p.dst, err = openPipe(filepath.Join(b.deviceDir, p.name))
		if err != nil {
			b.cleanup()
			return nil, err
		}
	}

	if err := b.connection.writeAll([]byte{SigConnect}); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("signal connect: %w", err)
	}
	b.state.Store(uint32(hal.StatePowered))

	pkg.LogInfo(pkg.ComponentHAL, "fifo bus attached",
		"busDir", busDir,
		"deviceDir", b.deviceDir,
		"uuid", uuid)
	return b, nil
}

// Timer returns the drain timer sharing the bus interrupt.
func (b *Bus) Timer() hal.Timer {
	return b.timer
}

// Interrupt returns the bus interrupt line.
func (b *Bus) Interrupt() <-chan struct{} {
	return b.line.C()
}

// State returns the device state observed by the most recent Poll.
func (b *Bus) State() hal.State {
	return hal.State(b.state.Load())
}

// DeviceDir returns the device directory path.
func (b *Bus) DeviceDir() string {
	return b.deviceDir
}

// UUID returns the device's unique identifier.
func (b *Bus) UUID() string {
	return b.uuid
}

// Address returns the address assigned by the host.
func (b *Bus) Address() uint8 {
	return uint8(b.address.Load())
}

// LineCoding returns the line coding last set by the host. Call it from
// interrupt context or once the handler has stopped.
func (b *Bus) LineCoding() cdc.LineCoding {
	return b.lineCoding
}

// Poll reads pending requests without waiting and handles complete ones.
// It stops after a request that changes the device state, so every state is
// observed by the caller before the next one is applied; the remaining
// requests are handled on the next Poll.
func (b *Bus) Poll() (bool, error) {
	if b.closed.Load() {
		return false, pkg.ErrNoDevice
	}

	n, err := b.control.read(b.rx[b.rxLen:])
	b.rxLen += n
	if err != nil && !errors.Is(err, pkg.ErrWouldBlock) {
		return false, fmt.Errorf("read %s: %w", FileControl, err)
	}

	activity := false
	for {
		msgType, size, ok := ParseHeader(b.rx[:b.rxLen])
		if !ok {
			break
		}
		if size > MaxPayload {
			b.rxLen = 0
			return activity, fmt.Errorf("%w: payload %d exceeds %d", pkg.ErrProtocol, size, MaxPayload)
		}
		end := HeaderSize + size
		if b.rxLen < end {
			break
		}

		changed, herr := b.handle(msgType, b.rx[HeaderSize:end])
		b.rxLen = copy(b.rx[:], b.rx[end:b.rxLen])
		activity = true
		if herr != nil {
			return activity, herr
		}
		if changed {
			break
		}
	}
	return activity, nil
}

// handle processes one message and reports whether the device state changed.
func (b *Bus) handle(msgType byte, payload []byte) (bool, error) {
	switch msgType {
	case MsgReset:
		b.address.Store(0)
		b.config = 0
		b.committed = false
		b.setState(hal.StateDefault)
		pkg.LogDebug(pkg.ComponentHAL, "port reset received")
		return true, b.reply(MsgAck, nil)

	case MsgSetup:
		if !hal.ParseSetupPacket(payload, &b.setup) {
			return false, b.reply(MsgStall, nil)
		}
		return b.handleSetup(&b.setup, payload[hal.SetupPacketSize:])

	default:
		pkg.LogWarn(pkg.ComponentHAL, "unknown message type", "type", msgType)
		return false, nil
	}
}

func (b *Bus) handleSetup(s *hal.SetupPacket, data []byte) (bool, error) {
	pkg.LogTrace(pkg.ComponentHAL, "setup received",
		"reqType", s.RequestType,
		"req", s.Request,
		"value", s.Value,
		"length", s.Length)

	if s.RequestType&0x60 == 0x20 {
		return false, b.handleClass(s, data)
	}

	switch s.Request {
	case hal.RequestGetDescriptor:
		desc, ok := b.desc.Lookup(s.DescriptorType(), s.DescriptorIndex())
		if !ok {
			return false, b.reply(MsgStall, nil)
		}
		if len(desc) > int(s.Length) {
			desc = desc[:s.Length]
		}
		return false, b.reply(MsgData, desc)

	case hal.RequestSetAddress:
		b.address.Store(uint32(s.Value & 0x7F))
		if b.State() == hal.StateConfigured {
			b.committed = false
		}
		b.setState(hal.StateAddress)
		pkg.LogDebug(pkg.ComponentHAL, "address set", "address", b.Address())
		return true, b.reply(MsgAck, nil)

	case hal.RequestSetConfiguration:
		switch uint8(s.Value) {
		case cdc.ConfigurationValue:
			b.config = cdc.ConfigurationValue
			b.setState(hal.StateConfigured)
		case 0:
			b.config = 0
			b.committed = false
			b.setState(hal.StateAddress)
		default:
			return false, b.reply(MsgStall, nil)
		}
		return true, b.reply(MsgAck, nil)

	case hal.RequestGetConfiguration:
		return false, b.reply(MsgData, []byte{b.config})

	case hal.RequestGetStatus:
		return false, b.reply(MsgData, []byte{0, 0})

	default:
		return false, b.reply(MsgStall, nil)
	}
}

func (b *Bus) handleClass(s *hal.SetupPacket, data []byte) error {
	switch s.Request {
	case cdc.RequestGetLineCoding:
		var buf [cdc.LineCodingSize]byte
		b.lineCoding.MarshalTo(buf[:])
		return b.reply(MsgData, buf[:])
	case cdc.RequestSetLineCoding:
		if !cdc.ParseLineCoding(data, &b.lineCoding) {
			return b.reply(MsgStall, nil)
		}
		return b.reply(MsgAck, nil)
	case cdc.RequestSetControlLineState:
		b.controlLines = s.Value
		return b.reply(MsgAck, nil)
	default:
		return b.reply(MsgStall, nil)
	}
}

func (b *Bus) setState(s hal.State) {
	if old := hal.State(b.state.Swap(uint32(s))); old != s {
		pkg.LogDebug(pkg.ComponentHAL, "device state changed", "from", old, "to", s)
	}
}

func (b *Bus) reply(msgType byte, payload []byte) error {
	n := PutHeader(b.tx[:], msgType, len(payload))
	n += copy(b.tx[n:], payload)
	if err := b.status.writeAll(b.tx[:n]); err != nil {
		return fmt.Errorf("write %s: %w", FileStatus, err)
	}
	return nil
}

// Configure enables the bulk endpoints for the selected configuration.
func (b *Bus) Configure() error {
	if b.State() != hal.StateConfigured {
		return pkg.ErrNotConfigured
	}
	if b.committed {
		return pkg.ErrAlreadyConfigured
	}
	b.committed = true
	pkg.LogDebug(pkg.ComponentHAL, "endpoints enabled", "config", b.config)
	return nil
}

// Write moves up to [MaxTransfer] bytes of data to the bulk IN FIFO without
// waiting. It returns [pkg.ErrWouldBlock] when the FIFO is full and
// [pkg.ErrNotConfigured] before the configuration is committed.
func (b *Bus) Write(data []byte) (int, error) {
	if b.closed.Load() {
		return 0, pkg.ErrNoDevice
	}
	if !b.committed || b.State() != hal.StateConfigured {
		return 0, pkg.ErrNotConfigured
	}
	if len(data) > MaxTransfer {
		data = data[:MaxTransfer]
	}
	n, err := b.dataIn.write(data)
	if err != nil && !errors.Is(err, pkg.ErrWouldBlock) {
		return n, fmt.Errorf("write %s: %w", FileDataIn, err)
	}
	if n > 0 {
		return n, nil
	}
	return 0, err
}

// Close signals disconnection, stops the timer, and removes the device
// directory.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.timer.Stop()
		if b.connection != nil {
			if err := b.connection.writeAll([]byte{SigDisconnect}); err != nil {
				pkg.LogWarn(pkg.ComponentHAL, "failed to signal disconnect", "err", err)
			}
		}
		b.setState(hal.StateAttached)
		b.cleanup()
		pkg.LogInfo(pkg.ComponentHAL, "fifo bus detached", "uuid", b.uuid)
	})
	return nil
}

func (b *Bus) cleanup() {
	for _, p := range []**pipe{&b.connection, &b.control, &b.status, &b.dataIn} {
		if *p != nil {
			(*p).close()
			*p = nil
		}
	}
	if b.deviceDir != "" {
		os.RemoveAll(b.deviceDir)
	}
}
