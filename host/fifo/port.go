package fifo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ardnew/usblog/device/class/cdc"
	"github.com/ardnew/usblog/device/hal"
	devfifo "github.com/ardnew/usblog/device/hal/fifo"
	"github.com/ardnew/usblog/pkg"
)

// Timing constants.
const (
	DefaultTimeout = 5 * time.Second        // Control transfer reply timeout
	monitorSlice   = 100 * time.Millisecond // Connection and read poll slice
)

// DefaultAddress is the address assigned during enumeration.
const DefaultAddress = 1

// Info describes an enumerated device.
type Info struct {
	Dir          string
	Address      uint8
	Device       cdc.DeviceDescriptor
	ConfigLength int
	Manufacturer string
	Product      string
	SerialNumber string
}

// Port is the host end of one device directory on a FIFO bus. Control
// transfers are serialized; Read may run concurrently with them.
type Port struct {
	dir     string
	timeout time.Duration

	control *os.File
	status  *os.File
	dataIn  *os.File
	conn    *os.File

	mu    sync.Mutex
	txBuf [devfifo.HeaderSize + devfifo.MaxPayload]byte
	rxBuf [devfifo.MaxPayload]byte

	connected chan struct{}
	gone      chan struct{}
	goneOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open opens the FIFOs of the device directory dir and starts monitoring its
// connection signals. A non-positive timeout selects [DefaultTimeout].
func Open(dir string, timeout time.Duration) (*Port, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &Port{
		dir:       dir,
		timeout:   timeout,
		connected: make(chan struct{}),
		gone:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, f := range []struct {
		name string
		dst  **os.File
	}{
		{devfifo.FileConnection, &p.conn},
		{devfifo.FileControl, &p.control},
		{devfifo.FileStatus, &p.status},
		{devfifo.FileDataIn, &p.dataIn},
	} {
		// O_RDWR keeps each FIFO open without waiting for the device end.
		file, err := os.OpenFile(filepath.Join(dir, f.name), os.O_RDWR, 0)
		if err != nil {
			p.closeFiles()
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", pkg.ErrNoDevice, dir)
			}
			return nil, fmt.Errorf("open %s: %w", f.name, err)
		}
		*f.dst = file
	}

	p.wg.Add(1)
	go p.monitor()

	pkg.LogDebug(pkg.ComponentHost, "port opened", "dir", dir)
	return p, nil
}

// Dir returns the device directory.
func (p *Port) Dir() string {
	return p.dir
}

// Connected is closed once the device's connect signal has been seen.
// A device already claimed by an earlier session will not signal again.
func (p *Port) Connected() <-chan struct{} {
	return p.connected
}

// Gone is closed when the device signals disconnection or its directory
// disappears.
func (p *Port) Gone() <-chan struct{} {
	return p.gone
}

// monitor watches the connection FIFO for signals.
func (p *Port) monitor() {
	defer p.wg.Done()

	var sig [1]byte
	connectOnce := sync.Once{}
	for {
		select {
		case <-p.done:
			return
		default:
		}

		p.conn.SetReadDeadline(time.Now().Add(monitorSlice))
		n, err := p.conn.Read(sig[:])
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if _, serr := os.Stat(p.dir); errors.Is(serr, os.ErrNotExist) {
					p.markGone("device directory removed")
					return
				}
				continue
			}
			if errors.Is(err, os.ErrClosed) {
				return
			}
			p.markGone(err.Error())
			return
		}
		if n == 0 {
			continue
		}

		switch sig[0] {
		case devfifo.SigConnect:
			connectOnce.Do(func() { close(p.connected) })
			pkg.LogDebug(pkg.ComponentHost, "device connect signal", "dir", p.dir)
		case devfifo.SigDisconnect:
			p.markGone("disconnect signal")
			return
		}
	}
}

func (p *Port) markGone(reason string) {
	p.goneOnce.Do(func() {
		close(p.gone)
		pkg.LogInfo(pkg.ComponentHost, "device disconnected", "dir", p.dir, "reason", reason)
	})
}

// deadline bounds one control transfer by the port timeout and ctx.
func (p *Port) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(p.timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

// send frames and writes one message to the control FIFO. Caller must hold mu.
func (p *Port) send(msgType byte, setup *hal.SetupPacket, data []byte) error {
	n := devfifo.PutHeader(p.txBuf[:], msgType, 0)
	if setup != nil {
		n += setup.MarshalTo(p.txBuf[n:])
	}
	if len(data) > len(p.txBuf)-n {
		return fmt.Errorf("%w: %d bytes of OUT data", pkg.ErrBufferTooSmall, len(data))
	}
	n += copy(p.txBuf[n:], data)
	devfifo.PutHeader(p.txBuf[:], msgType, n-devfifo.HeaderSize)

	if _, err := p.control.Write(p.txBuf[:n]); err != nil {
		return fmt.Errorf("write %s: %w", devfifo.FileControl, err)
	}
	return nil
}

// recv reads one reply from the status FIFO. Caller must hold mu.
func (p *Port) recv(ctx context.Context) (byte, []byte, error) {
	deadline := p.deadline(ctx)

	var hdr [devfifo.HeaderSize]byte
	if err := p.readFull(ctx, deadline, hdr[:]); err != nil {
		return 0, nil, err
	}
	msgType, size, _ := devfifo.ParseHeader(hdr[:])
	if size > len(p.rxBuf) {
		return 0, nil, fmt.Errorf("%w: reply of %d bytes", pkg.ErrProtocol, size)
	}
	if err := p.readFull(ctx, deadline, p.rxBuf[:size]); err != nil {
		return 0, nil, err
	}
	return msgType, p.rxBuf[:size], nil
}

// readFull fills buf from the status FIFO in monitor-sized slices so
// cancellation and disconnection are noticed.
func (p *Port) readFull(ctx context.Context, deadline time.Time, buf []byte) error {
	for off := 0; off < len(buf); {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-p.gone:
			return pkg.ErrNoDevice
		default:
		}
		if !time.Now().Before(deadline) {
			return pkg.ErrTimeout
		}

		slice := time.Now().Add(monitorSlice)
		if deadline.Before(slice) {
			slice = deadline
		}
		p.status.SetReadDeadline(slice)
		n, err := p.status.Read(buf[off:])
		off += n
		if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("read %s: %w", devfifo.FileStatus, err)
		}
	}
	return nil
}

// drain discards stale replies left by an abandoned transfer.
// Caller must hold mu.
func (p *Port) drain() {
	for {
		p.status.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, err := p.status.Read(p.rxBuf[:])
		if n > 0 {
			pkg.LogDebug(pkg.ComponentHost, "discarded stale reply bytes", "bytes", n)
		}
		if err != nil || n == 0 {
			return
		}
	}
}

// Reset issues a port reset and waits for the device to acknowledge it.
func (p *Port) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.drain()
	if err := p.send(devfifo.MsgReset, nil, nil); err != nil {
		return err
	}
	msgType, _, err := p.recv(ctx)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if msgType != devfifo.MsgAck {
		return fmt.Errorf("%w: reset reply %#02x", pkg.ErrProtocol, msgType)
	}
	pkg.LogDebug(pkg.ComponentHost, "port reset complete", "dir", p.dir)
	return nil
}

// Control performs a control transfer. For IN requests the data stage is
// copied into data and its length returned; for OUT requests data is sent
// after the setup packet.
func (p *Port) Control(ctx context.Context, setup hal.SetupPacket, data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	isIn := setup.RequestType&hal.RequestDirectionIn != 0
	var out []byte
	if !isIn {
		out = data
		setup.Length = uint16(len(data))
	}
	if err := p.send(devfifo.MsgSetup, &setup, out); err != nil {
		return 0, err
	}

	msgType, payload, err := p.recv(ctx)
	if err != nil {
		return 0, fmt.Errorf("request %#02x: %w", setup.Request, err)
	}

	switch msgType {
	case devfifo.MsgData:
		if !isIn {
			return 0, fmt.Errorf("%w: data reply to OUT request", pkg.ErrProtocol)
		}
		if len(payload) > len(data) {
			return 0, fmt.Errorf("%w: %d byte reply", pkg.ErrBufferTooSmall, len(payload))
		}
		return copy(data, payload), nil
	case devfifo.MsgAck:
		return 0, nil
	case devfifo.MsgStall:
		return 0, fmt.Errorf("request %#02x: %w", setup.Request, pkg.ErrStall)
	default:
		return 0, fmt.Errorf("%w: reply type %#02x", pkg.ErrProtocol, msgType)
	}
}

// Descriptor reads the descriptor of the given type and index into buf.
func (p *Port) Descriptor(ctx context.Context, descType, index uint8, buf []byte) (int, error) {
	var langID uint16
	if descType == cdc.DescriptorTypeString && index != 0 {
		langID = cdc.LangIDUSEnglish
	}
	return p.Control(ctx, hal.SetupPacket{
		RequestType: hal.RequestDirectionIn,
		Request:     hal.RequestGetDescriptor,
		Value:       uint16(descType)<<8 | uint16(index),
		Index:       langID,
		Length:      uint16(len(buf)),
	}, buf)
}

// Enumerate resets the device, reads and verifies its descriptors, assigns
// an address, selects the configuration, and raises DTR. A zero vid and pid
// accept any device.
func (p *Port) Enumerate(ctx context.Context, vid, pid uint16) (*Info, error) {
	info := &Info{Dir: p.dir, Address: DefaultAddress}

	if err := p.Reset(ctx); err != nil {
		return nil, err
	}

	var buf [devfifo.MaxPayload]byte
	n, err := p.Descriptor(ctx, cdc.DescriptorTypeDevice, 0, buf[:cdc.DeviceDescriptorSize])
	if err != nil {
		return nil, fmt.Errorf("device descriptor: %w", err)
	}
	if err := cdc.ParseDeviceDescriptor(buf[:n], &info.Device); err != nil {
		return nil, fmt.Errorf("device descriptor: %w", err)
	}
	if vid != 0 || pid != 0 {
		if err := info.Device.Matches(vid, pid); err != nil {
			return nil, err
		}
	}

	if _, err := p.Control(ctx, hal.SetupPacket{
		Request: hal.RequestSetAddress,
		Value:   DefaultAddress,
	}, nil); err != nil {
		return nil, fmt.Errorf("set address: %w", err)
	}

	// Configuration header first for wTotalLength, then the whole set.
	n, err = p.Descriptor(ctx, cdc.DescriptorTypeConfiguration, 0, buf[:9])
	if err != nil {
		return nil, fmt.Errorf("configuration descriptor: %w", err)
	}
	if n < 4 {
		return nil, fmt.Errorf("configuration descriptor: %w", pkg.ErrDescriptorTooShort)
	}
	total := int(buf[2]) | int(buf[3])<<8
	if total > len(buf) {
		return nil, fmt.Errorf("configuration descriptor: %w", pkg.ErrBufferTooSmall)
	}
	if info.ConfigLength, err = p.Descriptor(ctx, cdc.DescriptorTypeConfiguration, 0, buf[:total]); err != nil {
		return nil, fmt.Errorf("configuration descriptor: %w", err)
	}

	for _, s := range []struct {
		index uint8
		dst   *string
	}{
		{info.Device.ManufacturerIndex, &info.Manufacturer},
		{info.Device.ProductIndex, &info.Product},
		{info.Device.SerialNumberIndex, &info.SerialNumber},
	} {
		if s.index == 0 {
			continue
		}
		n, err := p.Descriptor(ctx, cdc.DescriptorTypeString, s.index, buf[:255])
		if err != nil {
			return nil, fmt.Errorf("string descriptor %d: %w", s.index, err)
		}
		if *s.dst, err = cdc.DecodeString(buf[:n]); err != nil {
			return nil, fmt.Errorf("string descriptor %d: %w", s.index, err)
		}
	}

	if _, err := p.Control(ctx, hal.SetupPacket{
		Request: hal.RequestSetConfiguration,
		Value:   cdc.ConfigurationValue,
	}, nil); err != nil {
		return nil, fmt.Errorf("set configuration: %w", err)
	}

	if _, err := p.Control(ctx, hal.SetupPacket{
		RequestType: 0x21,
		Request:     cdc.RequestSetControlLineState,
		Value:       cdc.ControlLineDTR | cdc.ControlLineRTS,
		Index:       cdc.InterfaceControl,
	}, nil); err != nil {
		return nil, fmt.Errorf("set control line state: %w", err)
	}

	pkg.LogInfo(pkg.ComponentHost, "device enumerated",
		"dir", p.dir,
		"vid", fmt.Sprintf("%04x", info.Device.VendorID),
		"pid", fmt.Sprintf("%04x", info.Device.ProductID),
		"product", info.Product,
		"serial", info.SerialNumber)
	return info, nil
}

// Read reads bulk IN data. It waits until data arrives, ctx is done, or the
// device disconnects, in which case any buffered data is returned first and
// then [pkg.ErrNoDevice].
func (p *Port) Read(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		p.dataIn.SetReadDeadline(time.Now().Add(monitorSlice))
		n, err := p.dataIn.Read(buf)
		if n > 0 {
			return n, nil
		}
		switch {
		case err == nil:
		case errors.Is(err, os.ErrDeadlineExceeded):
			select {
			case <-p.gone:
				return 0, pkg.ErrNoDevice
			default:
			}
		case errors.Is(err, os.ErrClosed), errors.Is(err, io.EOF):
			return 0, pkg.ErrNoDevice
		default:
			return 0, fmt.Errorf("read %s: %w", devfifo.FileDataIn, err)
		}
	}
}

// Close stops monitoring and closes the port's FIFOs.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		p.closeFiles()
		pkg.LogDebug(pkg.ComponentHost, "port closed", "dir", p.dir)
	})
	return nil
}

// closeFiles leaves the fields set so a concurrent Read sees os.ErrClosed.
func (p *Port) closeFiles() {
	for _, f := range []*os.File{p.conn, p.control, p.status, p.dataIn} {
		if f != nil {
			f.Close()
		}
	}
}
