package usb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/ardnew/usblog/device/class/cdc"
	"github.com/ardnew/usblog/pkg"
)

// DefaultControlTimeout bounds control transfers issued while opening.
const DefaultControlTimeout = time.Second

// Info describes the opened device.
type Info struct {
	VendorID     uint16
	ProductID    uint16
	Bus          int
	Address      int
	Manufacturer string
	Product      string
	SerialNumber string
	PacketSize   int
}

// Source streams the bulk IN endpoint of a CDC-ACM log device.
type Source struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	info Info
}

// Open opens the first device matching vid and pid.
func Open(vid, pid uint16) (s *Source, err error) {
	s = &Source{ctx: gousb.NewContext()}
	defer func() {
		if err != nil {
			s.Close()
			s = nil
		}
	}()

	s.dev, err = s.ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		return nil, fmt.Errorf("open %04x:%04x: %w", vid, pid, translate(err))
	}
	if s.dev == nil {
		return nil, fmt.Errorf("%w: %04x:%04x not found", pkg.ErrNoDevice, vid, pid)
	}
	s.dev.ControlTimeout = DefaultControlTimeout

	// Detach cdc_acm so the data interface can be claimed.
	if err := s.dev.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("auto detach: %w", translate(err))
	}

	s.cfg, err = s.dev.Config(cdc.ConfigurationValue)
	if err != nil {
		return nil, fmt.Errorf("select configuration: %w", translate(err))
	}
	s.intf, err = s.cfg.Interface(cdc.InterfaceData, 0)
	if err != nil {
		return nil, fmt.Errorf("claim data interface: %w", translate(err))
	}
	s.in, err = s.intf.InEndpoint(cdc.EndpointDataIn & 0x0F)
	if err != nil {
		return nil, fmt.Errorf("bulk IN endpoint: %w", translate(err))
	}

	// SET_CONTROL_LINE_STATE on the communications interface.
	if _, err := s.dev.Control(0x21, cdc.RequestSetControlLineState,
		cdc.ControlLineDTR|cdc.ControlLineRTS, cdc.InterfaceControl, nil); err != nil {
		pkg.LogWarn(pkg.ComponentHost, "set control line state failed", "err", err)
	}

	desc := s.dev.Desc
	s.info = Info{
		VendorID:   uint16(desc.Vendor),
		ProductID:  uint16(desc.Product),
		Bus:        desc.Bus,
		Address:    desc.Address,
		PacketSize: s.in.Desc.MaxPacketSize,
	}
	s.info.Manufacturer, _ = s.dev.Manufacturer()
	s.info.Product, _ = s.dev.Product()
	s.info.SerialNumber, _ = s.dev.SerialNumber()

	pkg.LogInfo(pkg.ComponentHost, "usb device opened",
		"vid", fmt.Sprintf("%04x", vid),
		"pid", fmt.Sprintf("%04x", pid),
		"bus", desc.Bus,
		"address", desc.Address,
		"product", s.info.Product,
		"serial", s.info.SerialNumber)
	return s, nil
}

// Info returns what was learned about the device when it was opened.
func (s *Source) Info() Info {
	return s.info
}

// Read reads bulk IN data, waiting until some arrives or ctx is done.
// A detached device reports [pkg.ErrNoDevice].
func (s *Source) Read(ctx context.Context, p []byte) (int, error) {
	for {
		n, err := s.in.ReadContext(ctx, p)
		if n > 0 || err == nil {
			return n, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		err = translate(err)
		if errors.Is(err, pkg.ErrTimeout) {
			continue
		}
		return 0, err
	}
}

// Close releases the interface and closes the device and libusb context.
func (s *Source) Close() error {
	if s.intf != nil {
		s.intf.Close()
		s.intf = nil
	}
	var errs []error
	if s.cfg != nil {
		errs = append(errs, s.cfg.Close())
		s.cfg = nil
	}
	if s.dev != nil {
		errs = append(errs, s.dev.Close())
		s.dev = nil
	}
	if s.ctx != nil {
		errs = append(errs, s.ctx.Close())
		s.ctx = nil
	}
	return errors.Join(errs...)
}

// translate maps libusb errors onto the module's sentinels, keeping the
// original in the chain.
func translate(err error) error {
	var target error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gousb.ErrorNoDevice), errors.Is(err, gousb.ErrorNotFound),
		errors.Is(err, gousb.TransferNoDevice):
		target = pkg.ErrNoDevice
	case errors.Is(err, gousb.ErrorTimeout), errors.Is(err, gousb.TransferTimedOut):
		target = pkg.ErrTimeout
	case errors.Is(err, gousb.ErrorPipe), errors.Is(err, gousb.TransferStall):
		target = pkg.ErrStall
	case errors.Is(err, gousb.ErrorInterrupted), errors.Is(err, gousb.TransferCancelled):
		target = pkg.ErrCancelled
	default:
		return err
	}
	return fmt.Errorf("%w: %w", target, err)
}
