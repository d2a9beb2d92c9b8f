// Package fifo implements a hosted USB device controller over named pipes.
//
// The [Bus] stands in for the device peripheral when the log pipeline runs
// as an ordinary process. A host process (see
// [github.com/ardnew/usblog/host/fifo]) enumerates it and reads the bulk IN
// stream through the same pipes.
//
// # Layout
//
// Each device creates a unique subdirectory under a shared bus directory:
//
//	/tmp/usblog-bus/                 # Bus directory (shared with host)
//	└── device-{uuid}/               # Device subdirectory (unique per device)
//	    ├── connection               # Connection signals (device → host)
//	    ├── control                  # Reset and SETUP requests (host → device)
//	    ├── status                   # Replies: ACK, DATA, STALL (device → host)
//	    └── ep2_in                   # Bulk IN log stream (device → host)
//
// Messages on control and status are framed as
//
//	[type (1)] [length (2, little-endian)] [payload (length)]
//
// A SETUP message carries the 8-byte setup packet followed by any OUT data.
//
// # Interrupt Model
//
// All pipes are opened non-blocking and are read and written directly on
// the file descriptor, so [Bus.Poll] and [Bus.Write] return at once. A full
// bulk IN pipe reports [github.com/ardnew/usblog/pkg.ErrWouldBlock]. Bus
// requests are serviced when the interrupt runs, which the drain timer
// guarantees at least once per period.
//
// # Usage
//
//	bus, err := fifo.Open("/tmp/usblog-bus", cdc.DefaultIdentity())
//	if err != nil {
//	    return err
//	}
//	defer bus.Close()
//
//	prod, h, err := device.Setup(bus, storage[:])
//	go h.Run(ctx, bus.Interrupt())
package fifo
