// Package device streams log records from a USB device to its host.
//
// The main loop produces records into a [logqueue.Queue]. The USB interrupt
// drains them to the bulk IN endpoint of a CDC-ACM interface. The two sides
// share nothing but the queue, so the main loop never waits on USB and the
// interrupt never waits on the main loop.
//
// # Architecture
//
// The pipeline is organized into a few small pieces:
//
//   - [Transport] wraps the platform [hal.Bus] and [hal.Timer]: poll, state,
//     configuration commit, non-blocking writes, and the drain timer
//   - [Configurator] commits the USB configuration once per enumeration
//   - [Handler] is the interrupt service routine; it owns the queue consumer
//   - [Status] exposes counters and the most recent transport fault
//
// [Setup] wires them together over a [hal.Adapter]:
//
//	bus, err := fifo.Open(busDir, cdc.DefaultIdentity())
//	prod, h, err := device.Setup(bus, storage[:])
//	go h.Run(ctx, bus.Interrupt())
//	log := zerolog.New(logqueue.NewWriter(prod))
//
// # Interrupt Service
//
// Each assertion of the interrupt line runs [Handler.Service] once:
//
//	clear timer expiries → poll bus → update configuration → drain queue
//
// The drain runs only while configured and stops when the queue is empty or
// the endpoint stops accepting bytes. Whatever the endpoint did not take stays
// queued for a later interrupt. The periodic timer guarantees that later
// interrupt even when the bus is idle.
//
// # Errors
//
// Transport errors never escape the interrupt. They are counted and kept in
// [Status] for the main loop to inspect:
//
//	if f := h.Status().ClearFault(); f != nil {
//	    log.Printf("%s: %v", f.Stage, f.Err)
//	}
package device
