// Package fifo is the host end of the hosted FIFO bus.
//
// A [Port] opens one device directory created by
// [github.com/ardnew/usblog/device/hal/fifo.Open], enumerates the device with
// SETUP requests over the control and status FIFOs, and reads the log stream
// from the bulk IN FIFO.
//
// [Watch] discovers device directories with fsnotify instead of polling the
// bus directory, and [Session] reconnects with exponential backoff when a
// device goes away:
//
//	err := fifo.Session(ctx, "/tmp/usblog-bus", vid, pid, 0,
//	    func(ctx context.Context, p *fifo.Port, info *fifo.Info) error {
//	        return recv.Run(ctx, p)
//	    })
//
// Control replies are matched to requests in order. A reply abandoned by a
// timed-out transfer is discarded on the next [Port.Reset].
package fifo
