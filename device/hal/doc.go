// Package hal defines the platform layer beneath the log transport.
//
// A platform supplies a USB device controller ([Bus]) and a general purpose
// timer ([Timer]) that share one interrupt line. The transport never touches
// registers directly; everything it needs from the hardware goes through these
// interfaces:
//
//   - [Bus] polls for bus activity, reports the device [State], commits the
//     configuration, and performs non-blocking bulk IN writes
//   - [Timer] is programmed for a fixed repeat period so the interrupt fires
//     even when the bus is idle
//   - [Adapter] bundles both with the interrupt line
//
// No method may wait on the host. A Write that cannot make progress reports
// [github.com/ardnew/usblog/pkg.ErrWouldBlock] and the caller retries on a
// later interrupt.
//
// A named-pipe [Adapter] for hosted use is available in
// [github.com/ardnew/usblog/device/hal/fifo], and a software timer in
// [github.com/ardnew/usblog/device/hal/gpt].
package hal
