// Package usb reads the device log stream from real hardware through libusb.
//
// [Open] finds the device by vendor and product ID, detaches any kernel
// driver bound to it (cdc_acm claims the device on Linux), claims the CDC
// data interface, and raises DTR so the device sees an open port. [Source.Read]
// returns bulk IN data as it arrives.
//
// Building this package requires cgo and libusb-1.0.
package usb
