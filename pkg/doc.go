// Package pkg provides shared utilities for the usblog device and host code.
//
// This package contains common functionality used on both sides of the link:
//
//   - Structured diagnostic logging backed by [github.com/rs/zerolog]
//   - Sentinel errors for queue and transport conditions
//   - Component identifiers for log filtering
//
// # Logging
//
// Diagnostic logging is tagged with the emitting component:
//
//	pkg.SetLogLevel(zerolog.DebugLevel)
//	pkg.LogInfo(pkg.ComponentTransport, "configured", "commits", 1)
//
// Diagnostics always go to the process's own writer (stderr by default).
// They are never routed through the device log queue, which has exactly one
// producer.
//
// # Errors
//
// Conditions are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrWouldBlock) {
//	    // retry on the next interrupt
//	}
package pkg
