// Package receiver turns the device's bulk IN byte stream back into log
// records.
//
// The device writes whole records, but the transport splits them at packet
// and transfer boundaries. A [Receiver] reassembles newline-delimited
// records, applies an optional CEL [Filter], and hands each record to its
// sinks: a zerolog console renderer, a raw writer, or a Pebble archive.
//
//	f, err := receiver.NewFilter(`level in ["warn", "error"]`)
//	r := receiver.New(f, []receiver.Sink{receiver.NewConsoleSink(os.Stdout, false)})
//	err = r.Run(ctx, port)
package receiver
