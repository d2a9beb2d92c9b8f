// Package prof collects runtime profiles for the usblog binaries.
//
// Support is compiled in with the "profile" build tag:
//
//	go build -tags profile ./cmd/usblog-device
//
// Without the tag [Start] returns an inert [Session] and [Enabled] reports
// false, so normal builds carry no pprof code.
//
//	s, err := prof.Start(prof.Options{CPU: "cpu.prof", Heap: "heap.prof", Addr: "localhost:6060"})
//	defer s.Stop()
package prof
