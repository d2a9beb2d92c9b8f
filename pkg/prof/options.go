package prof

// Options selects the profiles a [Session] collects. Empty fields are
// skipped.
type Options struct {
	CPU  string // CPU profile path, written until Stop
	Heap string // Heap profile path, written at Stop
	Addr string // Listen address for the /debug/pprof/ endpoints
}

// Any reports whether o requests any profile.
func (o Options) Any() bool {
	return o.CPU != "" || o.Heap != "" || o.Addr != ""
}
