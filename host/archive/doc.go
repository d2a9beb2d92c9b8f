// Package archive stores received log records in Pebble.
//
// Records are keyed by a big-endian sequence number so iteration order is
// arrival order:
//
//	rec/{seq_be8} → {unix_ms_be8}{record bytes}
//
// Usage:
//
//	a, err := archive.Open(archive.Options{Dir: "./usblog.db"})
//	if err != nil { /* handle */ }
//	defer a.Close()
//
//	seq, _ := a.Append([]byte(`{"level":"info","message":"hello"}`), time.Now())
//	_ = a.Scan(ctx, 0, func(r archive.Record) error {
//	    fmt.Println(r.Seq, string(r.Data))
//	    return nil
//	})
package archive
