// Package logqueue implements the fixed-capacity byte queue that carries log
// records from the device main loop to the USB interrupt.
//
// The queue is single-producer single-consumer. [Queue.Split] hands out the
// two endpoints exactly once; the [Producer] belongs to the main loop and the
// [Consumer] to the interrupt handler. Neither side blocks, and neither side
// allocates after construction.
//
// A producer appends whole records or nothing:
//
//	if err := prod.Push(record); errors.Is(err, pkg.ErrQueueFull) {
//	    // dropped and counted in prod.Dropped()
//	}
//
// A consumer borrows the next contiguous run of bytes and releases what the
// transport accepted:
//
//	for {
//	    g, ok := cons.Read()
//	    if !ok {
//	        break
//	    }
//	    n, err := ep.Write(g.Bytes())
//	    if err != nil {
//	        break
//	    }
//	    g.Release(n)
//	}
//
// A record that wraps the end of the storage is returned as two grants.
package logqueue
