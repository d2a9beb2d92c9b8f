package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ardnew/usblog/device"
	"github.com/ardnew/usblog/pkg"
)

// beat logs one heartbeat. Every beat emits an unleveled and a trace event;
// higher levels fire on counters divisible by 3, 5, 7 and 31.
func beat(log zerolog.Logger, counter uint32) {
	log.Log().Uint32("counter", counter).Msg("hello")
	log.Trace().Uint32("counter", counter).Msg("hello")
	if counter%3 == 0 {
		log.Debug().Uint32("counter", counter).Msg("hello")
	}
	if counter%5 == 0 {
		log.Info().Uint32("counter", counter).Msg("hello")
	}
	if counter%7 == 0 {
		log.Warn().Uint32("counter", counter).Msg("hello")
	}
	if counter%31 == 0 {
		log.Error().Uint32("counter", counter).Msg("hello")
	}
}

// loop beats every interval until ctx is done and returns the number of
// beats. Faults recorded by the interrupt handler are reported on the
// diagnostic logger.
func loop(ctx context.Context, log zerolog.Logger, status *device.Status, interval time.Duration) uint32 {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		counter uint32
		dropped uint64
	)
	for {
		select {
		case <-ctx.Done():
			return counter
		case <-ticker.C:
		}

		beat(log, counter)
		counter++

		if f := status.ClearFault(); f != nil {
			pkg.LogWarn(pkg.ComponentDevice, "transport fault",
				"stage", f.Stage, "err", f.Err, "at", f.At.Format(time.RFC3339Nano))
		}
		if snap := status.Snapshot(); snap.Dropped != dropped {
			pkg.LogDebug(pkg.ComponentDevice, "records dropped",
				"dropped", snap.Dropped-dropped, "queued", snap.Queued)
			dropped = snap.Dropped
		}
	}
}
