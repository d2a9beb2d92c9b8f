package device

import (
	"fmt"
	"time"

	"github.com/ardnew/usblog/device/hal"
	"github.com/ardnew/usblog/device/logqueue"
	"github.com/ardnew/usblog/pkg"
)

// Option configures [Setup].
type Option func(*options)

type options struct {
	timerPeriod time.Duration
}

// WithTimerPeriod sets the drain timer period. The default is
// [DefaultTimerPeriod].
func WithTimerPeriod(d time.Duration) Option {
	return func(o *options) {
		o.timerPeriod = d
	}
}

// Setup builds the log pipeline over adapter using storage as the queue ring
// and starts the drain timer. It returns the only producer, for the main
// loop, and the interrupt handler, which owns the consumer. Run the handler
// on adapter.Interrupt():
//
//	prod, h, err := device.Setup(adapter, storage[:])
//	go h.Run(ctx, adapter.Interrupt())
func Setup(adapter hal.Adapter, storage []byte, opts ...Option) (*logqueue.Producer, *Handler, error) {
	o := options{timerPeriod: DefaultTimerPeriod}
	for _, opt := range opts {
		opt(&o)
	}
	if len(storage) == 0 {
		return nil, nil, fmt.Errorf("%w: empty queue storage", pkg.ErrInvalidParameter)
	}

	q := logqueue.New(storage)
	prod, cons, err := q.Split()
	if err != nil {
		return nil, nil, err
	}

	transport := NewTransport(adapter, adapter.Timer())
	config := NewConfigurator(transport)
	h := NewHandler(transport, config, cons, newStatus(q, config))

	if err := transport.StartTimer(o.timerPeriod); err != nil {
		return nil, nil, err
	}
	pkg.LogInfo(pkg.ComponentTransport, "log pipeline ready",
		"queue", len(storage), "period", o.timerPeriod)
	return prod, h, nil
}
