package device

import (
	"errors"
	"sync/atomic"

	"github.com/ardnew/usblog/pkg"
)

// Committer performs the one-time hardware configuration commit.
type Committer interface {
	Configure() error
}

// Configurator tracks enumeration and issues exactly one configuration
// commit per enumeration session.
//
// The configured flag shadows what has been committed. It is set once the
// commit succeeds and cleared whenever a poll reports the device is no longer
// configured, so the next enumeration commits again.
type Configurator struct {
	committer  Committer
	configured atomic.Bool
	commits    atomic.Uint64
}

// NewConfigurator returns a configurator committing through c.
func NewConfigurator(c Committer) *Configurator {
	return &Configurator{committer: c}
}

// Update feeds one poll result into the state machine. Without activity the
// state is left alone. A commit rejected as already done still marks the
// device configured; any other commit error is returned and the commit is
// retried after the next activity.
func (c *Configurator) Update(activity bool, state ConfigState) error {
	if !activity {
		return nil
	}
	if state != Configured {
		if c.configured.Swap(false) {
			pkg.LogInfo(pkg.ComponentConfig, "device unconfigured", "state", state)
		}
		return nil
	}
	if c.configured.Load() {
		return nil
	}

	err := c.committer.Configure()
	switch {
	case err == nil:
		c.commits.Add(1)
	case errors.Is(err, pkg.ErrAlreadyConfigured):
	default:
		return err
	}
	c.configured.Store(true)
	pkg.LogInfo(pkg.ComponentConfig, "device configured", "commits", c.commits.Load())
	return nil
}

// Configured reports whether the configuration has been committed for the
// current enumeration.
func (c *Configurator) Configured() bool {
	return c.configured.Load()
}

// Commits returns the number of successful configuration commits.
func (c *Configurator) Commits() uint64 {
	return c.commits.Load()
}
