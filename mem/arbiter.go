package mem

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/r3ksim/timing/clock"
)

// ArbiterStats counts bus grants.
type ArbiterStats struct {
	Grants  uint64
	Denials uint64
}

// Arbiter grants one client at a time exclusive use of the shared bus.
// The bus cannot be handed to a different client in the cycle it was
// released.
type Arbiter struct {
	clock  *clock.Clock
	logger logr.Logger

	holder ClientID
	held   bool

	released     bool
	releasedAt   uint64
	releasedFrom ClientID

	stats ArbiterStats
}

// NewArbiter creates an idle arbiter.
func NewArbiter(clk *clock.Clock, logger logr.Logger) *Arbiter {
	return &Arbiter{clock: clk, logger: logger}
}

// Acquire requests the bus for client. It returns true if client holds the
// bus after the call.
func (a *Arbiter) Acquire(client ClientID) bool {
	if a.held {
		if a.holder == client {
			return true
		}
		a.stats.Denials++
		return false
	}

	if a.released && a.releasedAt == a.clock.Now() && a.releasedFrom != client {
		a.stats.Denials++
		return false
	}

	a.holder = client
	a.held = true
	a.stats.Grants++
	a.logger.V(2).Info("bus granted", "client", client, "cycle", a.clock.Now())
	return true
}

// Release gives up the bus. Releasing a bus held by another client is
// ignored.
func (a *Arbiter) Release(client ClientID) {
	if !a.held || a.holder != client {
		return
	}
	a.held = false
	a.holder = ""
	a.released = true
	a.releasedAt = a.clock.Now()
	a.releasedFrom = client
	a.logger.V(2).Info("bus released", "client", client, "cycle", a.releasedAt)
}

// Holder returns the client holding the bus, if any.
func (a *Arbiter) Holder() (ClientID, bool) {
	return a.holder, a.held
}

// Stats returns grant and denial counts.
func (a *Arbiter) Stats() ArbiterStats {
	return a.stats
}
