// Package clock provides the wall clock used outside tests.
package clock

import (
	"time"

	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
)

// Ensure System implements the interface.
var _ driven.Clock = System{}

// System is the real clock.
type System struct{}

// New returns the system clock.
func New() System {
	return System{}
}

// Now returns the current time.
func (System) Now() time.Time {
	return time.Now()
}

// NewTicker returns a ticker backed by time.Ticker.
func (System) NewTicker(d time.Duration) driven.Ticker {
	return ticker{t: time.NewTicker(d)}
}

type ticker struct {
	t *time.Ticker
}

func (t ticker) C() <-chan time.Time { return t.t.C }
func (t ticker) Stop()               { t.t.Stop() }
