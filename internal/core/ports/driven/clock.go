package driven

import "time"

// Clock abstracts time so recurring tasks can be driven deterministically in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a ticker firing every d.
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks until stopped.
type Ticker interface {
	// C returns the tick channel.
	C() <-chan time.Time

	// Stop releases the ticker. No further ticks are delivered.
	Stop()
}
