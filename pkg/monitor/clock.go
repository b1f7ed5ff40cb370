package monitor

import (
	"fmt"
	"time"
)

// Clock arms the periodic ticker that drives sampling.
type Clock interface {
	NewTicker(d time.Duration) (Ticker, error)
}

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop() error
}

// SystemClock is the wall clock backed by time.Ticker.
type SystemClock struct{}

// NewTicker arms a time.Ticker. time.NewTicker panics on a non-positive
// period, so that case is reported as an error instead.
func (SystemClock) NewTicker(d time.Duration) (Ticker, error) {
	if d <= 0 {
		return nil, fmt.Errorf("non-positive interval %v", d)
	}
	return systemTicker{time.NewTicker(d)}, nil
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }

func (s systemTicker) Stop() error {
	s.t.Stop()
	return nil
}
