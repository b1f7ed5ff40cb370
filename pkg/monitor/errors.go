package monitor

import (
	"errors"
	"fmt"

	"github.com/srodi/threadload/pkg/types"
)

var (
	// ErrTimerStart is returned by Start when the periodic ticker cannot be
	// armed. The monitor stays stopped.
	ErrTimerStart = errors.New("thread load monitor: unable to start timer")
	// ErrTimerStop is returned by Stop when the periodic ticker cannot be
	// disarmed. The monitor stays running.
	ErrTimerStop = errors.New("thread load monitor: unable to stop timer")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("thread load monitor: closed")
)

// sampleError records a counter read that failed during a tick. These never
// reach callers; the stale value is kept until the next tick. A zero tid
// marks a global counter.
type sampleError struct {
	tid    types.ThreadID
	metric string
	err    error
}

func (e sampleError) Error() string {
	if e.tid == types.OtherThreadID {
		return fmt.Sprintf("reading %s: %v", e.metric, e.err)
	}
	return fmt.Sprintf("reading %s for tid %d: %v", e.metric, e.tid, e.err)
}

func (e sampleError) Unwrap() error { return e.err }
