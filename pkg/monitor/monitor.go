// Package monitor samples per-thread CPU time, context switches and the
// system page-fault counter once per tick and turns the cumulative counters
// into one-tick and smoothed ten-tick figures.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/srodi/threadload/pkg/logger"
	"github.com/srodi/threadload/pkg/types"
)

// DefaultInterval is the sampling period the load figures are defined for.
const DefaultInterval = time.Second

// Source supplies the raw cumulative counters. Every call may fail
// independently.
type Source interface {
	Threads() ([]types.ThreadInfo, error)
	ThreadCPUTicks(tid types.ThreadID) (uint64, error)
	ThreadContextSwitches(tid types.ThreadID) (uint64, error)
	IdleTicks() (uint64, error)
	PageFaults() (uint64, error)
}

// Options tunes a Monitor. Zero values select the defaults.
type Options struct {
	Interval time.Duration
	Clock    Clock
	Logger   *log.Logger
}

// Monitor owns the sample store and the tick goroutine. A single mutex
// serialises ticks against queries, so every snapshot sees whole ticks.
type Monitor struct {
	source   Source
	clock    Clock
	interval time.Duration
	log      *log.Logger

	mu     sync.Mutex
	store  *sampleStore
	ticker Ticker
	quit   chan struct{}
	closed bool

	wg sync.WaitGroup
}

// New creates a stopped monitor reading from src.
func New(src Source, opts Options) *Monitor {
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Monitor{
		source:   src,
		clock:    opts.Clock,
		interval: opts.Interval,
		log:      opts.Logger,
		store:    newSampleStore(),
	}
}

// Start clears all samples and begins ticking. Starting a running monitor is
// a no-op and keeps its accumulated state.
func (m *Monitor) Start() error {
	m.mu.Lock()
	started, err := m.startLocked()
	m.mu.Unlock()

	if started {
		m.log.Info().Dur("interval", m.interval).Msg("thread load monitor started")
	}
	return err
}

func (m *Monitor) startLocked() (bool, error) {
	if m.closed {
		return false, ErrClosed
	}
	if m.store.running {
		return false, nil
	}

	t, err := m.clock.NewTicker(m.interval)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrTimerStart, err)
	}

	m.store.reset()
	m.store.running = true
	m.ticker = t
	m.quit = make(chan struct{})

	m.wg.Add(1)
	go m.loop(t, m.quit)
	return true, nil
}

// Stop halts ticking. The last snapshot stays readable. A tick already in
// progress completes first; stopping a stopped monitor is a no-op.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	stopped, err := m.stopLocked()
	m.mu.Unlock()

	if stopped {
		m.log.Info().Msg("thread load monitor stopped")
	}
	return err
}

func (m *Monitor) stopLocked() (bool, error) {
	if !m.store.running {
		return false, nil
	}
	if err := m.ticker.Stop(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrTimerStop, err)
	}

	close(m.quit)
	m.quit = nil
	m.ticker = nil
	m.store.running = false
	return true, nil
}

// Close stops the monitor and waits for the tick goroutine to exit. The
// monitor cannot be restarted afterwards.
func (m *Monitor) Close() error {
	m.mu.Lock()
	stopped, err := m.stopLocked()
	if err == nil {
		m.closed = true
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if stopped {
		m.log.Info().Msg("thread load monitor stopped")
	}

	m.wg.Wait()
	return nil
}

// Running reports whether the monitor is ticking.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.running
}

func (m *Monitor) loop(t Ticker, quit chan struct{}) {
	defer m.wg.Done()

	for {
		select {
		case <-quit:
			return
		case <-t.C():
			m.tick(quit)
		}
	}
}

// tick runs one sampling pass. quit identifies the run that scheduled it; a
// tick that lost the race against Stop, or belongs to an earlier run, does
// nothing.
func (m *Monitor) tick(quit chan struct{}) {
	m.mu.Lock()
	if !m.store.running || m.quit != quit {
		m.mu.Unlock()
		return
	}
	failures, evicted := m.sampleLocked()
	m.mu.Unlock()

	// Logging happens outside the lock and only formats copied data.
	for _, f := range failures {
		m.log.Debug().Int("tid", int(f.tid)).Str("metric", f.metric).Err(f.err).Msg("sample read failed")
	}
	if len(evicted) > 0 {
		ids := make([]int, len(evicted))
		for i, tid := range evicted {
			ids[i] = int(tid)
		}
		m.log.Debug().Ints("tids", ids).Msg("threads exited")
	}
}

func (m *Monitor) sampleLocked() ([]sampleError, []types.ThreadID) {
	var failures []sampleError
	s := m.store

	s.beginTick()

	idle := s.touch(types.ThreadInfo{ID: types.IdleThreadID, Name: "<idle>"})
	if ticks, err := m.source.IdleTicks(); err != nil {
		failures = append(failures, sampleError{metric: "idle ticks", err: err})
	} else {
		idle.Load.Advance(ticks)
	}

	threads, err := m.source.Threads()
	if err != nil {
		failures = append(failures, sampleError{metric: "thread list", err: err})
		s.keepAll()
	}
	for _, info := range threads {
		if info.ID == types.IdleThreadID || info.ID == types.OtherThreadID {
			continue
		}
		e := s.touch(info)
		if ticks, err := m.source.ThreadCPUTicks(info.ID); err != nil {
			failures = append(failures, sampleError{tid: info.ID, metric: "cpu ticks", err: err})
		} else {
			e.Load.Advance(ticks)
		}
		if switches, err := m.source.ThreadContextSwitches(info.ID); err != nil {
			failures = append(failures, sampleError{tid: info.ID, metric: "context switches", err: err})
		} else {
			e.Switches.Advance(switches)
		}
	}

	evicted := s.endTick()

	if faults, err := m.source.PageFaults(); err != nil {
		failures = append(failures, sampleError{metric: "page faults", err: err})
	} else {
		s.pageFaults.Advance(faults)
		s.pageFaults.Total = faults
	}

	return failures, evicted
}
