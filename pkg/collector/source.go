// Package collector composes the procfs and eBPF readers into the counter
// source the monitor samples.
package collector

import (
	"fmt"
	"os"

	"github.com/phuslu/log"
	"github.com/prometheus/procfs"

	"github.com/srodi/threadload/pkg/collector/cpu"
	"github.com/srodi/threadload/pkg/collector/memory"
	"github.com/srodi/threadload/pkg/logger"
	"github.com/srodi/threadload/pkg/types"
)

// Config selects what the source reads.
type Config struct {
	// ProcRoot is the proc filesystem mount point, /proc when empty.
	ProcRoot string
	// PID is the process whose threads are sampled, the caller when 0.
	PID int
	// BPFObject is the compiled sched_switch counter. When set, context
	// switches come from the tracepoint instead of procfs.
	BPFObject string
	// Logger receives failures the monitor never sees, such as a failed
	// sweep of the switch counter map. Discarded when nil.
	Logger *log.Logger
}

type threadReader interface {
	Threads() ([]types.ThreadInfo, error)
	ThreadCPUTicks(tid types.ThreadID) (uint64, error)
	ThreadContextSwitches(tid types.ThreadID) (uint64, error)
	IdleTicks() (uint64, error)
}

type switchCounter interface {
	Count(tid types.ThreadID) (uint64, error)
	Prune(live map[types.ThreadID]struct{}) error
	Close() error
}

type faultReader interface {
	PageFaults() (uint64, error)
}

// Source implements monitor.Source on top of the Linux readers.
type Source struct {
	pid      int
	threads  threadReader
	switches switchCounter
	faults   faultReader
	log      *log.Logger
}

// New opens the readers described by cfg.
func New(cfg Config) (*Source, error) {
	if cfg.ProcRoot == "" {
		cfg.ProcRoot = procfs.DefaultMountPoint
	}
	if cfg.PID == 0 {
		cfg.PID = os.Getpid()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}

	threads, err := cpu.NewThreadReader(cfg.ProcRoot, cfg.PID)
	if err != nil {
		return nil, fmt.Errorf("initializing thread reader: %w", err)
	}
	s := &Source{
		pid:     cfg.PID,
		threads: threads,
		faults:  memory.NewFaultReader(cfg.ProcRoot),
		log:     cfg.Logger,
	}

	if cfg.BPFObject != "" {
		counter, err := cpu.NewSwitchCounter(cfg.BPFObject)
		if err != nil {
			return nil, fmt.Errorf("initializing switch counter: %w", err)
		}
		s.switches = counter
	}
	return s, nil
}

// PID returns the sampled process.
func (s *Source) PID() int {
	return s.pid
}

// SwitchSource names where context-switch counts come from.
func (s *Source) SwitchSource() string {
	if s.switches != nil {
		return "ebpf"
	}
	return "procfs"
}

// Close releases the eBPF resources, if any.
func (s *Source) Close() error {
	if s.switches == nil {
		return nil
	}
	return s.switches.Close()
}

func (s *Source) Threads() ([]types.ThreadInfo, error) {
	threads, err := s.threads.Threads()
	if err != nil {
		return nil, err
	}
	if s.switches != nil {
		live := make(map[types.ThreadID]struct{}, len(threads))
		for _, th := range threads {
			live[th.ID] = struct{}{}
		}
		// Retried on the next listing.
		if err := s.switches.Prune(live); err != nil && s.log != nil {
			s.log.Warn().Err(err).Int("live_threads", len(live)).Msg("pruning switch counters failed")
		}
	}
	return threads, nil
}

func (s *Source) ThreadCPUTicks(tid types.ThreadID) (uint64, error) {
	return s.threads.ThreadCPUTicks(tid)
}

func (s *Source) ThreadContextSwitches(tid types.ThreadID) (uint64, error) {
	if s.switches != nil {
		return s.switches.Count(tid)
	}
	return s.threads.ThreadContextSwitches(tid)
}

func (s *Source) IdleTicks() (uint64, error) {
	return s.threads.IdleTicks()
}

func (s *Source) PageFaults() (uint64, error) {
	return s.faults.PageFaults()
}
