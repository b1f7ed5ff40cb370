//go:build linux
// +build linux

package cpu

import (
	"errors"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"golang.org/x/sys/unix"

	"github.com/srodi/threadload/pkg/types"
)

const (
	switchProgram = "handle_sched_switch"
	switchMap     = "switch_counts"

	pruneSweepRetries = 3
)

// SwitchCounter owns the eBPF program that counts sched_switch events per
// thread id.
type SwitchCounter struct {
	coll   *ebpf.Collection
	counts *ebpf.Map
	tp     link.Link
}

// NewSwitchCounter loads the compiled object at path and attaches its
// program to sched/sched_switch.
func NewSwitchCounter(path string) (*SwitchCounter, error) {
	// Raise rlimit for locked memory to allow eBPF maps on older kernels.
	if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &unix.Rlimit{
		Cur: unix.RLIM_INFINITY,
		Max: unix.RLIM_INFINITY,
	}); err != nil {
		return nil, fmt.Errorf("raising rlimit memlock: %w", err)
	}

	spec, err := ebpf.LoadCollectionSpec(path)
	if err != nil {
		return nil, fmt.Errorf("loading bpf object %s: %w", path, err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("loading bpf objects: %w", err)
	}

	prog, ok := coll.Programs[switchProgram]
	if !ok {
		coll.Close()
		return nil, fmt.Errorf("bpf object %s has no program %q", path, switchProgram)
	}
	counts, ok := coll.Maps[switchMap]
	if !ok {
		coll.Close()
		return nil, fmt.Errorf("bpf object %s has no map %q", path, switchMap)
	}

	tp, err := link.Tracepoint("sched", "sched_switch", prog, nil)
	if err != nil {
		coll.Close()
		return nil, fmt.Errorf("attaching tracepoint: %w", err)
	}

	return &SwitchCounter{coll: coll, counts: counts, tp: tp}, nil
}

// Close releases the BPF resources and detaches the tracepoint.
func (c *SwitchCounter) Close() error {
	var err error
	if c.tp != nil {
		err = errors.Join(err, c.tp.Close())
	}
	if c.coll != nil {
		c.coll.Close()
	}
	return err
}

// Count returns the number of times tid was switched out since the program
// was attached. Threads that never ran count 0.
func (c *SwitchCounter) Count(tid types.ThreadID) (uint64, error) {
	key := uint32(tid)
	var count uint64
	if err := c.counts.Lookup(&key, &count); err != nil {
		if errors.Is(err, ebpf.ErrKeyNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("looking up switches of thread %d: %w", tid, err)
	}
	return count, nil
}

// Prune deletes the counters of every thread id not in live so the map does
// not fill up with exited threads.
func (c *SwitchCounter) Prune(live map[types.ThreadID]struct{}) error {
	for attempt := 1; attempt <= pruneSweepRetries; attempt++ {
		iter := c.counts.Iterate()
		var tid uint32
		var count uint64
		for iter.Next(&tid, &count) {
			if _, ok := live[types.ThreadID(tid)]; ok {
				continue
			}
			if err := c.counts.Delete(&tid); err != nil && !errors.Is(err, ebpf.ErrKeyNotExist) {
				return fmt.Errorf("clearing thread %d: %w", tid, err)
			}
		}
		if err := iter.Err(); err != nil {
			if errors.Is(err, ebpf.ErrIterationAborted) && attempt < pruneSweepRetries {
				continue
			}
			return err
		}
		break
	}
	return nil
}
