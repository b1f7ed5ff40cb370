package cpu

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sync"

	"github.com/prometheus/procfs"

	"github.com/srodi/threadload/pkg/types"
)

// userHZ is the kernel's clock-tick rate as exposed through /proc.
const userHZ = 100

type threadSample struct {
	proc procfs.Proc
	info types.ThreadInfo
	stat procfs.ProcStat
	// fresh is cleared once the cached stat has been consumed.
	fresh bool
}

// ThreadReader reads per-thread counters of one process from procfs.
type ThreadReader struct {
	fs  procfs.FS
	pid int

	mu      sync.Mutex
	samples map[types.ThreadID]*threadSample
}

// NewThreadReader opens the proc filesystem mounted at procRoot and reads
// the threads of pid.
func NewThreadReader(procRoot string, pid int) (*ThreadReader, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid %d", pid)
	}
	procFS, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, fmt.Errorf("opening procfs at %s: %w", procRoot, err)
	}
	return &ThreadReader{fs: procFS, pid: pid, samples: make(map[types.ThreadID]*threadSample)}, nil
}

// PID returns the process whose threads are read.
func (r *ThreadReader) PID() int {
	return r.pid
}

// Threads lists the live threads of the process. Threads that exit while
// being listed are skipped. A thread whose stat cannot be read for any other
// reason is still listed, with the name and priority of its previous listing,
// so the failure surfaces from the counter reads instead.
func (r *ThreadReader) Threads() ([]types.ThreadInfo, error) {
	procs, err := r.fs.AllThreads(r.pid)
	if err != nil {
		return nil, fmt.Errorf("listing threads of pid %d: %w", r.pid, err)
	}

	r.mu.Lock()
	previous := r.samples
	r.mu.Unlock()

	samples := make(map[types.ThreadID]*threadSample, len(procs))
	threads := make([]types.ThreadInfo, 0, len(procs))
	for _, p := range procs {
		tid := types.ThreadID(p.PID)
		stat, err := p.Stat()
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			info := types.ThreadInfo{ID: tid}
			if old, ok := previous[tid]; ok {
				info = old.info
			}
			samples[tid] = &threadSample{proc: p, info: info}
		default:
			info := types.ThreadInfo{ID: tid, Name: stat.Comm, Priority: stat.Priority}
			samples[tid] = &threadSample{proc: p, info: info, stat: stat, fresh: true}
		}
		threads = append(threads, samples[tid].info)
	}

	r.mu.Lock()
	r.samples = samples
	r.mu.Unlock()
	return threads, nil
}

// ThreadCPUTicks returns user plus system time of tid in clock ticks. The
// stat read during the last Threads call is used once, later calls read it
// again.
func (r *ThreadReader) ThreadCPUTicks(tid types.ThreadID) (uint64, error) {
	r.mu.Lock()
	s, ok := r.samples[tid]
	if ok && s.fresh {
		s.fresh = false
		stat := s.stat
		r.mu.Unlock()
		return uint64(stat.UTime) + uint64(stat.STime), nil
	}
	r.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("thread %d not listed", tid)
	}

	stat, err := s.proc.Stat()
	if err != nil {
		return 0, fmt.Errorf("reading stat of thread %d: %w", tid, err)
	}
	return uint64(stat.UTime) + uint64(stat.STime), nil
}

// ThreadContextSwitches returns voluntary plus involuntary context switches
// of tid.
func (r *ThreadReader) ThreadContextSwitches(tid types.ThreadID) (uint64, error) {
	r.mu.Lock()
	s, ok := r.samples[tid]
	r.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("thread %d not listed", tid)
	}

	status, err := s.proc.NewStatus()
	if err != nil {
		return 0, fmt.Errorf("reading status of thread %d: %w", tid, err)
	}
	return status.VoluntaryCtxtSwitches + status.NonVoluntaryCtxtSwitches, nil
}

// IdleTicks returns the system-wide idle time in clock ticks.
func (r *ThreadReader) IdleTicks() (uint64, error) {
	st, err := r.fs.Stat()
	if err != nil {
		return 0, fmt.Errorf("reading cpu stat: %w", err)
	}
	return uint64(math.Round(st.CPUTotal.Idle * userHZ)), nil
}
