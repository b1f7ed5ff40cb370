package monitor

import (
	"sort"

	"github.com/srodi/threadload/pkg/types"
)

type threadEntry struct {
	Info     types.ThreadInfo
	Load     DecayState
	Switches DecayState
	seen     bool
}

type pageFaultState struct {
	DecayState
	Total uint64
}

// snapshot is a point-in-time value copy of the monitor state.
type snapshot struct {
	running    bool
	threads    map[types.ThreadID]threadEntry
	pageFaults pageFaultState
}

// sampleStore holds per-thread smoothing state. It does no locking of its
// own: every method must be called with Monitor.mu held.
type sampleStore struct {
	running    bool
	threads    map[types.ThreadID]*threadEntry
	pageFaults pageFaultState
}

func newSampleStore() *sampleStore {
	return &sampleStore{threads: make(map[types.ThreadID]*threadEntry)}
}

func (s *sampleStore) reset() {
	s.threads = make(map[types.ThreadID]*threadEntry)
	s.pageFaults = pageFaultState{}
}

func (s *sampleStore) beginTick() {
	for _, e := range s.threads {
		e.seen = false
	}
}

// touch returns the entry for info.ID, creating it on first observation, and
// marks it as seen in the current tick.
func (s *sampleStore) touch(info types.ThreadInfo) *threadEntry {
	e, ok := s.threads[info.ID]
	if !ok {
		e = &threadEntry{}
		s.threads[info.ID] = e
	}
	e.Info = info
	e.seen = true
	return e
}

// keepAll marks every entry as seen so the coming endTick evicts nothing.
func (s *sampleStore) keepAll() {
	for _, e := range s.threads {
		e.seen = true
	}
}

// endTick evicts entries not seen since beginTick and returns their ids.
func (s *sampleStore) endTick() []types.ThreadID {
	var evicted []types.ThreadID
	for tid, e := range s.threads {
		if !e.seen {
			delete(s.threads, tid)
			evicted = append(evicted, tid)
		}
	}
	sort.Slice(evicted, func(i, j int) bool { return evicted[i] < evicted[j] })
	return evicted
}

func (s *sampleStore) snapshot() snapshot {
	snap := snapshot{
		running:    s.running,
		threads:    make(map[types.ThreadID]threadEntry, len(s.threads)),
		pageFaults: s.pageFaults,
	}
	for tid, e := range s.threads {
		snap.threads[tid] = *e
	}
	return snap
}
