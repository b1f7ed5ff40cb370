package monitor

import (
	"sort"

	"github.com/srodi/threadload/pkg/types"
)

func (m *Monitor) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.snapshot()
}

// LoadGet returns every thread's share of CPU time, including the idle
// entry (-1) and the synthetic "other" entry (0). Both columns sum to
// exactly types.LoadScale. The map is empty until a tick has observed some
// activity.
func (m *Monitor) LoadGet() (map[types.ThreadID]types.Load, bool) {
	snap := m.snapshot()

	var sum1, sum10 uint64
	for _, e := range snap.threads {
		sum1 += e.Load.LastDelta1
		sum10 += e.Load.LastDecayed10
	}

	result := make(map[types.ThreadID]types.Load, len(snap.threads)+1)
	if sum1 == 0 && sum10 == 0 {
		return result, snap.running
	}

	one := make(map[types.ThreadID]uint64, len(snap.threads))
	ten := make(map[types.ThreadID]uint64, len(snap.threads))
	for tid, e := range snap.threads {
		one[tid] = scaledShare(e.Load.LastDelta1, sum1)
		ten[tid] = scaledShare(e.Load.LastDecayed10, sum10)
	}
	otherOne := absorbResidue(one)
	otherTen := absorbResidue(ten)

	for tid := range snap.threads {
		result[tid] = types.Load{OneSec: uint16(one[tid]), TenSec: uint16(ten[tid])}
	}
	result[types.OtherThreadID] = types.Load{OneSec: uint16(otherOne), TenSec: uint16(otherTen)}
	return result, snap.running
}

// scaledShare returns round(LoadScale * part / total), or 0 for an empty total.
func scaledShare(part, total uint64) uint64 {
	if total == 0 {
		return 0
	}
	return (2*types.LoadScale*part + total) / (2 * total)
}

// absorbResidue returns what is left of LoadScale after the computed shares.
// Rounding can make the shares overshoot; the residue is then 0 and the
// excess is taken back from the largest shares, lowest id first on ties.
func absorbResidue(shares map[types.ThreadID]uint64) uint64 {
	var sum uint64
	for _, v := range shares {
		sum += v
	}
	if sum <= types.LoadScale {
		return types.LoadScale - sum
	}

	tids := make([]types.ThreadID, 0, len(shares))
	for tid := range shares {
		tids = append(tids, tid)
	}
	sort.Slice(tids, func(i, j int) bool {
		if shares[tids[i]] == shares[tids[j]] {
			return tids[i] < tids[j]
		}
		return shares[tids[i]] > shares[tids[j]]
	})

	excess := sum - types.LoadScale
	for excess > 0 {
		for _, tid := range tids {
			if excess == 0 {
				break
			}
			if shares[tid] > 0 {
				shares[tid]--
				excess--
			}
		}
	}
	return 0
}

// ContextSwitchesGet returns raw context-switch counts for every tracked
// thread. Entry 0 holds the sums over all threads.
func (m *Monitor) ContextSwitchesGet() (map[types.ThreadID]types.ContextSwitches, bool) {
	snap := m.snapshot()

	result := make(map[types.ThreadID]types.ContextSwitches, len(snap.threads))
	var total types.ContextSwitches
	for tid, e := range snap.threads {
		if tid == types.IdleThreadID || tid == types.OtherThreadID {
			continue
		}
		cs := types.ContextSwitches{
			OneSec: e.Switches.LastDelta1,
			TenSec: e.Switches.LastDecayed10,
			Total:  e.Switches.LastCumulative,
		}
		result[tid] = cs
		total.OneSec += cs.OneSec
		total.TenSec += cs.TenSec
		total.Total += cs.Total
	}
	result[types.OtherThreadID] = total
	return result, snap.running
}

// PageFaultsGet returns the system-wide page-fault counts.
func (m *Monitor) PageFaultsGet() (types.PageFaults, bool) {
	snap := m.snapshot()
	pf := snap.pageFaults
	return types.PageFaults{
		OneSec: uint32(pf.LastDelta1),
		TenSec: uint32(pf.LastDecayed10),
		Total:  uint32(pf.Total),
	}, snap.running
}

// Threads returns the tracked OS threads sorted by id.
func (m *Monitor) Threads() ([]types.ThreadInfo, bool) {
	snap := m.snapshot()

	threads := make([]types.ThreadInfo, 0, len(snap.threads))
	for tid, e := range snap.threads {
		if tid == types.IdleThreadID || tid == types.OtherThreadID {
			continue
		}
		threads = append(threads, e.Info)
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].ID < threads[j].ID })
	return threads, snap.running
}
