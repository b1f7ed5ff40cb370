package types

// ThreadID identifies a sampled thread. Positive values are OS thread ids.
type ThreadID int

const (
	// IdleThreadID is the synthetic thread that accounts for idle CPU time.
	IdleThreadID ThreadID = -1
	// OtherThreadID is the synthetic thread holding load that no monitored
	// thread accounts for (kernel, interrupts, other processes).
	OtherThreadID ThreadID = 0
)

// LoadScale is 100.00% expressed in hundredths of a percent.
const LoadScale = 10000

// DefaultTopK controls how many threads we display per table.
const DefaultTopK = 5

// ThreadInfo describes a live thread as enumerated by a metric source.
type ThreadInfo struct {
	ID       ThreadID `json:"tid" yaml:"tid"`
	Name     string   `json:"name" yaml:"name"`
	Priority int      `json:"priority" yaml:"priority"`
}

// Load holds a thread's share of CPU time over the last tick and the
// smoothed ten-tick window, both scaled by LoadScale.
type Load struct {
	OneSec uint16 `json:"one_sec" yaml:"one_sec"`
	TenSec uint16 `json:"ten_sec" yaml:"ten_sec"`
}

// ContextSwitches holds absolute context-switch counts for a thread.
type ContextSwitches struct {
	OneSec uint64 `json:"one_sec" yaml:"one_sec"`
	TenSec uint64 `json:"ten_sec" yaml:"ten_sec"`
	Total  uint64 `json:"total" yaml:"total"`
}

// PageFaults holds the system-wide page-fault counts.
type PageFaults struct {
	OneSec uint32 `json:"one_sec" yaml:"one_sec"`
	TenSec uint32 `json:"ten_sec" yaml:"ten_sec"`
	Total  uint32 `json:"total" yaml:"total"`
}
