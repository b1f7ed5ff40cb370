package report

import (
	"time"

	"github.com/srodi/threadload/pkg/types"
)

// Reader is the query side of the monitor.
type Reader interface {
	LoadGet() (map[types.ThreadID]types.Load, bool)
	ContextSwitchesGet() (map[types.ThreadID]types.ContextSwitches, bool)
	PageFaultsGet() (types.PageFaults, bool)
	Threads() ([]types.ThreadInfo, bool)
}

// Snapshot is every query result gathered at one point in time.
type Snapshot struct {
	Time    time.Time `json:"time" yaml:"time"`
	Running bool      `json:"running" yaml:"running"`
	// Sampled is set once the monitor holds load figures.
	Sampled       bool                  `json:"sampled" yaml:"sampled"`
	Idle          types.Load            `json:"idle" yaml:"idle"`
	Other         types.Load            `json:"other" yaml:"other"`
	Threads       []ThreadRow           `json:"threads" yaml:"threads"`
	TotalSwitches types.ContextSwitches `json:"total_context_switches" yaml:"total_context_switches"`
	PageFaults    types.PageFaults      `json:"page_faults" yaml:"page_faults"`
}

// Capture queries r and assembles a Snapshot. Each query is consistent on
// its own; a tick may land between them.
func Capture(r Reader) Snapshot {
	load, running := r.LoadGet()
	switches, _ := r.ContextSwitchesGet()
	faults, _ := r.PageFaultsGet()
	threads, _ := r.Threads()

	return Snapshot{
		Time:          time.Now(),
		Running:       running,
		Sampled:       len(load) > 0,
		Idle:          load[types.IdleThreadID],
		Other:         load[types.OtherThreadID],
		Threads:       BuildThreadRows(threads, load, switches),
		TotalSwitches: switches[types.OtherThreadID],
		PageFaults:    faults,
	}
}

// Known reports whether the snapshot's figures mean anything. A monitor that
// was never started has nothing to show.
func (s Snapshot) Known() bool {
	return s.Running || s.Sampled
}
