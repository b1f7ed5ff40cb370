package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/srodi/threadload/pkg/types"
)

// ThreadRow condenses load and context-switch figures for one thread.
type ThreadRow struct {
	ID          types.ThreadID        `json:"id" yaml:"id"`
	Name        string                `json:"name" yaml:"name"`
	Priority    int                   `json:"priority" yaml:"priority"`
	Load        types.Load            `json:"load" yaml:"load"`
	Load1       float64               `json:"load_1s_percent" yaml:"load_1s_percent"`
	Load10      float64               `json:"load_10s_percent" yaml:"load_10s_percent"`
	HasLoad     bool                  `json:"-" yaml:"-"`
	Switches    types.ContextSwitches `json:"context_switches" yaml:"context_switches"`
	HasSwitches bool                  `json:"-" yaml:"-"`
	Diagnosis   string                `json:"diagnosis" yaml:"diagnosis"`
}

// FilterConfig controls which threads appear in CLI tables.
type FilterConfig struct {
	HideIdle   *bool // nil defaults to false so every thread is listed
	NameFilter string
}

func (cfg FilterConfig) hideIdleEnabled() bool {
	if cfg.HideIdle == nil {
		return false
	}
	return *cfg.HideIdle
}

// BuildThreadRows merges the monitor's query results into one row per
// tracked thread, ordered by id.
func BuildThreadRows(
	threads []types.ThreadInfo,
	load map[types.ThreadID]types.Load,
	switches map[types.ThreadID]types.ContextSwitches,
) []ThreadRow {
	rows := make([]ThreadRow, 0, len(threads))
	for _, th := range threads {
		if th.ID == types.IdleThreadID || th.ID == types.OtherThreadID {
			continue
		}
		row := ThreadRow{ID: th.ID, Name: th.Name, Priority: th.Priority}
		if l, ok := load[th.ID]; ok {
			row.Load = l
			row.HasLoad = true
			row.Load1 = Percent(l.OneSec)
			row.Load10 = Percent(l.TenSec)
		}
		if cs, ok := switches[th.ID]; ok {
			row.Switches = cs
			row.HasSwitches = true
		}
		row.Diagnosis = classifyThread(row)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// Percent converts a load in hundredths of a percent to a percentage.
func Percent(v uint16) float64 {
	return float64(v) / 100
}

// FilterRows applies the idle and name filters before ranking tables.
func FilterRows(rows []ThreadRow, cfg FilterConfig) []ThreadRow {
	filtered := make([]ThreadRow, 0, len(rows))
	for _, row := range rows {
		if passesFilters(row, cfg) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// LoadRows returns the busiest threads by ten-second load up to topK.
func LoadRows(rows []ThreadRow, topK int) []ThreadRow {
	candidates := append([]ThreadRow(nil), rows...)
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].Load, candidates[j].Load
		if a.TenSec != b.TenSec {
			return a.TenSec > b.TenSec
		}
		if a.OneSec != b.OneSec {
			return a.OneSec > b.OneSec
		}
		return candidates[i].ID < candidates[j].ID
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// SwitchRows returns the threads switching most often up to topK.
func SwitchRows(rows []ThreadRow, topK int) []ThreadRow {
	candidates := append([]ThreadRow(nil), rows...)
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].Switches, candidates[j].Switches
		if a.TenSec != b.TenSec {
			return a.TenSec > b.TenSec
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return candidates[i].ID < candidates[j].ID
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// SelectFocusCandidate picks the most interesting thread to summarize for the operator.
func SelectFocusCandidate(rows []ThreadRow) *ThreadRow {
	if len(rows) == 0 {
		return nil
	}
	var best *ThreadRow
	bestScore := -1.0
	for _, row := range rows {
		severity := diagnosisSeverity(row.Diagnosis)
		if severity == 0 && row.Load10 < 1 {
			continue
		}
		score := float64(severity)*1000 + row.Load10
		if best == nil || score > bestScore {
			copy := row
			best = &copy
			bestScore = score
		}
	}
	return best
}

// FocusSummary returns a short explanation string for the status line.
func FocusSummary(row ThreadRow) string {
	switch row.Diagnosis {
	case "Switch storm":
		return fmt.Sprintf("%d switches last second at %.2f%% CPU",
			row.Switches.OneSec, row.Load1)
	case "CPU-bound":
		return fmt.Sprintf("%.2f%% CPU over 10s, %d switches last second",
			row.Load10, row.Switches.OneSec)
	case "Spiking":
		return fmt.Sprintf("%.2f%% CPU last second against %.2f%% over 10s",
			row.Load1, row.Load10)
	default:
		return fmt.Sprintf("%.2f%% CPU, %d switches last second",
			row.Load10, row.Switches.OneSec)
	}
}

func classifyThread(row ThreadRow) string {
	if !row.HasLoad && !row.HasSwitches {
		return "N/A"
	}

	// Many wake-ups with little work done, typically lock or queue churn.
	if row.Switches.OneSec > 1000 && row.Load1 < 10 {
		return "Switch storm"
	}

	if row.Load10 > 50 && row.Load1 > 50 {
		return "CPU-bound"
	}

	if row.Load1 > 20 && row.Load1 > 2*row.Load10 {
		return "Spiking"
	}

	if row.Load.OneSec == 0 && row.Load.TenSec == 0 && row.Switches.OneSec == 0 && row.Switches.TenSec == 0 {
		return "Idle"
	}

	return "OK"
}

func passesFilters(row ThreadRow, cfg FilterConfig) bool {
	if cfg.hideIdleEnabled() && row.Diagnosis == "Idle" {
		return false
	}
	if cfg.NameFilter != "" {
		name := strings.ToLower(row.Name)
		if !strings.Contains(name, strings.ToLower(cfg.NameFilter)) {
			return false
		}
	}
	return true
}

func diagnosisSeverity(label string) int {
	switch label {
	case "Switch storm":
		return 3
	case "CPU-bound":
		return 2
	case "Spiking":
		return 1
	default:
		return 0
	}
}
