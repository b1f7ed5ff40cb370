package report

import (
	"math"
	"strings"
	"testing"

	"github.com/srodi/threadload/pkg/types"
)

func TestBuildThreadRowsMergesQueries(t *testing.T) {
	threads := []types.ThreadInfo{
		{ID: 202, Name: "io", Priority: 20},
		{ID: 101, Name: "worker", Priority: 19},
		{ID: types.OtherThreadID, Name: "bogus"},
	}
	load := map[types.ThreadID]types.Load{
		101:                 {OneSec: 5833, TenSec: 5476},
		types.IdleThreadID:  {OneSec: 4167, TenSec: 4524},
		types.OtherThreadID: {},
	}
	switches := map[types.ThreadID]types.ContextSwitches{
		101:                 {OneSec: 20, TenSec: 56, Total: 1060},
		202:                 {OneSec: 1, TenSec: 10, Total: 61},
		types.OtherThreadID: {OneSec: 21, TenSec: 66, Total: 1121},
	}

	rows := BuildThreadRows(threads, load, switches)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", rows)
	}
	if rows[0].ID != 101 || rows[1].ID != 202 {
		t.Fatalf("rows not ordered by id: %+v", rows)
	}

	worker := rows[0]
	if worker.Name != "worker" || worker.Priority != 19 {
		t.Fatalf("unexpected worker info: %+v", worker)
	}
	if math.Abs(worker.Load1-58.33) > 1e-9 || math.Abs(worker.Load10-54.76) > 1e-9 {
		t.Fatalf("unexpected load percentages: %.4f %.4f", worker.Load1, worker.Load10)
	}
	if !worker.HasLoad || !worker.HasSwitches || worker.Switches.Total != 1060 {
		t.Fatalf("unexpected merged counters: %+v", worker)
	}
	if worker.Diagnosis != "CPU-bound" {
		t.Fatalf("unexpected diagnosis: %s", worker.Diagnosis)
	}

	io := rows[1]
	if io.HasLoad {
		t.Fatalf("io thread has no load entry: %+v", io)
	}
	if io.Diagnosis != "OK" {
		t.Fatalf("unexpected io diagnosis: %s", io.Diagnosis)
	}
}

func TestBuildThreadRowsWithoutData(t *testing.T) {
	rows := BuildThreadRows([]types.ThreadInfo{{ID: 7, Name: "w"}}, nil, nil)
	if len(rows) != 1 || rows[0].Diagnosis != "N/A" {
		t.Fatalf("expected a single N/A row, got %+v", rows)
	}
}

func TestFilterRowsRespectsIdleAndName(t *testing.T) {
	rows := []ThreadRow{
		{ID: 1, Name: "Worker-1", Diagnosis: "Idle"},
		{ID: 2, Name: "worker-2", Diagnosis: "OK"},
		{ID: 3, Name: "io", Diagnosis: "OK"},
	}

	visible := FilterRows(rows, FilterConfig{})
	if len(visible) != 3 {
		t.Fatalf("expected every row by default, got %d", len(visible))
	}
	cfg := FilterConfig{HideIdle: boolPtr(true), NameFilter: "WORKER"}
	scoped := FilterRows(rows, cfg)
	if len(scoped) != 1 || scoped[0].ID != 2 {
		t.Fatalf("expected only the busy worker, got %+v", scoped)
	}
}

func TestLoadRows(t *testing.T) {
	rows := []ThreadRow{
		{ID: 1, Load: types.Load{OneSec: 100, TenSec: 0}},
		{ID: 2, Load: types.Load{OneSec: 10, TenSec: 500}},
		{ID: 3, Load: types.Load{OneSec: 20, TenSec: 500}},
		{ID: 4, Load: types.Load{OneSec: 20, TenSec: 500}},
	}
	top := LoadRows(rows, 3)
	if len(top) != 3 {
		t.Fatalf("expected top 3 rows, got %d", len(top))
	}
	if top[0].ID != 3 || top[1].ID != 4 || top[2].ID != 2 {
		t.Fatalf("unexpected order: %+v", top)
	}
	if rows[0].ID != 1 {
		t.Fatalf("input must not be reordered: %+v", rows)
	}
}

func TestSwitchRows(t *testing.T) {
	rows := []ThreadRow{
		{ID: 1, Switches: types.ContextSwitches{TenSec: 5, Total: 100}},
		{ID: 2, Switches: types.ContextSwitches{TenSec: 50, Total: 60}},
		{ID: 3, Switches: types.ContextSwitches{TenSec: 5, Total: 900}},
	}
	top := SwitchRows(rows, 0)
	if len(top) != 3 || top[0].ID != 2 || top[1].ID != 3 || top[2].ID != 1 {
		t.Fatalf("unexpected ordering: %+v", top)
	}
	if limited := SwitchRows(rows, 1); len(limited) != 1 || limited[0].ID != 2 {
		t.Fatalf("expected top 1, got %+v", limited)
	}
}

func TestSelectFocusCandidate(t *testing.T) {
	t.Run("severityPreferred", func(t *testing.T) {
		rows := []ThreadRow{
			{ID: 1, Diagnosis: "OK", Load10: 40},
			{ID: 2, Diagnosis: "CPU-bound", Load10: 60},
			{ID: 3, Diagnosis: "Switch storm", Load10: 2},
		}
		candidate := SelectFocusCandidate(rows)
		if candidate == nil || candidate.ID != 3 {
			t.Fatalf("expected switch storm row, got %+v", candidate)
		}
	})

	t.Run("busiestWhenHealthy", func(t *testing.T) {
		rows := []ThreadRow{
			{ID: 10, Diagnosis: "OK", Load10: 3},
			{ID: 11, Diagnosis: "OK", Load10: 7},
		}
		candidate := SelectFocusCandidate(rows)
		if candidate == nil || candidate.ID != 11 {
			t.Fatalf("expected busiest row, got %+v", candidate)
		}
	})

	t.Run("nothingInteresting", func(t *testing.T) {
		rows := []ThreadRow{{ID: 10, Diagnosis: "Idle"}, {ID: 11, Diagnosis: "OK", Load10: 0.5}}
		if candidate := SelectFocusCandidate(rows); candidate != nil {
			t.Fatalf("expected no candidate, got %+v", candidate)
		}
		if SelectFocusCandidate(nil) != nil {
			t.Fatalf("expected no candidate for empty rows")
		}
	})
}

func TestFocusSummary(t *testing.T) {
	cases := []struct {
		name     string
		row      ThreadRow
		expected string
	}{
		{"storm", ThreadRow{Diagnosis: "Switch storm", Switches: types.ContextSwitches{OneSec: 4000}, Load1: 2}, "4000 switches"},
		{"cpu", ThreadRow{Diagnosis: "CPU-bound", Load10: 70}, "70.00% CPU over 10s"},
		{"spike", ThreadRow{Diagnosis: "Spiking", Load1: 40, Load10: 5}, "against"},
		{"default", ThreadRow{Diagnosis: "OK", Load10: 3}, "3.00% CPU"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			summary := FocusSummary(tc.row)
			if !strings.Contains(summary, tc.expected) {
				t.Fatalf("summary %q does not contain %q", summary, tc.expected)
			}
		})
	}
}

func TestClassifyThread(t *testing.T) {
	cases := []struct {
		name     string
		row      ThreadRow
		expected string
	}{
		{"noData", ThreadRow{}, "N/A"},
		{"storm", ThreadRow{HasSwitches: true, Switches: types.ContextSwitches{OneSec: 1500}, Load1: 3}, "Switch storm"},
		{"busyAndSwitching", ThreadRow{HasLoad: true, HasSwitches: true, Switches: types.ContextSwitches{OneSec: 1500}, Load1: 60, Load10: 60}, "CPU-bound"},
		{"cpuBound", ThreadRow{HasLoad: true, Load1: 80, Load10: 75}, "CPU-bound"},
		{"spiking", ThreadRow{HasLoad: true, Load1: 30, Load10: 10}, "Spiking"},
		{"idle", ThreadRow{HasLoad: true, HasSwitches: true}, "Idle"},
		{"ok", ThreadRow{HasLoad: true, Load: types.Load{OneSec: 500, TenSec: 500}, Load1: 5, Load10: 5}, "OK"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			label := classifyThread(tc.row)
			if label != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, label)
			}
		})
	}
}

func TestDiagnosisSeverity(t *testing.T) {
	labels := map[string]int{
		"Switch storm": 3,
		"CPU-bound":    2,
		"Spiking":      1,
		"Idle":         0,
		"OK":           0,
	}
	for label, expected := range labels {
		if got := diagnosisSeverity(label); got != expected {
			t.Fatalf("severity mismatch for %s: got %d want %d", label, got, expected)
		}
	}
}

func TestPassesFilters(t *testing.T) {
	row := ThreadRow{ID: 10, Name: "app-main", Diagnosis: "OK"}
	if !passesFilters(row, FilterConfig{}) {
		t.Fatalf("expected row to pass default filters")
	}
	if !passesFilters(ThreadRow{ID: 1, Diagnosis: "Idle"}, FilterConfig{}) {
		t.Fatalf("idle threads should be listed by default")
	}
	if passesFilters(ThreadRow{ID: 1, Diagnosis: "Idle"}, FilterConfig{HideIdle: boolPtr(true)}) {
		t.Fatalf("idle thread should be hidden")
	}
	cfg := FilterConfig{NameFilter: "main"}
	if !passesFilters(row, cfg) {
		t.Fatalf("expected main row to pass name filter")
	}
	cfg.NameFilter = "db"
	if passesFilters(row, cfg) {
		t.Fatalf("unexpected name match")
	}
}

func boolPtr(v bool) *bool { return &v }
