package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
)

// FormatLoad renders a load in hundredths of a percent as "12.34%", or
// "N/A" when the value is unknown.
func FormatLoad(v uint16, known bool) string {
	if !known {
		return "N/A"
	}
	return fmt.Sprintf("%d.%02d%%", v/100, v%100)
}

func formatCount(v uint64, known bool) string {
	if !known {
		return "N/A"
	}
	return strconv.FormatUint(v, 10)
}

func stateLabel(s Snapshot) string {
	switch {
	case s.Running:
		return "running"
	case s.Sampled:
		return "stopped, last sample"
	default:
		return "not started"
	}
}

// WriteLoadTable prints the thread status table: the idle and other rows
// followed by one row per thread.
func WriteLoadTable(w io.Writer, s Snapshot, rows []ThreadRow) error {
	known := s.Known()
	fmt.Fprintf(w, "[Thread load - %s]\n", stateLabel(s))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tName\tPrio\t1sec Load\t10sec Load\tDiag")
	fmt.Fprintf(tw, "-\t<Idle task>\t-\t%s\t%s\t-\n", FormatLoad(s.Idle.OneSec, known), FormatLoad(s.Idle.TenSec, known))
	fmt.Fprintf(tw, "-\t<Other processes/interrupts>\t-\t%s\t%s\t-\n", FormatLoad(s.Other.OneSec, known), FormatLoad(s.Other.TenSec, known))
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n", row.ID, row.Name, row.Priority,
			FormatLoad(row.Load.OneSec, known), FormatLoad(row.Load.TenSec, known), row.Diagnosis)
	}
	return tw.Flush()
}

// WriteSwitchTable prints per-thread context switches and a final Total row.
func WriteSwitchTable(w io.Writer, s Snapshot, rows []ThreadRow) error {
	known := s.Known()
	fmt.Fprintf(w, "[Context switches - %s]\n", stateLabel(s))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tName\tLast 1sec\tLast 10sec\tTotal")
	for _, row := range rows {
		rowKnown := known && row.HasSwitches
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", row.ID, row.Name,
			formatCount(row.Switches.OneSec, rowKnown), formatCount(row.Switches.TenSec, rowKnown), row.Switches.Total)
	}
	t := s.TotalSwitches
	fmt.Fprintf(tw, "\tTotal\t%s\t%s\t%d\n", formatCount(t.OneSec, known), formatCount(t.TenSec, known), t.Total)
	return tw.Flush()
}

// WritePageFaults prints the system-wide page-fault line.
func WritePageFaults(w io.Writer, s Snapshot) error {
	known := s.Known()
	pf := s.PageFaults
	_, err := fmt.Fprintf(w, "Page faults: last 1sec %s, last 10sec %s, total %d\n",
		formatCount(uint64(pf.OneSec), known), formatCount(uint64(pf.TenSec), known), pf.Total)
	return err
}
