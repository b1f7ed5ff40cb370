// Package exporter exposes the monitor's figures as Prometheus metrics.
package exporter

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/srodi/threadload/pkg/report"
	"github.com/srodi/threadload/pkg/types"
)

const namespace = "threadload"

// Collector implements prometheus.Collector on top of a monitor. Every
// scrape reads a fresh snapshot.
type Collector struct {
	reader report.Reader

	loadDesc          *prometheus.Desc
	switchesDesc      *prometheus.Desc
	switchesTotalDesc *prometheus.Desc
	faultsDesc        *prometheus.Desc
	faultsTotalDesc   *prometheus.Desc
	runningDesc       *prometheus.Desc
}

// New creates a collector reading from r.
func New(r report.Reader) *Collector {
	return &Collector{
		reader: r,
		loadDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "thread", "load_percent"),
			"Share of CPU time used by a thread; tid -1 is idle, 0 is everything else.",
			[]string{"tid", "name", "window"}, nil,
		),
		switchesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "thread", "context_switches"),
			"Context switches of a thread over the last tick (1s) or the decayed ten-tick window (10s).",
			[]string{"tid", "name", "window"}, nil,
		),
		switchesTotalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "thread", "context_switches_total"),
			"Context switches of a thread since it started.",
			[]string{"tid", "name"}, nil,
		),
		faultsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "page_faults"),
			"System-wide page faults over the last tick (1s) or the decayed ten-tick window (10s).",
			[]string{"window"}, nil,
		),
		faultsTotalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "page_faults_total"),
			"System-wide page faults, truncated to 32 bits.",
			nil, nil,
		),
		runningDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "monitor_running"),
			"1 while the monitor is sampling.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.loadDesc
	ch <- c.switchesDesc
	ch <- c.switchesTotalDesc
	ch <- c.faultsDesc
	ch <- c.faultsTotalDesc
	ch <- c.runningDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := report.Capture(c.reader)

	running := 0.0
	if snap.Running {
		running = 1
	}
	ch <- prometheus.MustNewConstMetric(c.runningDesc, prometheus.GaugeValue, running)

	if snap.Sampled {
		c.collectLoad(ch, types.IdleThreadID, "<idle>", snap.Idle)
		c.collectLoad(ch, types.OtherThreadID, "<other>", snap.Other)
	}
	for _, row := range snap.Threads {
		tid := strconv.Itoa(int(row.ID))
		if row.HasLoad {
			c.collectLoad(ch, row.ID, row.Name, row.Load)
		}
		if !row.HasSwitches {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.switchesDesc, prometheus.GaugeValue,
			float64(row.Switches.OneSec), tid, row.Name, "1s")
		ch <- prometheus.MustNewConstMetric(c.switchesDesc, prometheus.GaugeValue,
			float64(row.Switches.TenSec), tid, row.Name, "10s")
		ch <- prometheus.MustNewConstMetric(c.switchesTotalDesc, prometheus.CounterValue,
			float64(row.Switches.Total), tid, row.Name)
	}

	if !snap.Known() {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.faultsDesc, prometheus.GaugeValue, float64(snap.PageFaults.OneSec), "1s")
	ch <- prometheus.MustNewConstMetric(c.faultsDesc, prometheus.GaugeValue, float64(snap.PageFaults.TenSec), "10s")
	ch <- prometheus.MustNewConstMetric(c.faultsTotalDesc, prometheus.CounterValue, float64(snap.PageFaults.Total))
}

func (c *Collector) collectLoad(ch chan<- prometheus.Metric, id types.ThreadID, name string, l types.Load) {
	tid := strconv.Itoa(int(id))
	ch <- prometheus.MustNewConstMetric(c.loadDesc, prometheus.GaugeValue, report.Percent(l.OneSec), tid, name, "1s")
	ch <- prometheus.MustNewConstMetric(c.loadDesc, prometheus.GaugeValue, report.Percent(l.TenSec), tid, name, "10s")
}
