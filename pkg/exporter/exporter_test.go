package exporter

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srodi/threadload/pkg/types"
)

type fakeReader struct {
	running  bool
	load     map[types.ThreadID]types.Load
	switches map[types.ThreadID]types.ContextSwitches
	faults   types.PageFaults
	threads  []types.ThreadInfo
}

func (f fakeReader) LoadGet() (map[types.ThreadID]types.Load, bool) { return f.load, f.running }

func (f fakeReader) ContextSwitchesGet() (map[types.ThreadID]types.ContextSwitches, bool) {
	return f.switches, f.running
}

func (f fakeReader) PageFaultsGet() (types.PageFaults, bool) { return f.faults, f.running }

func (f fakeReader) Threads() ([]types.ThreadInfo, bool) { return f.threads, f.running }

func sampled() fakeReader {
	return fakeReader{
		running: true,
		load: map[types.ThreadID]types.Load{
			101:                 {OneSec: 5833, TenSec: 5476},
			types.IdleThreadID:  {OneSec: 4167, TenSec: 4524},
			types.OtherThreadID: {},
		},
		switches: map[types.ThreadID]types.ContextSwitches{
			101:                 {OneSec: 20, TenSec: 56, Total: 1060},
			types.OtherThreadID: {OneSec: 20, TenSec: 56, Total: 1060},
		},
		faults:  types.PageFaults{OneSec: 300, TenSec: 390, Total: 5400},
		threads: []types.ThreadInfo{{ID: 101, Name: "worker"}},
	}
}

func TestCollectorLoad(t *testing.T) {
	expected := `
# HELP threadload_thread_load_percent Share of CPU time used by a thread; tid -1 is idle, 0 is everything else.
# TYPE threadload_thread_load_percent gauge
threadload_thread_load_percent{name="<idle>",tid="-1",window="10s"} 45.24
threadload_thread_load_percent{name="<idle>",tid="-1",window="1s"} 41.67
threadload_thread_load_percent{name="<other>",tid="0",window="10s"} 0
threadload_thread_load_percent{name="<other>",tid="0",window="1s"} 0
threadload_thread_load_percent{name="worker",tid="101",window="10s"} 54.76
threadload_thread_load_percent{name="worker",tid="101",window="1s"} 58.33
`
	err := testutil.CollectAndCompare(New(sampled()), strings.NewReader(expected), "threadload_thread_load_percent")
	require.NoError(t, err)
}

func TestCollectorSwitchesAndFaults(t *testing.T) {
	expected := `
# HELP threadload_monitor_running 1 while the monitor is sampling.
# TYPE threadload_monitor_running gauge
threadload_monitor_running 1
# HELP threadload_page_faults System-wide page faults over the last tick (1s) or the decayed ten-tick window (10s).
# TYPE threadload_page_faults gauge
threadload_page_faults{window="10s"} 390
threadload_page_faults{window="1s"} 300
# HELP threadload_page_faults_total System-wide page faults, truncated to 32 bits.
# TYPE threadload_page_faults_total counter
threadload_page_faults_total 5400
# HELP threadload_thread_context_switches_total Context switches of a thread since it started.
# TYPE threadload_thread_context_switches_total counter
threadload_thread_context_switches_total{name="worker",tid="101"} 1060
`
	err := testutil.CollectAndCompare(New(sampled()), strings.NewReader(expected),
		"threadload_monitor_running", "threadload_page_faults", "threadload_page_faults_total",
		"threadload_thread_context_switches_total")
	require.NoError(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(New(sampled()), "threadload_thread_context_switches"))
}

func TestCollectorNotStarted(t *testing.T) {
	c := New(fakeReader{})
	assert.Equal(t, 1, testutil.CollectAndCount(c))
	assert.Equal(t, float64(0), testutil.ToFloat64(c))
}

func TestHandlerServesMetrics(t *testing.T) {
	reg, err := NewRegistry(sampled())
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `threadload_thread_load_percent{name="worker",tid="101",window="1s"} 58.33`)
	assert.Contains(t, string(body), "go_goroutines")
}
