//go:build linux

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/srodi/threadload/pkg/collector"
	"github.com/srodi/threadload/pkg/config"
	"github.com/srodi/threadload/pkg/logger"
	"github.com/srodi/threadload/pkg/monitor"
	"github.com/srodi/threadload/pkg/types"
)

var cfgFile string

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "threadload",
		Short: "threadload samples per-thread CPU load and context switches",
		Long: `threadload samples the threads of one process once per interval and reports
each thread's share of CPU time over the last second and a smoothed ten-second
window, along with context switches and system-wide page faults.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.Duration("interval", monitor.DefaultInterval, "sampling interval")
	flags.Int("pid", 0, "process to sample (default: threadload itself)")
	flags.String("proc-root", "/proc", "proc filesystem mount point")
	flags.String("bpf-object", "", "compiled sched_switch counter; context switches come from procfs when empty")
	flags.Int("top-k", types.DefaultTopK, "number of threads to display per table in top (0 for all)")
	flags.String("filter", "", "only show threads whose name contains this substring (case-insensitive)")
	flags.Bool("hide-idle", false, "hide threads with no load and no context switches")
	flags.Duration("warmup", 2*monitor.DefaultInterval, "time to sample before one-shot commands print")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "auto", "log format: auto, logfmt, json")

	for key, flag := range map[string]string{
		"interval":   "interval",
		"pid":        "pid",
		"proc_root":  "proc-root",
		"bpf.object": "bpf-object",
		"top_k":      "top-k",
		"filter":     "filter",
		"hide_idle":  "hide-idle",
		"warmup":     "warmup",
		"log.level":  "log-level",
		"log.format": "log-format",
	} {
		cobra.CheckErr(v.BindPFlag(key, flags.Lookup(flag)))
	}

	root.AddCommand(
		newTopCmd(v),
		newThreadsCmd(v),
		newSwitchesCmd(v),
		newFaultsCmd(v),
		newDumpCmd(v),
		newServeCmd(v),
	)
	return root
}

// app wires the configured source into a monitor.
type app struct {
	cfg    config.Config
	log    *log.Logger
	source *collector.Source
	mon    *monitor.Monitor
}

func newApp(v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	logr, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}

	source, err := collector.New(collector.Config{
		ProcRoot:  cfg.ProcRoot,
		PID:       cfg.PID,
		BPFObject: cfg.BPF.Object,
		Logger:    logr,
	})
	if err != nil {
		return nil, err
	}
	logr.Info().Int("pid", source.PID()).Str("switches", source.SwitchSource()).Dur("interval", cfg.Interval).Msg("sampling threads")

	mon := monitor.New(source, monitor.Options{Interval: cfg.Interval, Logger: logr})
	return &app{cfg: cfg, log: logr, source: source, mon: mon}, nil
}

func (a *app) Close() error {
	return errors.Join(a.mon.Close(), a.source.Close())
}

func main() {
	v := viper.New()
	if err := newRootCmd(v).Execute(); err != nil {
		if config.IsInvalid(err) {
			fmt.Fprintln(os.Stderr, "see threadload --help for the accepted values")
		}
		os.Exit(1)
	}
}
