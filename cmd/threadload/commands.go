//go:build linux

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/srodi/threadload/pkg/exporter"
	"github.com/srodi/threadload/pkg/report"
)

// run starts the monitor, hands it to fn and tears everything down on return.
func run(v *viper.Viper, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(v)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.log.Warn().Err(err).Msg("shutdown")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.mon.Start(); err != nil {
		return err
	}
	return fn(ctx, a)
}

// warmup waits until the monitor has sampled long enough for the one-tick
// figures to exist.
func warmup(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func oneShot(v *viper.Viper, print func(w io.Writer, a *app, snap report.Snapshot) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return run(v, func(ctx context.Context, a *app) error {
			warmup(ctx, a.cfg.Warmup)
			return print(cmd.OutOrStdout(), a, report.Capture(a.mon))
		})
	}
}

func newThreadsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "threads",
		Short: "Print the thread status table once",
		RunE: oneShot(v, func(w io.Writer, a *app, snap report.Snapshot) error {
			return report.WriteLoadTable(w, snap, report.FilterRows(snap.Threads, filterConfig(a)))
		}),
	}
}

func newSwitchesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "switches",
		Short: "Print per-thread context switches once",
		RunE: oneShot(v, func(w io.Writer, a *app, snap report.Snapshot) error {
			return report.WriteSwitchTable(w, snap, report.FilterRows(snap.Threads, filterConfig(a)))
		}),
	}
}

func newFaultsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "faults",
		Short: "Print system-wide page faults once",
		RunE: oneShot(v, func(w io.Writer, _ *app, snap report.Snapshot) error {
			return report.WritePageFaults(w, snap)
		}),
	}
}

func newDumpCmd(v *viper.Viper) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print a snapshot of every figure as YAML or JSON",
		PreRunE: func(*cobra.Command, []string) error {
			if format != "yaml" && format != "json" {
				return fmt.Errorf("unknown format %q, want yaml or json", format)
			}
			return nil
		},
		RunE: oneShot(v, func(w io.Writer, _ *app, snap report.Snapshot) error {
			return encodeSnapshot(w, snap, format)
		}),
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	return cmd
}

func encodeSnapshot(w io.Writer, snap report.Snapshot, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return err
	}
	return enc.Close()
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the figures as Prometheus metrics",
		RunE: func(*cobra.Command, []string) error {
			return run(v, serve)
		},
	}
	cmd.Flags().String("listen", ":9464", "address to listen on")
	cmd.Flags().String("path", "/metrics", "metrics endpoint path")
	cobra.CheckErr(v.BindPFlag("serve.listen", cmd.Flags().Lookup("listen")))
	cobra.CheckErr(v.BindPFlag("serve.path", cmd.Flags().Lookup("path")))
	return cmd
}

func serve(ctx context.Context, a *app) error {
	reg, err := exporter.NewRegistry(a.mon)
	if err != nil {
		return fmt.Errorf("registering collectors: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Serve.Path, exporter.NewHandler(reg))
	srv := &http.Server{
		Addr:              a.cfg.Serve.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("listen", srv.Addr).Str("path", a.cfg.Serve.Path).Msg("serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving metrics: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newTopCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "top",
		Short: "Live view of thread load, context switches and page faults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(v, func(ctx context.Context, a *app) error {
				return top(ctx, a, cmd.OutOrStdout())
			})
		},
	}
}

func top(ctx context.Context, a *app, out io.Writer) error {
	restore := enterSingleView(ctx, os.Stdout, os.Stdin, a.log)
	defer restore()

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var buf bytes.Buffer
			if err := renderTop(&buf, report.Capture(a.mon), viewConfig{
				pid:      a.source.PID(),
				switches: a.source.SwitchSource(),
				interval: a.cfg.Interval,
				topK:     a.cfg.TopK,
				filter:   filterConfig(a),
			}); err != nil {
				a.log.Warn().Err(err).Msg("render failed")
				continue
			}
			clearScreen(out)
			if _, err := out.Write(buf.Bytes()); err != nil {
				return err
			}
		}
	}
}

func filterConfig(a *app) report.FilterConfig {
	hideIdle := a.cfg.HideIdle
	return report.FilterConfig{HideIdle: &hideIdle, NameFilter: a.cfg.Filter}
}
