//go:build linux

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/srodi/threadload/pkg/report"
	"github.com/srodi/threadload/pkg/ui"
)

type viewConfig struct {
	pid      int
	switches string
	interval time.Duration
	topK     int
	filter   report.FilterConfig
}

// renderTop writes one frame of the live view.
func renderTop(w io.Writer, snap report.Snapshot, cfg viewConfig) error {
	rows := report.FilterRows(snap.Threads, cfg.filter)
	focus := report.SelectFocusCandidate(rows)

	fmt.Fprint(w, ui.Banner())
	fmt.Fprintf(w, "threadload pid %d (press Ctrl+C to exit)\n", cfg.pid)
	updated := snap.Time.Format(time.RFC3339)
	if !snap.Running {
		updated = ui.Stopped(updated + " (monitor stopped)")
	}
	fmt.Fprintf(w, "Updated: %s | Interval: %v | Switches: %s | Threads: %d\n\n", updated, cfg.interval, cfg.switches, len(snap.Threads))

	if focus != nil {
		fmt.Fprintf(w, "[!] Focus: %s (tid %d)\n", focus.Name, focus.ID)
		fmt.Fprintf(w, "   Reason: %s - %s\n\n", focus.Diagnosis, report.FocusSummary(*focus))
	} else if len(rows) == 0 {
		fmt.Fprintf(w, "[!] No threads matched current filters (topk=%d)\n\n", cfg.topK)
	}

	if err := report.WriteLoadTable(w, snap, report.LoadRows(rows, cfg.topK)); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := report.WriteSwitchTable(w, snap, report.SwitchRows(rows, cfg.topK)); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return report.WritePageFaults(w, snap)
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[H\033[2J")
}

// enterSingleView switches a terminal out to the alternate screen with the
// cursor hidden and keyboard echo off. The returned restore is idempotent and
// also runs when ctx is cancelled. Nothing happens when out is not a terminal.
func enterSingleView(ctx context.Context, out, in *os.File, logger *log.Logger) func() {
	if !term.IsTerminal(int(out.Fd())) {
		return func() {}
	}

	fmt.Fprint(out, "\033[?1049h\033[?25l")

	inFD := int(in.Fd())
	var saved *term.State
	if term.IsTerminal(inFD) {
		state, err := term.GetState(inFD)
		if err == nil {
			err = disableInputEcho(inFD)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("unable to suppress stdin echo")
		} else {
			saved = state
		}
	}

	var once sync.Once
	done := make(chan struct{})
	restore := func() {
		once.Do(func() {
			close(done)
			if saved != nil {
				if err := term.Restore(inFD, saved); err != nil {
					logger.Warn().Err(err).Msg("unable to restore terminal state")
				}
			}
			fmt.Fprint(out, "\033[?25h\033[?1049l")
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			restore()
		case <-done:
		}
	}()
	return restore
}

// disableInputEcho clears ECHO only; Ctrl+C must still raise SIGINT.
func disableInputEcho(fd int) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	termios.Lflag &^= unix.ECHO
	return unix.IoctlSetTermios(fd, unix.TCSETS, termios)
}
