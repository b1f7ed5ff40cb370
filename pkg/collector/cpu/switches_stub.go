//go:build !linux
// +build !linux

package cpu

import (
	"errors"

	"github.com/srodi/threadload/pkg/types"
)

var errUnsupported = errors.New("switch counter requires linux")

// SwitchCounter is a placeholder on non-Linux platforms.
type SwitchCounter struct{}

// NewSwitchCounter returns an error because eBPF is only supported on Linux.
func NewSwitchCounter(path string) (*SwitchCounter, error) {
	return nil, errUnsupported
}

// Count always fails on unsupported platforms.
func (c *SwitchCounter) Count(tid types.ThreadID) (uint64, error) {
	return 0, errUnsupported
}

// Prune does nothing on unsupported platforms.
func (c *SwitchCounter) Prune(live map[types.ThreadID]struct{}) error {
	return nil
}

// Close is a no-op stub.
func (c *SwitchCounter) Close() error {
	return nil
}
