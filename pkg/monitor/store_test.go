package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srodi/threadload/pkg/types"
)

func TestSampleStoreEvictsUnseen(t *testing.T) {
	s := newSampleStore()

	s.beginTick()
	s.touch(types.ThreadInfo{ID: 10, Name: "a"})
	s.touch(types.ThreadInfo{ID: 11, Name: "b"})
	require.Empty(t, s.endTick())

	s.beginTick()
	s.touch(types.ThreadInfo{ID: 11, Name: "b"})
	assert.Equal(t, []types.ThreadID{10}, s.endTick())

	_, ok := s.threads[10]
	assert.False(t, ok)
	assert.Contains(t, s.threads, types.ThreadID(11))
}

func TestSampleStoreKeepAll(t *testing.T) {
	s := newSampleStore()
	s.beginTick()
	s.touch(types.ThreadInfo{ID: 1})
	s.endTick()

	s.beginTick()
	s.keepAll()
	assert.Empty(t, s.endTick())
	assert.Len(t, s.threads, 1)
}

func TestSampleStoreTouchRefreshesInfo(t *testing.T) {
	s := newSampleStore()
	e := s.touch(types.ThreadInfo{ID: 5, Name: "old"})
	e.Load.Advance(10)

	e = s.touch(types.ThreadInfo{ID: 5, Name: "renamed", Priority: 20})
	assert.Equal(t, "renamed", e.Info.Name)
	assert.Equal(t, 20, e.Info.Priority)
	assert.True(t, e.Load.Observed(), "state must survive a rename")
}

func TestSampleStoreSnapshotIsACopy(t *testing.T) {
	s := newSampleStore()
	s.running = true
	e := s.touch(types.ThreadInfo{ID: 3})
	e.Load.Advance(1)
	s.pageFaults.Total = 7

	snap := s.snapshot()
	e.Load.Advance(500)
	s.pageFaults.Total = 9
	delete(s.threads, 3)

	require.Contains(t, snap.threads, types.ThreadID(3))
	assert.Equal(t, uint64(1), snap.threads[3].Load.LastCumulative)
	assert.Equal(t, uint64(7), snap.pageFaults.Total)
	assert.True(t, snap.running)
}

func TestSampleStoreReset(t *testing.T) {
	s := newSampleStore()
	s.touch(types.ThreadInfo{ID: 3})
	s.pageFaults.Advance(4)
	s.pageFaults.Total = 4

	s.reset()
	assert.Empty(t, s.threads)
	assert.Equal(t, pageFaultState{}, s.pageFaults)
}
