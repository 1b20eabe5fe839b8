package status

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_InitialSnapshot(t *testing.T) {
	tr := NewTracker()
	s := tr.Snapshot()
	assert.False(t, s.IsIndexing)
	assert.Equal(t, 0, s.Current)
	assert.Equal(t, 0, s.Total)
}

func TestTracker_JobLifecycle(t *testing.T) {
	tr := NewTracker()

	tr.Begin(10, "Rebuilding index")
	s := tr.Snapshot()
	require.True(t, s.IsIndexing)
	assert.Equal(t, 0, s.Current)
	assert.Equal(t, 10, s.Total)

	tr.Advance(4, "Indexed 4/10 documents")
	assert.Equal(t, 4, tr.Snapshot().Current)

	tr.Finish("done")
	s = tr.Snapshot()
	assert.False(t, s.IsIndexing)
	assert.Equal(t, 10, s.Current)
	assert.Equal(t, "done", s.Message)
}

func TestTracker_ProgressIsMonotonic(t *testing.T) {
	tr := NewTracker()
	tr.Begin(10, "start")
	tr.Advance(7, "seven")
	tr.Advance(3, "stale")
	assert.Equal(t, 7, tr.Snapshot().Current)
	assert.Equal(t, "seven", tr.Snapshot().Message)
}

func TestTracker_CurrentNeverExceedsTotal(t *testing.T) {
	tr := NewTracker()
	tr.Begin(5, "start")
	tr.Advance(9, "overshoot")
	assert.Equal(t, 5, tr.Snapshot().Current)
}

func TestTracker_FailIsTerminal(t *testing.T) {
	tr := NewTracker()
	tr.Begin(3, "start")
	tr.Advance(1, "one")
	tr.Fail("Rebuild failed: disk error")

	s := tr.Snapshot()
	assert.False(t, s.IsIndexing)
	assert.Equal(t, "Rebuild failed: disk error", s.Message)

	// A finished job ignores late progress reports.
	tr.Advance(2, "late")
	assert.Equal(t, 1, tr.Snapshot().Current)
}

func TestTracker_ConcurrentPollers(t *testing.T) {
	tr := NewTracker()
	tr.Begin(100, "start")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 100; i++ {
			tr.Advance(i, "progress")
		}
		tr.Finish("done")
	}()
	go func() {
		defer wg.Done()
		last := 0
		for i := 0; i < 1000; i++ {
			s := tr.Snapshot()
			assert.GreaterOrEqual(t, s.Current, last)
			assert.LessOrEqual(t, s.Current, s.Total)
			last = s.Current
		}
	}()
	wg.Wait()
}
