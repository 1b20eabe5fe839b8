// Package status tracks the progress of the most recent indexing job.
package status

import (
	"sync"

	"github.com/mhalder/ragserver/internal/domain"
)

// Tracker holds the progress record for the current or most recent indexing
// job. Exactly one job mutates it at a time; any number of pollers read it.
type Tracker struct {
	mu     sync.RWMutex
	status domain.IndexStatus
}

// NewTracker returns a tracker with no job recorded yet.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin marks the start of a job with the given total unit count.
func (t *Tracker) Begin(total int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = domain.IndexStatus{
		IsIndexing: true,
		Current:    0,
		Total:      total,
		Message:    message,
	}
}

// Advance records progress. Progress within a job is monotonic; a stale
// lower value is ignored.
func (t *Tracker) Advance(current int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.status.IsIndexing {
		return
	}
	if current < t.status.Current {
		return
	}
	if t.status.Total > 0 && current > t.status.Total {
		current = t.status.Total
	}
	t.status.Current = current
	t.status.Message = message
}

// Finish marks the job as completed.
func (t *Tracker) Finish(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.IsIndexing = false
	t.status.Current = t.status.Total
	t.status.Message = message
}

// Fail marks the job as failed. The job is not retried automatically; a new
// job must be triggered externally.
func (t *Tracker) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.IsIndexing = false
	t.status.Message = message
}

// Snapshot returns the latest status without blocking on any in-flight job.
func (t *Tracker) Snapshot() domain.IndexStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
