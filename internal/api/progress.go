package api

import "sync"

// ProgressTracker holds the latest import progress event for polling
// clients. The coordinator's callback writes into it.
type ProgressTracker struct {
	mu      sync.Mutex
	stage   string
	percent float64
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{}
}

// Record is wired as the coordinator's ProgressFunc.
func (t *ProgressTracker) Record(stage string, percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = stage
	t.percent = percent
}

type ProgressSnapshot struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
}

func (t *ProgressTracker) Snapshot() ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ProgressSnapshot{Stage: t.stage, Percent: t.percent}
}
