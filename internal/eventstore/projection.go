package eventstore

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Run statuses reported by the history projection.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunSummary is a read model summarizing one run.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Status       string        `json:"status"`
	SourceBucket string        `json:"source_bucket,omitempty"`
	Target       string        `json:"target,omitempty"`
	DestBucket   string        `json:"dest_bucket,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Pages        int           `json:"pages"`
	Assets       int           `json:"assets"`
	ErrorStage   string        `json:"error_stage,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// RunHistoryProjection maintains an in-memory view of run history,
// reconstructed from events stored in the ledger.
type RunHistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	runs    map[string]*RunSummary
	maxSize int
}

// NewRunHistoryProjection creates a projection keeping at most maxHistorySize runs.
func NewRunHistoryProjection(store Store, maxHistorySize int) *RunHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &RunHistoryProjection{
		store:   store,
		runs:    make(map[string]*RunSummary),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = make(map[string]*RunSummary)
	for _, event := range events {
		p.applyLocked(event)
	}
	p.pruneLocked()
	return nil
}

// Apply processes a single event and updates the projection.
func (p *RunHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(event)
	p.pruneLocked()
}

func (p *RunHistoryProjection) applyLocked(event Event) {
	runID := event.RunID()
	if runID == "" {
		return
	}
	summary, ok := p.runs[runID]
	if !ok {
		summary = &RunSummary{RunID: runID, Status: StatusRunning, StartedAt: event.Timestamp()}
		p.runs[runID] = summary
	}

	switch event.Type() {
	case TypeRunStarted:
		var payload RunStarted
		if Decode(event, &payload) == nil {
			summary.SourceBucket = payload.SourceBucket
			summary.Target = payload.Target
			summary.DestBucket = payload.DestBucket
		}
		summary.StartedAt = event.Timestamp()
	case TypePagePublished:
		summary.Pages++
	case TypeAssetCopied:
		summary.Assets++
	case TypeRunCompleted:
		p.finishLocked(summary, event, StatusCompleted)
	case TypeRunFailed:
		p.finishLocked(summary, event, StatusFailed)
		var payload RunFailed
		if Decode(event, &payload) == nil {
			summary.ErrorStage = payload.Stage
			summary.ErrorMessage = payload.Error
		}
	}
}

func (p *RunHistoryProjection) finishLocked(summary *RunSummary, event Event, status string) {
	done := event.Timestamp()
	summary.CompletedAt = &done
	summary.Duration = done.Sub(summary.StartedAt)
	summary.Status = status
}

// pruneLocked drops the oldest finished runs beyond maxSize. Running runs are kept.
func (p *RunHistoryProjection) pruneLocked() {
	finished := p.finishedLocked()
	for _, s := range finished[min(len(finished), p.maxSize):] {
		delete(p.runs, s.RunID)
	}
}

// finishedLocked returns finished runs, newest first.
func (p *RunHistoryProjection) finishedLocked() []*RunSummary {
	var out []*RunSummary
	for _, s := range p.runs {
		if s.Status != StatusRunning {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b *RunSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return out
}

// History returns finished runs, newest first.
func (p *RunHistoryProjection) History() []RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	finished := p.finishedLocked()
	out := make([]RunSummary, len(finished))
	for i, s := range finished {
		out[i] = *s
	}
	return out
}

// Run returns the summary for a specific run.
func (p *RunHistoryProjection) Run(runID string) (RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.runs[runID]
	if !ok {
		return RunSummary{}, false
	}
	return *s, true
}

// Active returns a run that has started but not finished, if any.
func (p *RunHistoryProjection) Active() (RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.runs {
		if s.Status == StatusRunning {
			return *s, true
		}
	}
	return RunSummary{}, false
}
