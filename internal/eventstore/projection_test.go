package eventstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(t *testing.T, runID, typ string, ts time.Time, payload any) Event {
	t.Helper()
	data := []byte("{}")
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	return &BaseEvent{EventRunID: runID, EventType: typ, EventTimestamp: ts, EventPayload: data}
}

func TestRunHistoryProjection_Apply(t *testing.T) {
	p := NewRunHistoryProjection(nil, 10)
	start := time.Now()

	p.Apply(event(t, "r1", TypeRunStarted, start, RunStarted{SourceBucket: "site", Target: "prod", DestBucket: "www"}))
	p.Apply(event(t, "r1", TypePagePublished, start.Add(time.Second), nil))
	p.Apply(event(t, "r1", TypePagePublished, start.Add(time.Second), nil))
	p.Apply(event(t, "r1", TypeAssetCopied, start.Add(time.Second), nil))

	active, ok := p.Active()
	require.True(t, ok)
	assert.Equal(t, "r1", active.RunID)
	assert.Empty(t, p.History())

	p.Apply(event(t, "r1", TypeRunCompleted, start.Add(3*time.Second), NewRunCompleted(2, 1, 3*time.Second)))

	summary, ok := p.Run("r1")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, summary.Status)
	assert.Equal(t, "www", summary.DestBucket)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 1, summary.Assets)
	assert.Equal(t, 3*time.Second, summary.Duration)

	_, ok = p.Active()
	assert.False(t, ok)
}

func TestRunHistoryProjection_Failed(t *testing.T) {
	p := NewRunHistoryProjection(nil, 10)
	start := time.Now()
	p.Apply(event(t, "r2", TypeRunStarted, start, RunStarted{}))
	p.Apply(event(t, "r2", TypeRunFailed, start.Add(time.Second), NewRunFailed("build_tree", errors.New("bad config"), time.Second)))

	history := p.History()
	require.Len(t, history, 1)
	assert.Equal(t, StatusFailed, history[0].Status)
	assert.Equal(t, "build_tree", history[0].ErrorStage)
	assert.Equal(t, "bad config", history[0].ErrorMessage)
}

func TestRunHistoryProjection_HistoryLimitNewestFirst(t *testing.T) {
	p := NewRunHistoryProjection(nil, 3)
	base := time.Now()
	for i := range 5 {
		id := fmt.Sprintf("r%d", i)
		ts := base.Add(time.Duration(i) * time.Minute)
		p.Apply(event(t, id, TypeRunStarted, ts, RunStarted{}))
		p.Apply(event(t, id, TypeRunCompleted, ts.Add(time.Second), RunCompleted{}))
	}

	history := p.History()
	require.Len(t, history, 3)
	assert.Equal(t, []string{"r4", "r3", "r2"}, []string{history[0].RunID, history[1].RunID, history[2].RunID})
	_, ok := p.Run("r0")
	assert.False(t, ok)
}

func TestRunHistoryProjection_Rebuild(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	require.NoError(t, Record(ctx, store, "r1", TypeRunStarted, RunStarted{Target: "prod"}))
	require.NoError(t, Record(ctx, store, "r1", TypePagePublished, PagePublished{DestKey: "a.html"}))
	require.NoError(t, Record(ctx, store, "r1", TypeRunCompleted, NewRunCompleted(1, 0, time.Millisecond)))

	p := NewRunHistoryProjection(store, 10)
	require.NoError(t, p.Rebuild(ctx))

	summary, ok := p.Run("r1")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, summary.Status)
	assert.Equal(t, "prod", summary.Target)
	assert.Equal(t, 1, summary.Pages)
}
