package eventstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRunID = "run-123"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_AppendAndRetrieve(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, testRunID, "TestEvent", []byte(`{"test":"data"}`), map[string]string{"key": "value"}))

	events, err := store.GetByRunID(ctx, testRunID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, testRunID, e.RunID())
	assert.Equal(t, "TestEvent", e.Type())
	assert.JSONEq(t, `{"test":"data"}`, string(e.Payload()))
	assert.Equal(t, "value", e.Metadata()["key"])
	assert.WithinDuration(t, time.Now(), e.Timestamp(), 5*time.Second)
}

func TestSQLiteStore_GetRangeAndIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, Record(ctx, store, "run-a", TypeRunStarted, RunStarted{SourceBucket: "src"}))
	require.NoError(t, Record(ctx, store, "run-b", TypeRunStarted, RunStarted{SourceBucket: "src"}))
	require.NoError(t, Record(ctx, store, "run-a", TypeRunCompleted, NewRunCompleted(2, 1, time.Second)))

	a, err := store.GetByRunID(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Equal(t, TypeRunStarted, a[0].Type())
	assert.Equal(t, TypeRunCompleted, a[1].Type())

	all, err := store.GetRange(ctx, time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := store.GetRange(ctx, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordAndDecode(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	in := PagePublished{SourceKey: "src/a.markdown", DestKey: "a.html", URL: "/a.html", Layout: "post", Fingerprint: "abc", Bytes: 42}
	require.NoError(t, Record(ctx, store, testRunID, TypePagePublished, in))

	events, err := store.GetByRunID(ctx, testRunID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	var out PagePublished
	require.NoError(t, Decode(events[0], &out))
	assert.Equal(t, in, out)

	err = Decode(&BaseEvent{EventPayload: []byte("not json")}, &out)
	require.Error(t, err)
}

func TestNewRunFailed(t *testing.T) {
	f := NewRunFailed("render", errors.New("boom"), 1500*time.Millisecond)
	assert.Equal(t, "render", f.Stage)
	assert.Equal(t, "internal", f.Category)
	assert.Equal(t, "boom", f.Error)
	assert.Equal(t, int64(1500), f.DurationMS)
}
