package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &Record{
		TraceID:    "trace-1",
		Ticker:     "7203",
		Market:     "JP",
		Decision:   "buy",
		Confidence: 0.7,
		ImageCount: 2,
		Meta:       datatypes.JSON(`{"market":"JP"}`),
		Result:     datatypes.JSON(`{"decision":"buy"}`),
	}
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, "7203", got.Ticker)
	assert.Equal(t, "buy", got.Decision)
	assert.JSONEq(t, `{"decision":"buy"}`, string(got.Result))
}

func TestStoreGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(ctx, &Record{TraceID: id, Result: datatypes.JSON(`{}`), Meta: datatypes.JSON(`{}`)}))
	}
	records, err := s.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &Record{TraceID: "gone", Result: datatypes.JSON(`{}`), Meta: datatypes.JSON(`{}`)}))
	require.NoError(t, s.Delete(ctx, "gone"))
	assert.ErrorIs(t, s.Delete(ctx, "gone"), ErrNotFound)
}

func TestStoreRejectsEmptyTraceID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Save(context.Background(), &Record{}))
}
