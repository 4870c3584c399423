package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mersel/xslt-service/internal/model"
)

func newHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(newSyncStore(t))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func testVersion(id string, createdAt time.Time) model.AssetVersion {
	return model.AssetVersion{
		ID:          id,
		PackageID:   "efatura",
		DisplayName: "e-Fatura Paketi (UBL-TR)",
		CreatedAt:   createdAt,
		Status:      model.VersionPending,
		Files:       model.FilesSummary{Added: 2, Modified: 1, Unchanged: 5},
		DurationMs:  120,
	}
}

func TestHistoryInsertAndGet(t *testing.T) {
	h := newHistory(t)
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	require.NoError(t, h.Insert(testVersion("v-1", created)))

	v, err := h.Get("v-1")
	require.NoError(t, err)
	assert.Equal(t, "efatura", v.PackageID)
	assert.Equal(t, model.VersionPending, v.Status)
	assert.True(t, v.CreatedAt.Equal(created))
	assert.Equal(t, 2, v.Files.Added)
	assert.Equal(t, int64(120), v.DurationMs)
	assert.Nil(t, v.AppliedAt)
	assert.Nil(t, v.RejectedAt)
}

func TestHistoryGetUnknown(t *testing.T) {
	h := newHistory(t)
	_, err := h.Get("missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestHistoryStatusTransitions(t *testing.T) {
	h := newHistory(t)
	now := time.Now().UTC()
	require.NoError(t, h.Insert(testVersion("v-1", now)))
	require.NoError(t, h.Insert(testVersion("v-2", now)))

	require.NoError(t, h.MarkApplied("v-1", now))
	require.NoError(t, h.MarkRejected("v-2", now))

	v1, err := h.Get("v-1")
	require.NoError(t, err)
	assert.Equal(t, model.VersionApplied, v1.Status)
	require.NotNil(t, v1.AppliedAt)

	v2, err := h.Get("v-2")
	require.NoError(t, err)
	assert.Equal(t, model.VersionRejected, v2.Status)
	require.NotNil(t, v2.RejectedAt)

	assert.ErrorIs(t, h.MarkApplied("missing", now), model.ErrNotFound)
}

func TestHistoryListNewestFirst(t *testing.T) {
	h := newHistory(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"v-1", "v-2", "v-3"} {
		require.NoError(t, h.Insert(testVersion(id, base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, h.MarkRejected("v-2", base.Add(4*time.Hour)))

	all, err := h.List("", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "v-3", all[0].ID)
	assert.Equal(t, "v-1", all[2].ID)

	pending, err := h.List(model.VersionPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	limited, err := h.List("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
