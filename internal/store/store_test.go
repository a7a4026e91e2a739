package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techreview-es/mgz-harvester/internal/domain"
)

func openTestBolt(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "data", "articles.db"), "articles")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// exerciseStore runs the behaviour every Store implementation must share.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	originalID := "orig-" + time.Now().Format("150405.000000000")

	_, err := s.FindByOriginalID(ctx, originalID)
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	id, err := s.Create(ctx, map[string]any{
		domain.FieldOriginalID: originalID,
		domain.FieldTitle:      "Título",
		domain.FieldImageURL:   nil,
		domain.FieldTags:       []string{"IA"},
		domain.FieldUpdatedAt:  domain.ServerTimestamp,
		domain.FieldSocialPosts: map[string]any{
			"linkedin":    "post",
			"generatedAt": "2025-03-05T10:00:00Z",
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	found, err := s.FindByOriginalID(ctx, originalID)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, "Título", found.String(domain.FieldTitle))
	assert.Equal(t, []string{"IA"}, found.Strings(domain.FieldTags))
	v, ok := found.Value(domain.FieldImageURL)
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = found.Value(domain.FieldUpdatedAt)
	assert.True(t, ok)

	// Merge keeps fields it does not mention, including nested ones.
	require.NoError(t, s.Merge(ctx, id, map[string]any{
		domain.FieldOriginalID: originalID,
		domain.FieldTitle:      "Nuevo título",
		domain.FieldSocialPosts: map[string]any{
			"generatedAt": "2025-03-06T10:00:00Z",
		},
	}))
	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Nuevo título", got.String(domain.FieldTitle))
	assert.Equal(t, "post", got.String(domain.FieldLinkedIn))
	assert.Equal(t, "2025-03-06T10:00:00Z", got.String(domain.FieldSocialGeneratedAt))
	assert.Equal(t, []string{"IA"}, got.Strings(domain.FieldTags))

	require.NoError(t, s.Update(ctx, id, map[string]any{
		domain.FieldLinkedIn: "otro post",
		domain.FieldStatus:   "published",
	}))
	got, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "otro post", got.String(domain.FieldLinkedIn))
	assert.Equal(t, "published", got.String(domain.FieldStatus))

	_, err = s.Get(ctx, "does-not-exist")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	err = s.Update(ctx, "does-not-exist", map[string]any{domain.FieldStatus: "x"})
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

// exerciseScanWithCommits commits batches from inside the Scan callback and
// checks every document is visited once.
func exerciseScanWithCommits(t *testing.T, s Store) {
	ctx := context.Background()
	run := "run-" + time.Now().Format("150405.000000000")
	want := map[string]bool{}
	for range 5 {
		id, err := s.Create(ctx, map[string]any{domain.FieldSource: run})
		require.NoError(t, err)
		want[id] = true
	}

	visited := map[string]int{}
	batch := s.NewBatch()
	err := s.Scan(ctx, ScanOptions{}, func(d domain.Document) error {
		if d.String(domain.FieldSource) != run {
			return nil
		}
		visited[d.ID]++
		batch.Update(d.ID, map[string]any{domain.FieldStatus: "published"})
		if batch.Len() < 2 {
			return nil
		}
		if err := batch.Commit(ctx); err != nil {
			return err
		}
		batch = s.NewBatch()
		return nil
	})
	require.NoError(t, err)
	if batch.Len() > 0 {
		require.NoError(t, batch.Commit(ctx))
	}

	require.Len(t, visited, len(want))
	for id := range want {
		assert.Equal(t, 1, visited[id], id)
		doc, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "published", doc.String(domain.FieldStatus))
	}
}

func TestBoltStoreContract(t *testing.T) {
	s := openTestBolt(t)
	exerciseStore(t, s)
	exerciseScanWithCommits(t, s)
}

func TestFirestoreStoreContract(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	s, err := OpenFirestore(context.Background(), "mgz-test", "articles_test", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	s.pageSize = 2
	exerciseStore(t, s)
	exerciseScanWithCommits(t, s)
}

func TestBoltRejectsDuplicateOriginalID(t *testing.T) {
	s := openTestBolt(t)
	ctx := context.Background()

	_, err := s.Create(ctx, map[string]any{domain.FieldOriginalID: "42"})
	require.NoError(t, err)
	_, err = s.Create(ctx, map[string]any{domain.FieldOriginalID: "42"})
	assert.True(t, errors.Is(err, ErrDuplicateOriginalID), "got %v", err)
}

func TestBoltServerTimestamp(t *testing.T) {
	s := openTestBolt(t)
	fixed := time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	id, err := s.Create(context.Background(), map[string]any{domain.FieldUpdatedAt: domain.ServerTimestamp})
	require.NoError(t, err)
	doc, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-05T08:00:00Z", doc.String(domain.FieldUpdatedAt))
}

func TestBoltScanOrderAndLimit(t *testing.T) {
	s := openTestBolt(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"a", "b", "c", "d"} {
		_, err := s.Create(ctx, map[string]any{
			domain.FieldTitle:     title,
			domain.FieldUpdatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, map[string]any{domain.FieldTitle: "undated"})
	require.NoError(t, err)

	var titles []string
	err = s.Scan(ctx, ScanOptions{OrderBy: domain.FieldUpdatedAt, Descending: true, Limit: 3}, func(d domain.Document) error {
		titles = append(titles, d.String(domain.FieldTitle))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b"}, titles)

	count := 0
	require.NoError(t, s.Scan(ctx, ScanOptions{}, func(domain.Document) error { count++; return nil }))
	assert.Equal(t, 5, count)
}

func TestBoltScanCallbackMayWrite(t *testing.T) {
	s := openTestBolt(t)
	ctx := context.Background()
	id, err := s.Create(ctx, map[string]any{domain.FieldTitle: "x"})
	require.NoError(t, err)

	err = s.Scan(ctx, ScanOptions{}, func(d domain.Document) error {
		return s.Update(ctx, d.ID, map[string]any{domain.FieldStatus: "published"})
	})
	require.NoError(t, err)

	doc, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "published", doc.String(domain.FieldStatus))
}

func TestBoltBatchIsAtomic(t *testing.T) {
	s := openTestBolt(t)
	ctx := context.Background()
	id, err := s.Create(ctx, map[string]any{domain.FieldStatus: "draft"})
	require.NoError(t, err)

	b := s.NewBatch()
	b.Update(id, map[string]any{domain.FieldStatus: "published"})
	b.Update("missing", map[string]any{domain.FieldStatus: "published"})
	assert.Equal(t, 2, b.Len())
	require.Error(t, b.Commit(ctx))

	doc, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "draft", doc.String(domain.FieldStatus))

	b = s.NewBatch()
	b.Update(id, map[string]any{domain.FieldStatus: "published", domain.FieldCleanedAt: domain.ServerTimestamp})
	require.NoError(t, b.Commit(ctx))
	assert.Equal(t, 0, b.Len())

	doc, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "published", doc.String(domain.FieldStatus))
	assert.NotEmpty(t, doc.String(domain.FieldCleanedAt))
}

func TestMergeMaps(t *testing.T) {
	dst := map[string]any{"a": 1, "n": map[string]any{"x": 1, "y": 2}}
	got := mergeMaps(dst, map[string]any{"b": 2, "n": map[string]any{"y": 3}})
	assert.Equal(t, map[string]any{"a": 1, "b": 2, "n": map[string]any{"x": 1, "y": 3}}, got)
}
