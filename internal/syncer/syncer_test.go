package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techreview-es/mgz-harvester/internal/assembler"
	"github.com/techreview-es/mgz-harvester/internal/domain"
	"github.com/techreview-es/mgz-harvester/internal/store"
	"github.com/techreview-es/mgz-harvester/pkg/providers"
	"github.com/techreview-es/mgz-harvester/pkg/publishers"
)

type fakeFetcher struct {
	entries []string
	err     error
	limit   int
	offset  int
}

func (f *fakeFetcher) ID() string { return "fake" }

func (f *fakeFetcher) FetchEntries(_ context.Context, limit, offset int) ([]json.RawMessage, error) {
	f.limit, f.offset = limit, offset
	if f.err != nil {
		return nil, f.err
	}
	out := make([]json.RawMessage, len(f.entries))
	for i, e := range f.entries {
		out[i] = json.RawMessage(e)
	}
	return out, nil
}

type countingSocial struct {
	calls int
	post  string
}

func (c *countingSocial) Generate(context.Context, domain.Article) string {
	c.calls++
	return c.post
}

type recordingNotifier struct {
	events []publishers.Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, evt publishers.Event) error {
	r.events = append(r.events, evt)
	return r.err
}

type failingCreateStore struct {
	store.Store
}

func (failingCreateStore) Create(context.Context, map[string]any) (string, error) {
	return "", errors.New("quota exceeded")
}

func openStore(t *testing.T) *store.BoltStore {
	t.Helper()
	st, err := store.OpenBolt(filepath.Join(t.TempDir(), "articles.db"), "articles")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newSyncer(f providers.Fetcher, social PostGenerator, st store.Store, n Notifier) *Syncer {
	asm := assembler.New(nil, assembler.Options{Source: "MIT Technology Review", DefaultAuthor: "Redacción"}, nil)
	return New(f, asm, social, st, n, nil)
}

func countDocs(t *testing.T, st store.Store) int {
	t.Helper()
	n := 0
	require.NoError(t, st.Scan(context.Background(), store.ScanOptions{}, func(domain.Document) error { n++; return nil }))
	return n
}

func TestPerformSyncMergesInsteadOfDuplicating(t *testing.T) {
	st := openStore(t)
	social := &countingSocial{post: "Post de LinkedIn"}
	notifier := &recordingNotifier{}
	ctx := context.Background()

	first := &fakeFetcher{entries: []string{`{"id": 1234, "title": "First title", "dek": "Dek", "word_count": 201}`}}
	n, err := newSyncer(first, social, st, notifier).PerformSync(ctx, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 5, first.limit)

	second := &fakeFetcher{entries: []string{`{"id": "1234", "title": "Second title", "dek": "Dek"}`}}
	n, err = newSyncer(second, social, st, notifier).PerformSync(ctx, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, 1, countDocs(t, st))
	doc, err := st.FindByOriginalID(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, "Second title", doc.String(domain.FieldTitle))
	assert.Equal(t, "5 min", doc.String(domain.FieldReadingTime))
	assert.Equal(t, "Post de LinkedIn", doc.String(domain.FieldLinkedIn))

	// The stored post is kept, so the generator ran only for the first pass.
	assert.Equal(t, 1, social.calls)

	require.Len(t, notifier.events, 2)
	assert.Equal(t, publishers.EventArticleCreated, notifier.events[0].Type)
	assert.Equal(t, publishers.EventArticleUpdated, notifier.events[1].Type)
	assert.Equal(t, doc.ID, notifier.events[1].DocumentID)
	assert.Equal(t, "Second title", notifier.events[1].Title)
}

func TestPerformSyncRetriesMissingSocialPost(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	_, err := st.Create(ctx, map[string]any{domain.FieldOriginalID: "7", domain.FieldTitle: "Old"})
	require.NoError(t, err)

	social := &countingSocial{post: "Nuevo"}
	n, err := newSyncer(&fakeFetcher{entries: []string{`{"id": 7, "title": "T"}`}}, social, st, nil).PerformSync(ctx, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, social.calls)

	doc, err := st.FindByOriginalID(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Nuevo", doc.String(domain.FieldLinkedIn))
}

func TestPerformSyncNoEntries(t *testing.T) {
	f := &fakeFetcher{err: providers.ErrNoEntries}
	n, err := newSyncer(f, nil, openStore(t), nil).PerformSync(context.Background(), 5, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPerformSyncFetchFailure(t *testing.T) {
	f := &fakeFetcher{err: errors.New("status 502")}
	_, err := newSyncer(f, nil, openStore(t), nil).PerformSync(context.Background(), 5, 0)
	assert.ErrorContains(t, err, "status 502")
}

func TestPerformSyncSkipsMalformedEntries(t *testing.T) {
	st := openStore(t)
	f := &fakeFetcher{entries: []string{
		`"not an object"`,
		`{"title": "no id"}`,
		`{"id": 1, "title": "ok", "body": [{"type": "video", "data": {}}]}`,
		`{"id": 2, "title": "ok too"}`,
	}}
	n, err := newSyncer(f, nil, st, nil).PerformSync(context.Background(), 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, countDocs(t, st))
}

func TestPerformSyncStoreFailureAborts(t *testing.T) {
	st := failingCreateStore{Store: openStore(t)}
	f := &fakeFetcher{entries: []string{`{"id": 1, "title": "a"}`, `{"id": 2, "title": "b"}`}}
	n, err := newSyncer(f, nil, st, nil).PerformSync(context.Background(), 5, 0)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Zero(t, n)
}

func TestPerformSyncIgnoresNotifyFailure(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("webhook down")}
	f := &fakeFetcher{entries: []string{`{"id": 1, "title": "a"}`}}
	n, err := newSyncer(f, nil, openStore(t), notifier).PerformSync(context.Background(), 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, notifier.events, 1)
}

func TestPerformSyncHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFetcher{entries: []string{`{"id": 1}`}}
	_, err := newSyncer(f, nil, openStore(t), nil).PerformSync(ctx, 5, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSocialPostTimestamp(t *testing.T) {
	st := openStore(t)
	s := newSyncer(&fakeFetcher{entries: []string{`{"id": 9, "title": "a"}`}}, &countingSocial{post: "p"}, st, nil)
	s.now = func() time.Time { return time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC) }
	_, err := s.PerformSync(context.Background(), 5, 0)
	require.NoError(t, err)

	doc, err := st.FindByOriginalID(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-05T08:00:00Z", doc.String(domain.FieldSocialGeneratedAt))
}
