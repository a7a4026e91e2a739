package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techreview-es/mgz-harvester/pkg/httpclient"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc) Fetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f, err := NewEntriesFetcher(httpclient.NewRestyClient(5*time.Second), Provider{
		ID:        "mittr",
		SourceURL: srv.URL + "/wp-json/mittr/v1/entries",
		UserAgent: "mgz-test",
	})
	require.NoError(t, err)
	return f
}

func TestFetchEntriesQueryAndHeaders(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/mittr/v1/entries", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "10", r.URL.Query().Get("offset"))
		assert.Equal(t, "recent", r.URL.Query().Get("sort"))
		assert.Equal(t, "mgz-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"entries": [{"id": 1}, {"id": "2"}, "garbage"]}`))
	})

	entries, err := f.FetchEntries(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.JSONEq(t, `{"id": 1}`, string(entries[0]))
	assert.JSONEq(t, `"garbage"`, string(entries[2]))
}

func TestFetchEntriesMissingArray(t *testing.T) {
	for _, body := range []string{`{}`, `{"entries": null}`, `{"entries": {"id": 1}}`, `{"entries": "nope"}`} {
		f := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		_, err := f.FetchEntries(context.Background(), 5, 0)
		assert.True(t, errors.Is(err, ErrNoEntries), "body %s: %v", body, err)
	}
}

func TestFetchEntriesErrors(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	_, err := f.FetchEntries(context.Background(), 5, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream down")
	assert.False(t, errors.Is(err, ErrNoEntries))

	f = newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	})
	_, err = f.FetchEntries(context.Background(), 5, 0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoEntries))
}

func TestNewEntriesFetcherValidates(t *testing.T) {
	_, err := NewEntriesFetcher(nil, Provider{ID: "x"})
	assert.Error(t, err)
}

func TestHeadersMerge(t *testing.T) {
	h := Headers(Provider{UserAgent: "ua", Headers: map[string]string{"X-Trace": "1"}})
	assert.Equal(t, "ua", h["User-Agent"])
	assert.Equal(t, "1", h["X-Trace"])
	assert.Equal(t, "application/json", h["Accept"])
}

func TestResponseSnippet(t *testing.T) {
	assert.Equal(t, "<empty>", responseSnippet(nil))
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, responseSnippet(long), 515)
}
