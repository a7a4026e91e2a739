// Package providers fetches raw article entries from upstream content APIs.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/techreview-es/mgz-harvester/pkg/httpclient"
)

// ProviderTypeMITTREntries identifies the MIT Technology Review entries API.
const ProviderTypeMITTREntries = "mittr_entries"

// ErrNoEntries is returned when a response carries no entries array.
var ErrNoEntries = errors.New("no entries in upstream response")

// HTTPClient is the transport used by fetchers.
type HTTPClient = httpclient.Client

// Provider describes one upstream source.
type Provider struct {
	ID        string
	Type      string
	SourceURL string
	UserAgent string
	Headers   map[string]string
}

// Fetcher pages through an upstream source. Entries are returned undecoded so
// a malformed entry can be skipped without losing its siblings.
type Fetcher interface {
	ID() string
	FetchEntries(ctx context.Context, limit, offset int) ([]json.RawMessage, error)
}

// DefaultHTTPClient returns the client used when none is supplied.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(30 * time.Second) }

// Headers builds the request headers for a provider.
func Headers(cfg Provider) map[string]string {
	headers := map[string]string{"Accept": "application/json"}
	if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
		headers["User-Agent"] = ua
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return headers
}
