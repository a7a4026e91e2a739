package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// entriesFetcher reads the paged JSON entries endpoint.
type entriesFetcher struct {
	client HTTPClient
	cfg    Provider
}

// NewEntriesFetcher builds a Fetcher for an entries endpoint of the form
// {base}?limit=&offset=&sort=recent.
func NewEntriesFetcher(client HTTPClient, cfg Provider) (Fetcher, error) {
	if strings.TrimSpace(cfg.SourceURL) == "" {
		return nil, fmt.Errorf("provider %q source_url is empty", cfg.ID)
	}
	if _, err := url.Parse(cfg.SourceURL); err != nil {
		return nil, fmt.Errorf("provider %q source_url: %w", cfg.ID, err)
	}
	if client == nil {
		client = DefaultHTTPClient()
	}
	if cfg.Type == "" {
		cfg.Type = ProviderTypeMITTREntries
	}
	return &entriesFetcher{client: client, cfg: cfg}, nil
}

func (f *entriesFetcher) ID() string {
	return f.cfg.ID
}

// FetchEntries returns one page of raw entries, most recent first.
func (f *entriesFetcher) FetchEntries(ctx context.Context, limit, offset int) ([]json.RawMessage, error) {
	pageURL, err := entriesURL(f.cfg.SourceURL, limit, offset)
	if err != nil {
		return nil, err
	}

	raw, err := fetchBody(ctx, f.client, pageURL, f.cfg.ID, Headers(f.cfg))
	if err != nil {
		return nil, err
	}
	return parseEntries(raw)
}

func entriesURL(base string, limit, offset int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse entries url: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("sort", "recent")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseEntries extracts the "entries" array. A missing, null or non-array
// value yields ErrNoEntries; a body that is not a JSON object is an error.
func parseEntries(raw []byte) ([]json.RawMessage, error) {
	var envelope struct {
		Entries json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode entries response: %w (body: %s)", err, responseSnippet(raw))
	}

	trimmed := bytes.TrimSpace(envelope.Entries)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNoEntries
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, ErrNoEntries
	}
	return entries, nil
}

// responseSnippet returns a truncated snippet of the response body for logging.
func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// fetchBody retrieves url and fails on any non-200 status.
func fetchBody(ctx context.Context, client HTTPClient, url, providerID string, headers map[string]string) ([]byte, error) {
	resp, err := client.Get(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s entries: %w", providerID, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s entries returned status %d body: %s", providerID, resp.StatusCode(), responseSnippet(body))
	}

	return body, nil
}
