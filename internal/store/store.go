// Package store persists normalized articles as schemaless documents keyed by
// a store-assigned id and indexed by their upstream originalId.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/techreview-es/mgz-harvester/internal/domain"
)

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateOriginalID is returned when creating a second document for the same upstream id.
	ErrDuplicateOriginalID = errors.New("a document with this originalId already exists")
)

// ScanOptions bounds and orders a collection scan.
type ScanOptions struct {
	// Limit of zero means no limit.
	Limit      int
	OrderBy    string
	Descending bool
}

// Store is a document collection of articles.
type Store interface {
	// FindByOriginalID returns the first document whose originalId equals id.
	FindByOriginalID(ctx context.Context, originalID string) (domain.Document, error)
	// Create inserts a new document and returns its id.
	Create(ctx context.Context, data map[string]any) (string, error)
	// Merge writes data into an existing document, merging nested maps and
	// leaving fields absent from data untouched.
	Merge(ctx context.Context, id string, data map[string]any) error
	Get(ctx context.Context, id string) (domain.Document, error)
	// Scan calls fn for each document. Returning an error from fn stops the scan.
	Scan(ctx context.Context, opts ScanOptions, fn func(domain.Document) error) error
	// Update sets the given dotted field paths on an existing document.
	Update(ctx context.Context, id string, updates map[string]any) error
	NewBatch() Batch
	Close() error
}

// Batch groups field updates that are committed atomically.
type Batch interface {
	Update(id string, updates map[string]any)
	Len() int
	Commit(ctx context.Context) error
}

// mergeMaps merges src into dst recursively and returns dst.
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = mergeMaps(dm, sm)
				continue
			}
			dst[k] = mergeMaps(nil, sm)
			continue
		}
		dst[k] = v
	}
	return dst
}

// setPath assigns value at a dotted path, creating intermediate maps.
func setPath(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// resolveTimestamps replaces ServerTimestamp sentinels with now.
func resolveTimestamps(data map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case map[string]any:
			out[k] = resolveTimestamps(val, now)
		default:
			if domain.IsServerTimestamp(v) {
				out[k] = now
				continue
			}
			out[k] = v
		}
	}
	return out
}

// sortDocuments orders docs by a field, treating timestamps and their RFC 3339
// encodings as times. Documents missing the field sort last.
func sortDocuments(docs []domain.Document, field string, desc bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		vi, oki := docs[i].Value(field)
		vj, okj := docs[j].Value(field)
		if !oki || vi == nil {
			return false
		}
		if !okj || vj == nil {
			return true
		}
		c := compareValues(vi, vj)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	ta, aok := asTime(a)
	tb, bok := asTime(b)
	if aok && bok {
		return ta.Compare(tb)
	}
	fa, aok := a.(float64)
	fb, bok := b.(float64)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}
