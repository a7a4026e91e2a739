package domain

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Field names of a stored article.
const (
	FieldOriginalID  = "originalId"
	FieldTitle       = "title"
	FieldExcerpt     = "excerpt"
	FieldContent     = "content"
	FieldCategory    = "category"
	FieldTags        = "tags"
	FieldAuthor      = "author"
	FieldDate        = "date"
	FieldImageURL    = "imageUrl"
	FieldReadingTime = "readingTime"
	FieldStatus      = "status"
	FieldLanguage    = "language"
	FieldSource      = "source"
	FieldSocialPosts = "socialPosts"
	FieldUpdatedAt   = "updatedAt"
	FieldMigratedAt  = "migratedAt"
	FieldCleanedAt   = "cleanedAt"

	FieldLinkedIn          = "socialPosts.linkedin"
	FieldSocialGeneratedAt = "socialPosts.generatedAt"
	socialLinkedInKey      = "linkedin"
	socialGeneratedAtKey   = "generatedAt"
)

type serverTimestamp struct{}

// ServerTimestamp marks a field the store fills with its own write time.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Record converts the article into the field map written to the store.
// socialPosts is left out when nothing was generated so a merge keeps any
// post already stored.
func (a Article) Record() map[string]any {
	rec := map[string]any{
		FieldOriginalID:  a.OriginalID,
		FieldTitle:       a.Title,
		FieldExcerpt:     a.Excerpt,
		FieldContent:     a.Content,
		FieldCategory:    a.Category,
		FieldTags:        a.Tags,
		FieldAuthor:      a.Author,
		FieldDate:        a.Date,
		FieldImageURL:    a.ImageURL,
		FieldReadingTime: a.ReadingTime,
		FieldStatus:      a.Status,
		FieldLanguage:    a.Language,
		FieldSource:      a.Source,
		FieldUpdatedAt:   ServerTimestamp,
		FieldMigratedAt:  ServerTimestamp,
	}
	if a.HasSocialPost() {
		rec[FieldSocialPosts] = map[string]any{
			socialLinkedInKey:    a.SocialPosts.LinkedIn,
			socialGeneratedAtKey: a.SocialPosts.GeneratedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	if len(a.Tags) == 0 {
		rec[FieldTags] = []string{}
	}
	return Nullify(rec)
}

// Nullify rewrites typed nil values (nil pointers, maps, slices, funcs) into
// an untyped nil so that no store ever receives a placeholder for "absent".
// Non-nil pointers are dereferenced.
func Nullify(rec map[string]any) map[string]any {
	for k, v := range rec {
		rec[k] = nullValue(v)
	}
	return rec
}

func nullValue(v any) any {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return Nullify(m)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return nullValue(rv.Elem().Interface())
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}

// Document is a stored article: its store-assigned id plus raw fields.
type Document struct {
	ID   string
	Data map[string]any
}

// Value resolves a dotted field path such as "socialPosts.linkedin".
func (d Document) Value(path string) (any, bool) {
	var cur any = d.Data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the field as a string; absent, null and non-string values yield "".
func (d Document) String(path string) string {
	v, ok := d.Value(path)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}

// Strings returns a string-slice field, tolerating the []any shape decoders produce.
func (d Document) Strings(path string) []string {
	v, ok := d.Value(path)
	if !ok || v == nil {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
