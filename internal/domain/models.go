package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Domain contains core models and interfaces.

// Fixed values stamped on every ingested article.
const (
	StatusPublished = "published"
	LanguageES      = "es"
)

// EntryID is the upstream identifier; the API sends it either as a number or a string.
type EntryID string

// UnmarshalJSON accepts JSON strings and numbers.
func (id *EntryID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode entry id: %w", err)
		}
		*id = EntryID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode entry id: %w", err)
	}
	*id = EntryID(n.String())
	return nil
}

// String returns the identifier as stored in originalId.
func (id EntryID) String() string { return string(id) }

// Timestamp is an upstream publish time that tolerates the formats seen in the API.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON parses known layouts and leaves the zero time for anything else.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '"' {
		// epoch milliseconds
		if ms, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
		}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	t.Time = parseTimestamp(raw)
	return nil
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// Block types emitted by the upstream body.
const (
	BlockHTML  = "html"
	BlockImage = "image"
)

// Block is one typed unit of an upstream article body. Data is decoded lazily
// so that block types this system does not know never fail the entry.
type Block struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ImageData is the payload of an image block.
type ImageData struct {
	URL     string `json:"url"`
	Alt     string `json:"alt"`
	Caption string `json:"caption"`
}

// HTML returns the fragment of an html block.
func (b Block) HTML() (string, bool) {
	if b.Type != BlockHTML || len(b.Data) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(b.Data, &s); err != nil {
		return "", false
	}
	return s, s != ""
}

// Image returns the payload of an image block with a usable url.
func (b Block) Image() (ImageData, bool) {
	if b.Type != BlockImage || len(b.Data) == 0 {
		return ImageData{}, false
	}
	var img ImageData
	if err := json.Unmarshal(b.Data, &img); err != nil {
		return ImageData{}, false
	}
	return img, strings.TrimSpace(img.URL) != ""
}

// Topic is an upstream taxonomy term.
type Topic struct {
	Name string `json:"name"`
}

// ImageRef is any upstream object carrying an image url.
type ImageRef struct {
	URL string `json:"url"`
}

// Topper is the hero section of an upstream entry.
type Topper struct {
	Image *ImageRef `json:"image"`
}

// Attachments holds upstream attachment references.
type Attachments struct {
	Thumbnail *ImageRef `json:"thumbnail"`
}

// Byline is one author credit.
type Byline struct {
	Text string `json:"text"`
}

// UpstreamEntry is one article as returned by the content API, pre-normalization.
type UpstreamEntry struct {
	ID          EntryID      `json:"id"`
	Title       string       `json:"title"`
	Dek         string       `json:"dek"`
	Body        []Block      `json:"body"`
	Topics      []Topic      `json:"topics"`
	Images      []ImageRef   `json:"images"`
	Topper      *Topper      `json:"topper"`
	Attachments *Attachments `json:"attachments"`
	Byline      []Byline     `json:"byline"`
	Published   Timestamp    `json:"published"`
	WordCount   *int         `json:"word_count"`
}

// SocialPosts holds generated promotional copy.
type SocialPosts struct {
	LinkedIn    string
	GeneratedAt time.Time
}

// Article is the normalized record owned by this system.
type Article struct {
	OriginalID  string
	Title       string
	Excerpt     string
	Content     string
	Category    string
	Tags        []string
	Author      string
	Date        string
	ImageURL    *string
	ReadingTime string
	Status      string
	Language    string
	Source      string
	SocialPosts *SocialPosts
}

// HasSocialPost reports whether a LinkedIn post was already generated.
func (a Article) HasSocialPost() bool {
	return a.SocialPosts != nil && strings.TrimSpace(a.SocialPosts.LinkedIn) != ""
}
