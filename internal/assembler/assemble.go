// Package assembler turns upstream entries into normalized Spanish articles.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/techreview-es/mgz-harvester/internal/domain"
	"github.com/techreview-es/mgz-harvester/internal/logger"
	"github.com/techreview-es/mgz-harvester/pkg/textutil"
)

const (
	untitled           = "Sin título"
	defaultCategory    = "General"
	defaultReadingMins = 5
	wordsPerMinute     = 200
)

// ErrInvalidEntry is returned for entries that cannot identify an article.
var ErrInvalidEntry = errors.New("upstream entry has no identifier")

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// Options carries the provenance constants stamped on every article.
type Options struct {
	Source        string
	DefaultAuthor string
	Location      *time.Location
	// Now is used when an entry has no publication date.
	Now func() time.Time
}

// Assembler builds domain.Article values from upstream entries.
type Assembler struct {
	tr   Translator
	opts Options
	log  logger.Logger
}

// New returns an Assembler.
func New(tr Translator, opts Options, log logger.Logger) *Assembler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assembler{tr: tr, opts: opts, log: logger.Ensure(log)}
}

// Assemble normalizes one entry. Each field degrades on its own; only an
// entry without an id is rejected.
func (a *Assembler) Assemble(ctx context.Context, entry domain.UpstreamEntry) (domain.Article, error) {
	id := strings.TrimSpace(entry.ID.String())
	if id == "" {
		return domain.Article{}, ErrInvalidEntry
	}

	title := firstNonEmpty(a.translate(ctx, strings.TrimSpace(entry.Title)), entry.Title, untitled)

	rawExcerpt := strings.TrimSpace(textutil.StripTags(entry.Dek))
	translatedExcerpt := a.translate(ctx, rawExcerpt)
	// Stored as received; sentence-end correction belongs to the repair jobs.
	excerpt := firstNonEmpty(translatedExcerpt, rawExcerpt)

	// Rendered HTML is kept verbatim. Only the plain-text fallback is wrapped.
	content := strings.TrimSpace(RenderBody(ctx, a.tr, entry.Body))
	if content == "" {
		content = textutil.WrapParagraphs(excerpt)
	}

	tags := topicNames(entry.Topics)
	category := defaultCategory
	if len(tags) > 0 {
		category = tags[0]
	}

	article := domain.Article{
		OriginalID:  id,
		Title:       title,
		Excerpt:     excerpt,
		Content:     content,
		Category:    category,
		Tags:        tags,
		Author:      a.author(entry.Byline),
		Date:        a.date(entry.Published),
		ImageURL:    ResolveImage(entry),
		ReadingTime: ReadingTime(entry.WordCount),
		Status:      domain.StatusPublished,
		Language:    domain.LanguageES,
		Source:      a.opts.Source,
	}

	a.log.DebugObj("assembled article", "article", map[string]any{
		"originalId": id,
		"title":      title,
		"hasImage":   article.ImageURL != nil,
		"bodyBlocks": len(entry.Body),
	})
	return article, nil
}

func (a *Assembler) translate(ctx context.Context, text string) string {
	if a.tr == nil {
		return text
	}
	return strings.TrimSpace(a.tr.Translate(ctx, text))
}

func (a *Assembler) author(bylines []domain.Byline) string {
	if len(bylines) > 0 {
		if name := strings.TrimSpace(textutil.StripTags(bylines[0].Text)); name != "" {
			return name
		}
	}
	return a.opts.DefaultAuthor
}

func (a *Assembler) date(published domain.Timestamp) string {
	t := published.Time
	if t.IsZero() {
		t = a.opts.Now()
	}
	return FormatSpanishDate(t.In(a.opts.Location))
}

// FormatSpanishDate renders t as "05 de marzo de 2025".
func FormatSpanishDate(t time.Time) string {
	return fmt.Sprintf("%02d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}

// ReadingTime estimates reading time at 200 words per minute, defaulting to
// five minutes when the word count is unknown.
func ReadingTime(wordCount *int) string {
	mins := defaultReadingMins
	if wordCount != nil && *wordCount > 0 {
		mins = (*wordCount + wordsPerMinute - 1) / wordsPerMinute
	}
	return fmt.Sprintf("%d min", mins)
}

func topicNames(topics []domain.Topic) []string {
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		if name := strings.TrimSpace(t.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
