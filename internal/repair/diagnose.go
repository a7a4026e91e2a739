package repair

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/techreview-es/mgz-harvester/internal/domain"
	"github.com/techreview-es/mgz-harvester/internal/store"
)

const (
	// DefaultDiagnoseLimit is how many recent articles Diagnose looks at.
	DefaultDiagnoseLimit = 50
	minContentLength     = 100
	previewLength        = 1000
)

// Issues reported by Diagnose.
const (
	IssueEnglishTitle = "POTENTIALLY ENGLISH"
	IssueMissingImage = "MISSING IMAGE"
	IssueEmptyContent = "EMPTY CONTENT"
)

// Common short English words; a Spanish title rarely contains them.
var englishTitleRe = regexp.MustCompile(`(?i)(^|\s)(the|and|how|with)\s`)

// Finding is one article with at least one issue.
type Finding struct {
	DocID      string
	OriginalID string
	Title      string
	Issues     []string
	Stats      ContentStats
}

// Report is the outcome of Diagnose.
type Report struct {
	Scanned  int
	Findings []Finding
}

// ContentStats describes the markup of an article body.
type ContentStats struct {
	Paragraphs int
	Figures    int
	Images     int
	// TextLength counts the runes of visible text.
	TextLength int
}

// Diagnose checks the most recently updated articles for untranslated
// titles, missing images and empty content.
func Diagnose(ctx context.Context, st store.Store, limit int) (Report, error) {
	if limit <= 0 {
		limit = DefaultDiagnoseLimit
	}
	var rep Report
	err := st.Scan(ctx, store.ScanOptions{
		Limit:      limit,
		OrderBy:    domain.FieldUpdatedAt,
		Descending: true,
	}, func(doc domain.Document) error {
		rep.Scanned++
		content := doc.String(domain.FieldContent)

		var issues []string
		if englishTitleRe.MatchString(doc.String(domain.FieldTitle)) {
			issues = append(issues, IssueEnglishTitle)
		}
		if doc.String(domain.FieldImageURL) == "" {
			issues = append(issues, IssueMissingImage)
		}
		if utf8.RuneCountInString(content) < minContentLength {
			issues = append(issues, IssueEmptyContent)
		}
		if len(issues) == 0 {
			return nil
		}

		stats, _ := AnalyzeContent(content)
		rep.Findings = append(rep.Findings, Finding{
			DocID:      doc.ID,
			OriginalID: doc.String(domain.FieldOriginalID),
			Title:      doc.String(domain.FieldTitle),
			Issues:     issues,
			Stats:      stats,
		})
		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("diagnose: %w", err)
	}
	return rep, nil
}

// Inspection is a closer look at one stored article.
type Inspection struct {
	DocID   string
	Title   string
	Preview string
	Stats   ContentStats
}

// HasParagraphs reports whether the content has any <p> element.
func (i Inspection) HasParagraphs() bool { return i.Stats.Paragraphs > 0 }

// Inspect loads one document and summarizes its content.
func Inspect(ctx context.Context, st store.Store, docID string) (Inspection, error) {
	doc, err := st.Get(ctx, docID)
	if err != nil {
		return Inspection{}, err
	}
	content := doc.String(domain.FieldContent)
	stats, err := AnalyzeContent(content)
	if err != nil {
		return Inspection{}, err
	}
	return Inspection{
		DocID:   doc.ID,
		Title:   doc.String(domain.FieldTitle),
		Preview: preview(content, previewLength),
		Stats:   stats,
	}, nil
}

// AnalyzeContent parses an HTML fragment and counts its structure.
func AnalyzeContent(content string) (ContentStats, error) {
	if strings.TrimSpace(content) == "" {
		return ContentStats{}, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ContentStats{}, fmt.Errorf("parse html: %w", err)
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	return ContentStats{
		Paragraphs: doc.Find("p").Length(),
		Figures:    doc.Find("figure").Length(),
		Images:     doc.Find("img").Length(),
		TextLength: utf8.RuneCountInString(text),
	}, nil
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
