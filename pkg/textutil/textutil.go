// Package textutil cleans article text and HTML that was corrupted on its way
// into the store. Every exported function is deterministic and idempotent:
// applying it to its own output returns that output unchanged, which is what
// lets the repair jobs run repeatedly without producing further writes.
package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// excerptSentenceFloor is the earliest byte offset a sentence end may be
	// used as an excerpt cut point.
	excerptSentenceFloor = 20
	// truncateMinRatio rejects sentence cut points in the first 40% of the limit.
	truncateMinRatio = 0.4
	ellipsis         = "..."
	// maxPasses bounds the fixed-point loops below.
	maxPasses = 64
)

var (
	tagRe = regexp.MustCompile(`<[^>]*>`)

	// Literal escape artifacts left by earlier exports.
	escapedNewlineRe    = regexp.MustCompile(`(?:\\r\\n|\\n|\\r)`)
	escapedUnderscoreRe = regexp.MustCompile(`\\_`)
	// "rn" runs are CRLF pairs that lost their backslashes.
	rnRunRe = regexp.MustCompile(`(?:rn){2,}`)
	// A lone "rn" only counts as a newline where a boundary is obvious: after
	// sentence punctuation or a tag and before a capital, an opening mark or a tag.
	rnBoundaryRe = regexp.MustCompile(`([.!?"”>:;])rn([\p{Lu}¿¡"“<])`)
	// A trailing "rn" after sentence punctuation, before a line break or the end.
	danglingRnRe = regexp.MustCompile(`([.!?"”>:;])rn(\s|$)`)
	unicodeEscRe = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	// A newline between two lowercase letters splits a sentence in half.
	brokenLineRe = regexp.MustCompile(`(\p{Ll})[ \t]*\n\s*(\p{Ll})`)
	// A newline between a sentence end and a capital is a real paragraph break.
	paragraphBreakRe = regexp.MustCompile(`([.!?"”:])[ \t]*\n\s*([\p{Lu}¿¡"“])`)
	blankLineRe      = regexp.MustCompile(`\n\s*\n`)
	emptyParagraphRe = regexp.MustCompile(`(?i)<p(?:\s[^>]*)?>\s*</p>`)
	paragraphTagRe   = regexp.MustCompile(`(?i)<p[\s>]`)
	blockStartRe     = regexp.MustCompile(`(?i)^<(?:p|h[1-6]|ul|ol|li|blockquote|div|section|article|aside|table|figure|hr|pre|iframe)[\s>/]`)

	slugSpaceRe   = regexp.MustCompile(`\s+`)
	slugInvalidRe = regexp.MustCompile(`[^\w-]+`)
	slugDashesRe  = regexp.MustCompile(`-{2,}`)
)

// StripTags removes anything that looks like an HTML tag.
func StripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

// untilStable applies fn until its output stops changing.
func untilStable(s string, fn func(string) string) string {
	for range maxPasses {
		next := fn(s)
		if next == s {
			return s
		}
		s = next
	}
	return s
}

// CleanExcerpt turns a stored or upstream excerpt into plain text that ends on
// a sentence boundary.
func CleanExcerpt(text string) string {
	return untilStable(text, cleanExcerptPass)
}

func cleanExcerptPass(text string) string {
	s := untilStable(text, func(s string) string {
		s = StripTags(s)
		s = escapedNewlineRe.ReplaceAllString(s, " ")
		s = escapedUnderscoreRe.ReplaceAllString(s, " ")
		s = rnRunRe.ReplaceAllString(s, " ")
		s = rnBoundaryRe.ReplaceAllString(s, "$1 $2")
		s = whitespaceRe.ReplaceAllString(s, " ")
		return strings.TrimSpace(s)
	})
	return untilStable(s, fixSentenceEnd)
}

func endsWithEllipsis(s string) bool {
	return strings.HasSuffix(s, "...") || strings.HasSuffix(s, "…")
}

func endsTerminal(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	switch r {
	case '.', '!', '?', '”', '"':
		return true
	}
	return false
}

// fixSentenceEnd cuts a dangling tail back to the last sentence end found past
// the floor. Text with no usable sentence end keeps everything but its
// trailing dots.
func fixSentenceEnd(s string) string {
	if s == "" || (endsTerminal(s) && !endsWithEllipsis(s)) {
		return s
	}
	trimmed := strings.TrimSpace(strings.TrimRight(s, ".…"))
	cut := lastSentenceEnd(trimmed)
	if cut <= excerptSentenceFloor {
		return trimmed
	}
	return trimmed[:cut]
}

// lastSentenceEnd returns the byte offset just past the last ". ! ?" in s,
// including an immediately following closing quote, or -1.
func lastSentenceEnd(s string) int {
	idx := strings.LastIndexAny(s, ".!?")
	if idx < 0 {
		return -1
	}
	end := idx + 1
	if r, size := utf8.DecodeRuneInString(s[end:]); r == '"' || r == '”' {
		end += size
	}
	return end
}

// TruncateToSentence shortens text to at most maxLength runes, preferring to
// cut after a sentence end. When no sentence end lies past 40% of the limit it
// hard-cuts and appends "...", counted within the limit.
func TruncateToSentence(text string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}

	head := firstRunes(text, maxLength)
	cut := -1
	for _, mark := range []string{". ", "! ", "? "} {
		if i := strings.LastIndex(head, mark); i > cut {
			cut = i
		}
	}
	if cut >= 0 && float64(utf8.RuneCountInString(head[:cut+1])) > truncateMinRatio*float64(maxLength) {
		return head[:cut+1]
	}

	if maxLength <= len(ellipsis) {
		return firstRunes(text, maxLength)
	}
	hard := strings.TrimRightFunc(firstRunes(text, maxLength-len(ellipsis)), unicode.IsSpace)
	return hard + ellipsis
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// CleanContent repairs newline and escape artifacts in stored article HTML and
// rebuilds paragraph markup when none survived.
func CleanContent(html string) string {
	return untilStable(html, cleanContentPass)
}

// cleanContentPass wraps inside the fixed-point loop, so markup produced by
// the wrap is normalized again before the result is returned.
func cleanContentPass(s string) string {
	s = untilStable(s, normalizeContent)
	if s == "" || paragraphTagRe.MatchString(s) {
		return s
	}
	return wrapParagraphs(s)
}

// WrapParagraphs wraps plain text chunks in <p> tags, leaving text that
// already has paragraphs alone. Unlike CleanContent it does not rewrite
// newlines inside the text.
func WrapParagraphs(text string) string {
	s := strings.TrimSpace(text)
	if s == "" || paragraphTagRe.MatchString(s) {
		return s
	}
	return wrapParagraphs(s)
}

func normalizeContent(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = escapedNewlineRe.ReplaceAllString(s, "\n")
	s = escapedUnderscoreRe.ReplaceAllString(s, " ")
	s = rnRunRe.ReplaceAllString(s, "\n\n")
	s = rnBoundaryRe.ReplaceAllString(s, "$1\n$2")
	s = danglingRnRe.ReplaceAllString(s, "$1$2")
	s = decodeUnicodeEscapes(s)
	s = brokenLineRe.ReplaceAllString(s, "$1 $2")
	s = paragraphBreakRe.ReplaceAllString(s, "$1\n\n$2")
	s = emptyParagraphRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func decodeUnicodeEscapes(s string) string {
	return unicodeEscRe.ReplaceAllStringFunc(s, func(m string) string {
		code, err := strconv.ParseUint(m[2:], 16, 32)
		if err != nil {
			return m
		}
		r := rune(code)
		// A decoded backslash would start a new escape on the next pass.
		if !utf8.ValidRune(r) || r == '\\' {
			return m
		}
		return string(r)
	})
}

func wrapParagraphs(s string) string {
	var b strings.Builder
	for _, chunk := range blankLineRe.Split(s, -1) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		if blockStartRe.MatchString(chunk) || strings.HasPrefix(chunk, "</") {
			b.WriteString(chunk)
			continue
		}
		b.WriteString("<p>")
		b.WriteString(chunk)
		b.WriteString("</p>")
	}
	return b.String()
}

// Slugify builds a URL path segment: lowercase ASCII words joined by hyphens.
func Slugify(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		s = strings.ToLower(text)
	}
	s = slugSpaceRe.ReplaceAllString(s, "-")
	s = slugInvalidRe.ReplaceAllString(s, "")
	s = slugDashesRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
