package assembler

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/techreview-es/mgz-harvester/internal/domain"
)

const figureTemplate = `<figure class="my-8"><img src="%s" alt="%s" class="w-full rounded-xl" /><figcaption class="text-xs text-center text-gray-500 mt-2">%s</figcaption></figure>`

// Translator is the translation capability the assembler depends on.
type Translator interface {
	Translate(ctx context.Context, text string) string
}

// RenderBody concatenates the HTML of the body blocks in order. html blocks
// are translated, image blocks become figures and any other block type is
// skipped.
func RenderBody(ctx context.Context, tr Translator, blocks []domain.Block) string {
	var b strings.Builder
	for _, block := range blocks {
		switch block.Type {
		case domain.BlockHTML:
			fragment, ok := block.HTML()
			if !ok {
				continue
			}
			if tr != nil {
				fragment = tr.Translate(ctx, fragment)
			}
			b.WriteString(fragment)
		case domain.BlockImage:
			img, ok := block.Image()
			if !ok {
				continue
			}
			b.WriteString(renderFigure(img))
		}
	}
	return b.String()
}

// renderFigure escapes the attribute values; the caption is upstream HTML and
// is embedded as is.
func renderFigure(img domain.ImageData) string {
	return fmt.Sprintf(figureTemplate,
		html.EscapeString(strings.TrimSpace(img.URL)),
		html.EscapeString(img.Alt),
		img.Caption,
	)
}
