// Package enrich generates promotional copy for stored articles.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/techreview-es/mgz-harvester/internal/domain"
	"github.com/techreview-es/mgz-harvester/internal/logger"
	"github.com/techreview-es/mgz-harvester/pkg/generator"
	"github.com/techreview-es/mgz-harvester/pkg/textutil"
)

// contentFragmentRunes caps how much body text goes into the prompt.
const contentFragmentRunes = 1000

const socialPromptTemplate = `Actúa como un experto en redes sociales para una revista de tecnología de prestigio (MIT Technology Review en español).
Tu tarea es crear un post de LinkedIn atractivo basado en el siguiente artículo:

TÍTULO: %s
EXTRACTO: %s
CONTENIDO (Fragmento): %s

REQUISITOS DEL POST:
- Lenguaje profesional pero cercano y provocador.
- Menciona por qué esta tecnología o tendencia es importante ahora mismo.
- Usa máximo 3 hashtags relevantes.
- NO incluyas ningún enlace.
- El post debe tener entre 100 y 250 palabras.
- Usa un tono que fomente el debate o la reflexión.
- Escribe el post en español de España.

Responde ÚNICAMENTE con el texto del post, sin explicaciones ni introducciones.`

// SocialPostGenerator writes LinkedIn copy for an article.
type SocialPostGenerator struct {
	gen generator.Generator
	log logger.Logger
}

// NewSocialPostGenerator returns a generator backed by gen. A nil gen always
// falls back to the excerpt.
func NewSocialPostGenerator(gen generator.Generator, log logger.Logger) *SocialPostGenerator {
	return &SocialPostGenerator{gen: gen, log: logger.Ensure(log)}
}

// Generate returns the post text, or the article excerpt when generation
// fails. Callers decide whether a post is needed at all.
func (g *SocialPostGenerator) Generate(ctx context.Context, article domain.Article) string {
	if g == nil || g.gen == nil {
		return strings.TrimSpace(article.Excerpt)
	}

	out, err := g.gen.Generate(ctx, BuildPrompt(article))
	if err == nil {
		if post := strings.TrimSpace(out); post != "" {
			return post
		}
	}
	if err != nil {
		g.log.WarnObj("social post generation failed, using excerpt", "social", map[string]any{
			"originalId": article.OriginalID,
			"error":      err.Error(),
		})
	}
	return strings.TrimSpace(article.Excerpt)
}

// BuildPrompt renders the social post prompt for an article.
func BuildPrompt(article domain.Article) string {
	fragment := strings.TrimSpace(textutil.StripTags(article.Content))
	if utf8.RuneCountInString(fragment) > contentFragmentRunes {
		fragment = string([]rune(fragment)[:contentFragmentRunes])
	}
	return fmt.Sprintf(socialPromptTemplate, article.Title, article.Excerpt, fragment)
}

// HasSocialPost reports whether a stored document already carries a LinkedIn post.
func HasSocialPost(doc domain.Document) bool {
	return strings.TrimSpace(doc.String(domain.FieldLinkedIn)) != ""
}

// ArticleFromDocument rebuilds the prompt-relevant fields of a stored article.
func ArticleFromDocument(doc domain.Document) domain.Article {
	return domain.Article{
		OriginalID: doc.String(domain.FieldOriginalID),
		Title:      doc.String(domain.FieldTitle),
		Excerpt:    doc.String(domain.FieldExcerpt),
		Content:    doc.String(domain.FieldContent),
	}
}
