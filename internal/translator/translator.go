// Package translator renders English article text into Peninsular Spanish.
package translator

import (
	"context"
	"regexp"
	"strings"

	"github.com/techreview-es/mgz-harvester/internal/logger"
	"github.com/techreview-es/mgz-harvester/pkg/generator"
)

const promptTemplate = `Traduce el siguiente texto al español de España.
Mantén intacta la estructura HTML (etiquetas, atributos y enlaces) y conserva el tono del original.
No traduzcas los términos técnicos que el sector tecnológico usa habitualmente en inglés.
Devuelve únicamente la traducción, sin comentarios ni explicaciones.

Texto:
`

var (
	fenceOpenRe  = regexp.MustCompile("^```[a-zA-Z]*\\s*\\n")
	fenceCloseRe = regexp.MustCompile("\\n?```\\s*$")
)

// Translator translates text and degrades to the original input on any failure.
type Translator struct {
	gen generator.Generator
	log logger.Logger
}

// New returns a Translator backed by gen. A nil gen disables translation.
func New(gen generator.Generator, log logger.Logger) *Translator {
	return &Translator{gen: gen, log: logger.Ensure(log)}
}

// Translate returns the Spanish rendering of text, or text itself when the
// input is blank or the backend fails.
func (t *Translator) Translate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" || t == nil || t.gen == nil {
		return text
	}

	out, err := t.gen.Generate(ctx, promptTemplate+text)
	if err != nil {
		t.log.WarnObj("translation failed, keeping original text", "translation", map[string]any{
			"error":  err.Error(),
			"length": len(text),
		})
		return text
	}

	out = StripFences(out)
	if out == "" {
		return text
	}
	return out
}

// StripFences removes a surrounding markdown code fence and trims.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpenRe.ReplaceAllString(s, "")
	s = fenceCloseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
