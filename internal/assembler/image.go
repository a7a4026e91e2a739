package assembler

import (
	"strings"

	"github.com/techreview-es/mgz-harvester/internal/domain"
)

// ResolveImage picks the hero image url: the first gallery image, then the
// topper image, then the attachment thumbnail. Query strings are dropped.
// nil means the entry has no image.
func ResolveImage(entry domain.UpstreamEntry) *string {
	candidates := make([]*domain.ImageRef, 0, 3)
	if len(entry.Images) > 0 {
		candidates = append(candidates, &entry.Images[0])
	}
	if entry.Topper != nil {
		candidates = append(candidates, entry.Topper.Image)
	}
	if entry.Attachments != nil {
		candidates = append(candidates, entry.Attachments.Thumbnail)
	}

	for _, ref := range candidates {
		if ref == nil {
			continue
		}
		if u := stripQuery(ref.URL); u != "" {
			return &u
		}
	}
	return nil
}

func stripQuery(raw string) string {
	u, _, _ := strings.Cut(strings.TrimSpace(raw), "?")
	return u
}
