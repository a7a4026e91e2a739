package repair

import (
	"github.com/techreview-es/mgz-harvester/internal/domain"
	"github.com/techreview-es/mgz-harvester/pkg/textutil"
)

type jobFunc struct {
	name  string
	apply func(domain.Document) map[string]any
}

func (j jobFunc) Name() string                             { return j.name }
func (j jobFunc) Apply(doc domain.Document) map[string]any { return j.apply(doc) }

// NormalizeJob sets a missing status to published and cleans the excerpt.
func NormalizeJob() Job {
	return jobFunc{name: "normalize", apply: func(doc domain.Document) map[string]any {
		update := map[string]any{}
		if doc.String(domain.FieldStatus) == "" {
			update[domain.FieldStatus] = domain.StatusPublished
		}
		if excerpt := doc.String(domain.FieldExcerpt); excerpt != "" {
			if cleaned := textutil.CleanExcerpt(excerpt); cleaned != excerpt {
				update[domain.FieldExcerpt] = cleaned
			}
		}
		if len(update) == 0 {
			return nil
		}
		return update
	}}
}

// ContentJob rebuilds content paragraphs, cleans the excerpt and stamps
// cleanedAt on every document it touches.
func ContentJob() Job {
	return jobFunc{name: "content", apply: func(doc domain.Document) map[string]any {
		update := map[string]any{}
		if content := doc.String(domain.FieldContent); content != "" {
			if cleaned := textutil.CleanContent(content); cleaned != content {
				update[domain.FieldContent] = cleaned
			}
		}
		if excerpt := doc.String(domain.FieldExcerpt); excerpt != "" {
			if cleaned := textutil.CleanExcerpt(excerpt); cleaned != excerpt {
				update[domain.FieldExcerpt] = cleaned
			}
		}
		if len(update) == 0 {
			return nil
		}
		update[domain.FieldCleanedAt] = domain.ServerTimestamp
		return update
	}}
}

// Jobs lists the repair jobs by name.
func Jobs() map[string]Job {
	return map[string]Job{
		"normalize": NormalizeJob(),
		"content":   ContentJob(),
	}
}
