package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/techreview-es/mgz-harvester/internal/domain"
	"github.com/techreview-es/mgz-harvester/internal/logger"
	"github.com/techreview-es/mgz-harvester/internal/store"
)

// DefaultBackfillLimit is how many recent articles one backfill pass inspects.
const DefaultBackfillLimit = 10

// BackfillResult summarizes one backfill pass.
type BackfillResult struct {
	Scanned   int
	Skipped   int
	Generated int
}

// Backfiller adds social posts to stored articles that lack one.
type Backfiller struct {
	store  store.Store
	social *SocialPostGenerator
	log    logger.Logger
	now    func() time.Time
}

// NewBackfiller wires a Backfiller.
func NewBackfiller(st store.Store, social *SocialPostGenerator, log logger.Logger) *Backfiller {
	return &Backfiller{store: st, social: social, log: logger.Ensure(log), now: time.Now}
}

// Run inspects the limit most recently updated articles and generates a post
// for each one without. Articles that already have a post are never sent to
// the generator.
func (b *Backfiller) Run(ctx context.Context, limit int) (BackfillResult, error) {
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}

	var res BackfillResult
	opts := store.ScanOptions{Limit: limit, OrderBy: domain.FieldUpdatedAt, Descending: true}
	err := b.store.Scan(ctx, opts, func(doc domain.Document) error {
		res.Scanned++
		title := doc.String(domain.FieldTitle)
		if HasSocialPost(doc) {
			res.Skipped++
			b.log.DebugObj("skipping article with social post", "backfill", map[string]any{"id": doc.ID, "title": title})
			return nil
		}

		post := b.social.Generate(ctx, ArticleFromDocument(doc))
		if post == "" {
			res.Skipped++
			b.log.WarnObj("no social post text available", "backfill", map[string]any{"id": doc.ID, "title": title})
			return nil
		}

		err := b.store.Update(ctx, doc.ID, map[string]any{
			domain.FieldLinkedIn:          post,
			domain.FieldSocialGeneratedAt: b.now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return fmt.Errorf("save social post for %s: %w", doc.ID, err)
		}
		res.Generated++
		b.log.InfoObj("social post generated", "backfill", map[string]any{"id": doc.ID, "title": title})
		return nil
	})
	if err != nil {
		return res, err
	}
	return res, nil
}
