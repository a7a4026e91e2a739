// Package syncer pulls one page of upstream entries and upserts them as
// Spanish articles.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/techreview-es/mgz-harvester/internal/domain"
	"github.com/techreview-es/mgz-harvester/internal/enrich"
	"github.com/techreview-es/mgz-harvester/internal/logger"
	"github.com/techreview-es/mgz-harvester/internal/store"
	"github.com/techreview-es/mgz-harvester/pkg/providers"
	"github.com/techreview-es/mgz-harvester/pkg/publishers"
)

// Default paging used by the scheduled and manual triggers.
const (
	DefaultLimit  = 5
	DefaultOffset = 0
)

// Assembler turns an upstream entry into an article.
type Assembler interface {
	Assemble(ctx context.Context, entry domain.UpstreamEntry) (domain.Article, error)
}

// PostGenerator writes the LinkedIn copy for an article.
type PostGenerator interface {
	Generate(ctx context.Context, article domain.Article) string
}

// Notifier is told about every article written.
type Notifier interface {
	Notify(ctx context.Context, evt publishers.Event) error
}

// Syncer runs sync passes. It holds no state between calls.
type Syncer struct {
	fetcher   providers.Fetcher
	assembler Assembler
	social    PostGenerator
	store     store.Store
	notifier  Notifier
	log       logger.Logger
	now       func() time.Time
}

// New returns a Syncer. social and notifier may be nil.
func New(fetcher providers.Fetcher, asm Assembler, social PostGenerator, st store.Store, notifier Notifier, log logger.Logger) *Syncer {
	return &Syncer{
		fetcher:   fetcher,
		assembler: asm,
		social:    social,
		store:     st,
		notifier:  notifier,
		log:       logger.Ensure(log),
		now:       time.Now,
	}
}

// PerformSync fetches one page and upserts each entry in order. It returns the
// number of entries written. A page without an entries array yields 0 and no
// error; a fetch or store failure aborts the page.
func (s *Syncer) PerformSync(ctx context.Context, limit, offset int) (int, error) {
	s.log.InfoObj("sync started", "sync", map[string]any{
		"source": s.fetcher.ID(),
		"limit":  limit,
		"offset": offset,
	})

	entries, err := s.fetcher.FetchEntries(ctx, limit, offset)
	if errors.Is(err, providers.ErrNoEntries) {
		s.log.WarnObj("upstream returned no entries", "sync", map[string]any{"error": err.Error()})
		return 0, nil
	}
	if err != nil {
		s.log.ErrorObj("upstream fetch failed", "sync_error", map[string]any{"error": err.Error()})
		return 0, fmt.Errorf("fetch entries: %w", err)
	}

	count := 0
	for i, raw := range entries {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		var entry domain.UpstreamEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			s.log.WarnObj("skipping malformed entry", "entry_error", map[string]any{"index": i, "error": err.Error()})
			continue
		}

		article, err := s.assembler.Assemble(ctx, entry)
		if err != nil {
			s.log.WarnObj("skipping entry", "entry_error", map[string]any{"index": i, "error": err.Error()})
			continue
		}

		if err := s.upsert(ctx, article); err != nil {
			s.log.ErrorObj("store write failed", "sync_error", map[string]any{
				"originalId": article.OriginalID,
				"error":      err.Error(),
			})
			return count, err
		}
		count++
	}

	s.log.InfoObj("sync finished", "sync", map[string]any{"synced": count, "fetched": len(entries)})
	return count, nil
}

func (s *Syncer) upsert(ctx context.Context, article domain.Article) error {
	existing, err := s.store.FindByOriginalID(ctx, article.OriginalID)
	found := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup %s: %w", article.OriginalID, err)
	}

	if !found || !enrich.HasSocialPost(existing) {
		s.attachSocialPost(ctx, &article)
	}

	record := article.Record()
	evtType := publishers.EventArticleUpdated
	docID := existing.ID
	if found {
		if err := s.store.Merge(ctx, docID, record); err != nil {
			return fmt.Errorf("merge %s: %w", article.OriginalID, err)
		}
	} else {
		evtType = publishers.EventArticleCreated
		if docID, err = s.store.Create(ctx, record); err != nil {
			return fmt.Errorf("create %s: %w", article.OriginalID, err)
		}
	}

	s.log.InfoObj("article saved", "article", map[string]any{
		"originalId": article.OriginalID,
		"docId":      docID,
		"event":      evtType,
	})
	s.notify(ctx, evtType, docID, article)
	return nil
}

func (s *Syncer) attachSocialPost(ctx context.Context, article *domain.Article) {
	if s.social == nil {
		return
	}
	post := s.social.Generate(ctx, *article)
	if strings.TrimSpace(post) == "" {
		return
	}
	article.SocialPosts = &domain.SocialPosts{LinkedIn: post, GeneratedAt: s.now().UTC()}
}

// notify never fails the sync; the article is already stored.
func (s *Syncer) notify(ctx context.Context, typ, docID string, article domain.Article) {
	if s.notifier == nil {
		return
	}
	evt := publishers.NewEvent(typ, docID, article.OriginalID)
	evt.Title = article.Title
	evt.Source = article.Source
	evt.Language = article.Language
	if err := s.notifier.Notify(ctx, evt); err != nil {
		s.log.WarnObj("event notification failed", "notify_error", map[string]any{
			"originalId": article.OriginalID,
			"error":      err.Error(),
		})
	}
}
