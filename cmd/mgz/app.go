package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/techreview-es/mgz-harvester/internal/assembler"
	"github.com/techreview-es/mgz-harvester/internal/config"
	"github.com/techreview-es/mgz-harvester/internal/enrich"
	"github.com/techreview-es/mgz-harvester/internal/store"
	"github.com/techreview-es/mgz-harvester/internal/syncer"
	"github.com/techreview-es/mgz-harvester/internal/translator"
	"github.com/techreview-es/mgz-harvester/pkg/generator"
	"github.com/techreview-es/mgz-harvester/pkg/httpclient"
	"github.com/techreview-es/mgz-harvester/pkg/providers"
	"github.com/techreview-es/mgz-harvester/pkg/publishers"
)

func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case config.StoreDriverFirestore:
		return store.OpenFirestore(ctx, c.Store.FirestoreProject, c.Store.Collection, c.Store.CredentialsFile)
	default:
		return store.OpenBolt(c.Store.BoltPath, c.Store.Collection)
	}
}

// openGenerator returns nil when no API key is configured; translation and
// social copy then fall back to the source text.
func openGenerator(ctx context.Context, c *config.Config) (generator.Generator, error) {
	gen, err := generator.NewGemini(ctx, c.Gemini.APIKey, c.Gemini.Model)
	if errors.Is(err, generator.ErrMissingAPIKey) {
		log.Warn("gemini api key not set; articles will keep their English text")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return gen, nil
}

// pipeline holds everything a sync pass needs.
type pipeline struct {
	store      store.Store
	dispatcher *publishers.Dispatcher
	syncer     *syncer.Syncer
}

func (p *pipeline) Close() error {
	return errors.Join(p.dispatcher.Close(), p.store.Close())
}

func buildPipeline(ctx context.Context, c *config.Config) (*pipeline, error) {
	gen, err := openGenerator(ctx, c)
	if err != nil {
		return nil, err
	}

	fetcher, err := providers.NewEntriesFetcher(httpclient.NewRestyClient(c.Upstream.Timeout), providers.Provider{
		ID:        "mittr",
		Type:      providers.ProviderTypeMITTREntries,
		SourceURL: c.Upstream.BaseURL,
		UserAgent: c.Upstream.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("build fetcher: %w", err)
	}

	st, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	dispatcher, err := publishers.Open(ctx, c.Publishers.File, log)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open publishers: %w", err)
	}

	asm := assembler.New(translator.New(gen, log), assembler.Options{
		Source:        c.Article.Source,
		DefaultAuthor: c.Article.DefaultAuthor,
		Location:      c.ArticleLocation(),
	}, log)

	return &pipeline{
		store:      st,
		dispatcher: dispatcher,
		syncer:     syncer.New(fetcher, asm, enrich.NewSocialPostGenerator(gen, log), st, dispatcher, log),
	}, nil
}
