// Package pipeline assembles the analysis engine from configuration. Both
// the server and the CLI runner build their stacks through it.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/compintel/compradar/internal/aggregate"
	"github.com/compintel/compradar/internal/collect"
	"github.com/compintel/compradar/internal/config"
	"github.com/compintel/compradar/internal/engine"
	"github.com/compintel/compradar/internal/insight"
	"github.com/compintel/compradar/internal/logger"
	"github.com/compintel/compradar/internal/model"
	"github.com/compintel/compradar/internal/search/factory"
	"github.com/compintel/compradar/internal/signal"
	"github.com/compintel/compradar/internal/store"
)

// NewStore picks postgres when DB settings are present, the in-memory
// store otherwise. The returned closer is a no-op for the memory store.
func NewStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.DB.Host == "" {
		logger.Log.Info("no database configured, using in-memory store")
		return store.NewMemory(), func() {}, nil
	}
	pg, err := store.NewPostgres(cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pg, func() { _ = pg.Close() }, nil
}

// NewEngine wires searcher, extractor, limiter, chat model and the three
// stages into a run engine.
func NewEngine(ctx context.Context, cfg *config.Config, st store.Store) (*engine.Engine, error) {
	searcher, err := factory.NewSearcher(cfg)
	if err != nil {
		return nil, err
	}

	limiter := newLimiter(cfg.Concurrency)

	var fetch collect.BodyFetcher
	if cfg.Collection.FetchBodies {
		fetch = collect.ReadabilityFetcher(30 * time.Second)
	}
	collector := collect.NewStage(searcher, st, signal.NewLexiconExtractor(), limiter, fetch, collect.Config{
		Workers:     cfg.Concurrency.Workers,
		Retries:     cfg.Collection.Retries,
		PageSize:    cfg.Collection.PageSize,
		FetchBodies: cfg.Collection.FetchBodies,
	})

	agg := aggregate.New(aggregate.Config{
		BucketHours: cfg.Collection.BucketHours,
		TopTopics:   cfg.Collection.TopTopics,
	})

	var insightStage *insight.Stage
	if cfg.Insights.Enabled {
		cm, err := insight.NewChatModel(ctx, cfg.LLM)
		if err != nil {
			return nil, err
		}
		insightStage = insight.New(cm, limiter, insight.Config{
			Retries: cfg.Insights.Retries,
			Timeout: cfg.LLM.RequestTimeout(),
		})
	}

	return engine.New(st, collector, agg, insightStage), nil
}

// EnsureCompetitors resolves competitor names to ids, creating records for
// names not seen before. Used by the CLI and the recurring scheduler.
func EnsureCompetitors(ctx context.Context, st store.Store, names []string) ([]int64, error) {
	existing, err := st.ListCompetitors(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int64, len(existing))
	for _, c := range existing {
		byName[c.Name] = c.ID
	}

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		if id, ok := byName[name]; ok {
			ids = append(ids, id)
			continue
		}
		c := &model.Competitor{Name: name, Status: "active"}
		if err := st.CreateCompetitor(ctx, c); err != nil {
			return nil, err
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func newLimiter(c config.ConcurrencyConfig) *rate.Limiter {
	if c.RPM <= 0 {
		return nil
	}
	burst := c.QPS
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(float64(c.RPM) / 60.0)
	logger.Log.Infof("provider limiter configured: %.2f req/s, burst %d", float64(limit), burst)
	return rate.NewLimiter(limit, burst)
}
