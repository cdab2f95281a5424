// Package collect implements the collection stage: one content-search
// query per competitor, fanned out with bounded concurrency, normalized,
// deduplicated and persisted as news mentions. Branch failures are
// isolated; only store failures abort the stage.
package collect

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/compintel/compradar/internal/logger"
	"github.com/compintel/compradar/internal/metrics"
	"github.com/compintel/compradar/internal/model"
	"github.com/compintel/compradar/internal/search"
	"github.com/compintel/compradar/internal/signal"
	"github.com/compintel/compradar/internal/store"
)

// Config bounds the stage. Zero values get defaults from Normalize.
type Config struct {
	Workers     int           // concurrent competitor branches
	Retries     int           // search attempts per competitor
	Backoff     time.Duration // base delay, doubled per attempt
	PageSize    int           // results requested per provider call
	MinBodyLen  int           // below this the excerpt counts as empty
	FetchBodies bool          // enrich short excerpts via the body fetcher
}

// Normalize fills unset fields with defaults.
func (c Config) Normalize() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 2 * time.Second
	}
	if c.PageSize <= 0 {
		c.PageSize = 10
	}
	if c.MinBodyLen <= 0 {
		c.MinBodyLen = 40
	}
	return c
}

// BodyFetcher fetches and cleans an article body, used to enrich results
// whose provider excerpt is too short.
type BodyFetcher func(url string) (string, error)

// Stage runs collection for one analysis run.
type Stage struct {
	searcher  search.Searcher
	store     store.Store
	extractor signal.Extractor
	limiter   *rate.Limiter
	fetchBody BodyFetcher
	cfg       Config
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewStage builds the collection stage. limiter and fetchBody may be nil.
func NewStage(searcher search.Searcher, st store.Store, extractor signal.Extractor, limiter *rate.Limiter, fetchBody BodyFetcher, cfg Config) *Stage {
	return &Stage{
		searcher:  searcher,
		store:     st,
		extractor: extractor,
		limiter:   limiter,
		fetchBody: fetchBody,
		cfg:       cfg.Normalize(),
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Collect runs one branch per competitor and fans results back in. The
// returned error is non-nil only for failures fatal to the whole stage
// (store unreachable); per-competitor provider failures land in the
// result instead.
func (s *Stage) Collect(ctx context.Context, run *model.AnalysisRun, competitors []*model.Competitor) (model.CollectionResult, error) {
	result := model.CollectionResult{ByCompetitor: make(map[int64]model.CompetitorCollection, len(competitors))}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.cfg.Workers)
	)

	for _, comp := range competitors {
		wg.Add(1)
		go func(comp *model.Competitor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			branch := s.collectOne(ctx, run, comp)
			mu.Lock()
			result.ByCompetitor[comp.ID] = branch
			mu.Unlock()
		}(comp)
	}
	wg.Wait()

	// A store failure in any branch is fatal to the stage; provider
	// failures are not.
	for _, branch := range result.ByCompetitor {
		if branch.Err != nil && errors.Is(branch.Err, model.ErrStore) {
			return result, branch.Err
		}
	}
	return result, nil
}

func (s *Stage) collectOne(ctx context.Context, run *model.AnalysisRun, comp *model.Competitor) model.CompetitorCollection {
	branch := model.CompetitorCollection{CompetitorID: comp.ID}

	// Idempotent resumption: a retry reuses the run id, so existing
	// mentions mean this branch already ran.
	existing, err := s.store.CountMentions(ctx, run.ID, comp.ID)
	if err != nil {
		branch.Err = err
		return branch
	}
	if existing > 0 {
		logger.Log.Infof("run %d: competitor %d already has %d mentions, skipping collection", run.ID, comp.ID, existing)
		branch.Mentions = existing
		return branch
	}

	docs, skipped, err := s.searchCompetitor(ctx, run, comp)
	if err != nil {
		branch.Err = err
		return branch
	}
	branch.Skipped = skipped

	mentions := make([]model.NewsMention, 0, len(docs))
	for _, doc := range docs {
		sig := s.extractor.Extract(doc)
		mentions = append(mentions, model.NewsMention{
			RunID:        run.ID,
			CompetitorID: comp.ID,
			URL:          doc.URL,
			Title:        doc.Title,
			Source:       doc.Source,
			PublishedAt:  doc.PublishedAt,
			Excerpt:      doc.Body,
			Sentiment:    sig.Sentiment,
			Topics:       sig.Topics,
		})
	}

	inserted, err := s.store.InsertMentions(ctx, run.ID, mentions)
	if err != nil {
		branch.Err = err
		return branch
	}
	metrics.MentionsPersistedTotal.Add(float64(inserted))
	branch.Mentions = inserted
	return branch
}

// searchCompetitor pages through provider results until the configured
// document budget is reached or a page yields nothing new.
func (s *Stage) searchCompetitor(ctx context.Context, run *model.AnalysisRun, comp *model.Competitor) ([]model.Document, int, error) {
	maxDocs := run.Options.MaxDocs
	now := time.Now()
	endDate := now.Format(time.DateOnly)
	startDate := now.AddDate(0, 0, -run.Options.DaysBack).Format(time.DateOnly)

	var (
		docs    []model.Document
		skipped int
		seen    = map[string]bool{}
	)

	for len(docs) < maxDocs {
		req := &search.Request{
			Query:      buildQuery(comp),
			Topic:      "news",
			MaxResults: min(s.cfg.PageSize, maxDocs-len(docs)),
			StartDate:  startDate,
			EndDate:    endDate,
		}

		resp, err := s.searchWithRetry(ctx, req)
		if err != nil {
			return nil, skipped, err
		}

		added := 0
		for _, item := range resp.Results {
			normURL, ok := NormalizeURL(item.URL)
			if !ok || seen[normURL] {
				continue
			}
			seen[normURL] = true

			doc, ok := s.normalizeDoc(normURL, comp, item)
			if !ok {
				skipped++
				continue
			}
			docs = append(docs, doc)
			added++
			if len(docs) >= maxDocs {
				break
			}
		}

		// Providers without cursors repeat themselves; an all-duplicate
		// page means there is nothing further to fetch.
		if added == 0 {
			break
		}
	}
	return docs, skipped, nil
}

func (s *Stage) searchWithRetry(ctx context.Context, req *search.Request) (*search.Response, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.cfg.Backoff*time.Duration(1<<(attempt-1))); err != nil {
				return nil, err
			}
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := s.searcher.Search(ctx, req)
		if err == nil {
			metrics.ProviderCallsTotal.WithLabelValues("search", "ok").Inc()
			return resp, nil
		}
		metrics.ProviderCallsTotal.WithLabelValues("search", "error").Inc()
		lastErr = err
		if !model.Retryable(err) {
			return nil, err
		}
		logger.Log.Warnf("search attempt %d failed for %q: %v", attempt+1, req.Query, err)
	}
	return nil, fmt.Errorf("search retries exhausted: %w", lastErr)
}

func (s *Stage) normalizeDoc(normURL string, comp *model.Competitor, item search.Result) (model.Document, bool) {
	published, err := ParsePublished(item.PublishedDate)
	if err != nil {
		return model.Document{}, false
	}

	body := item.Content
	if body == "" {
		body = item.RawContent
	}
	if len(body) < s.cfg.MinBodyLen && s.cfg.FetchBodies && s.fetchBody != nil {
		if fetched, err := s.fetchBody(item.URL); err == nil && len(fetched) > len(body) {
			body = fetched
		}
	}
	if len(body) > 5000 {
		body = body[:5000]
	}
	if strings.TrimSpace(body) == "" {
		return model.Document{}, false
	}

	return model.Document{
		URL:         normURL,
		Title:       item.Title,
		Source:      hostOf(normURL),
		Body:        body,
		PublishedAt: published,
	}, true
}

// buildQuery derives a provider query from competitor identity.
func buildQuery(comp *model.Competitor) string {
	q := comp.Name
	if host := hostOf(comp.WebsiteURL); host != "" {
		q += " " + host
	}
	return q
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// NormalizeURL canonicalizes a source URL for dedup: lowercase scheme and
// host, drop fragments, tracking params and trailing slashes.
func NormalizeURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "utm_") || key == "ref" || key == "fbclid" {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), true
}

// ParsePublished parses a provider publish date. Empty or unparseable
// dates fail normalization.
func ParsePublished(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty publish date")
	}
	return parseDate(raw)
}
