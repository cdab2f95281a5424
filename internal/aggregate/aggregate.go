// Package aggregate derives per-competitor rollups and the cross-competitor
// comparison from the persisted mentions of a single run.
package aggregate

import (
	"sort"
	"time"

	"github.com/compintel/compradar/internal/model"
)

// Config controls bucketing and topic ranking.
type Config struct {
	BucketHours int // trend bucket width, default 24
	TopTopics   int // topics kept per competitor, default 5
}

// Normalize fills unset fields with defaults.
func (c Config) Normalize() Config {
	if c.BucketHours <= 0 {
		c.BucketHours = model.DefaultBucketHours
	}
	if c.TopTopics <= 0 {
		c.TopTopics = model.DefaultTopTopics
	}
	return c
}

// Aggregator folds a run's mentions into summaries. It is pure: same
// mentions in, same comparison out.
type Aggregator struct {
	cfg Config
}

func New(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg.Normalize()}
}

// Aggregate builds the comparison for one run. Competitors with no mentions
// get an empty summary with zero sentiment and share of voice.
func (a *Aggregator) Aggregate(run *model.AnalysisRun, competitors []*model.Competitor, mentions []model.NewsMention) *model.Comparison {
	byCompetitor := make(map[int64][]model.NewsMention, len(competitors))
	for _, m := range mentions {
		byCompetitor[m.CompetitorID] = append(byCompetitor[m.CompetitorID], m)
	}

	total := len(mentions)
	cmp := &model.Comparison{
		RunID:         run.ID,
		TotalMentions: total,
		Summaries:     make([]model.AggregateSummary, 0, len(competitors)),
		GeneratedAt:   time.Now().UTC(),
	}
	for _, c := range competitors {
		cmp.Summaries = append(cmp.Summaries, a.summarize(c, byCompetitor[c.ID], total))
	}
	return cmp
}

func (a *Aggregator) summarize(c *model.Competitor, ms []model.NewsMention, runTotal int) model.AggregateSummary {
	s := model.AggregateSummary{
		CompetitorID:   c.ID,
		CompetitorName: c.Name,
		MentionCount:   len(ms),
		TrendDirection: trendDirection(len(ms)),
		Trend:          []model.TrendPoint{},
		TopTopics:      []model.TopicCount{},
	}
	s.VisibilityScore = visibilityScore(len(ms))
	if runTotal > 0 {
		s.ShareOfVoice = float64(len(ms)) / float64(runTotal)
	}
	if len(ms) == 0 {
		return s
	}

	sum := 0.0
	for _, m := range ms {
		sum += m.Sentiment
	}
	s.MeanSentiment = sum / float64(len(ms))

	s.Trend = a.trend(ms)
	s.TopTopics = a.topTopics(ms)
	return s
}

// trend buckets mentions by publication time in UTC and averages sentiment
// per bucket. Buckets are aligned to the epoch, so a 24h width yields UTC
// calendar days.
func (a *Aggregator) trend(ms []model.NewsMention) []model.TrendPoint {
	width := time.Duration(a.cfg.BucketHours) * time.Hour
	type acc struct {
		n   int
		sum float64
	}
	buckets := map[time.Time]*acc{}
	for _, m := range ms {
		b := m.PublishedAt.UTC().Truncate(width)
		if buckets[b] == nil {
			buckets[b] = &acc{}
		}
		buckets[b].n++
		buckets[b].sum += m.Sentiment
	}

	points := make([]model.TrendPoint, 0, len(buckets))
	for b, v := range buckets {
		points = append(points, model.TrendPoint{
			Bucket:    b,
			Mentions:  v.n,
			Sentiment: v.sum / float64(v.n),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Bucket.Before(points[j].Bucket) })
	return points
}

// topTopics ranks topics by frequency; ties break toward the topic with the
// most recent mention, then lexicographically.
func (a *Aggregator) topTopics(ms []model.NewsMention) []model.TopicCount {
	counts := map[string]int{}
	latest := map[string]time.Time{}
	for _, m := range ms {
		for _, t := range m.Topics {
			counts[t]++
			if m.PublishedAt.After(latest[t]) {
				latest[t] = m.PublishedAt
			}
		}
	}

	ranked := make([]model.TopicCount, 0, len(counts))
	for t, n := range counts {
		ranked = append(ranked, model.TopicCount{Topic: t, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		ti, tj := ranked[i], ranked[j]
		if ti.Count != tj.Count {
			return ti.Count > tj.Count
		}
		li, lj := latest[ti.Topic], latest[tj.Topic]
		if !li.Equal(lj) {
			return li.After(lj)
		}
		return ti.Topic < tj.Topic
	})
	if len(ranked) > a.cfg.TopTopics {
		ranked = ranked[:a.cfg.TopTopics]
	}
	return ranked
}

// visibilityScore maps mention volume to a 0..100 presence score.
func visibilityScore(mentions int) float64 {
	score := float64(mentions) * 2
	if score > 100 {
		score = 100
	}
	return score
}

// trendDirection labels mention volume against fixed thresholds.
func trendDirection(mentions int) string {
	switch {
	case mentions >= 5:
		return model.TrendRising
	case mentions >= 2:
		return model.TrendStable
	default:
		return model.TrendDeclining
	}
}
