package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/compintel/compradar/internal/model"
)

func day(d int) time.Time {
	return time.Date(2026, 8, d, 13, 30, 0, 0, time.UTC)
}

func mention(competitorID int64, published time.Time, sentiment float64, topics ...string) model.NewsMention {
	return model.NewsMention{
		RunID:        1,
		CompetitorID: competitorID,
		URL:          "https://example.com/" + published.Format("20060102150405"),
		PublishedAt:  published,
		Sentiment:    sentiment,
		Topics:       topics,
	}
}

func competitors(names ...string) []*model.Competitor {
	out := make([]*model.Competitor, len(names))
	for i, n := range names {
		out[i] = &model.Competitor{ID: int64(i + 1), Name: n}
	}
	return out
}

func TestAggregateShareOfVoiceSumsToOne(t *testing.T) {
	agg := New(Config{})
	ms := []model.NewsMention{
		mention(1, day(1), 0.5),
		mention(1, day(2), -0.5),
		mention(2, day(1), 0.0),
		mention(3, day(3), 1.0),
		mention(3, day(3), 1.0),
		mention(3, day(4), 0.2),
		mention(3, day(5), -0.1),
	}
	cmp := agg.Aggregate(&model.AnalysisRun{ID: 1}, competitors("A", "B", "C"), ms)

	require.Equal(t, 7, cmp.TotalMentions)
	sum := 0.0
	for _, s := range cmp.Summaries {
		sum += s.ShareOfVoice
	}
	require.InDelta(t, 1.0, sum, 1e-6)
}

func TestAggregateZeroMentionSummary(t *testing.T) {
	agg := New(Config{})
	cmp := agg.Aggregate(&model.AnalysisRun{ID: 1}, competitors("A", "B"),
		[]model.NewsMention{mention(1, day(1), 0.7, "funding")})

	require.Len(t, cmp.Summaries, 2)
	empty := cmp.Summaries[1]
	require.Equal(t, "B", empty.CompetitorName)
	require.Zero(t, empty.MentionCount)
	require.Zero(t, empty.MeanSentiment)
	require.Zero(t, empty.ShareOfVoice)
	require.Zero(t, empty.VisibilityScore)
	require.Equal(t, model.TrendDeclining, empty.TrendDirection)
	require.Empty(t, empty.Trend)
	require.Empty(t, empty.TopTopics)
}

func TestAggregateEmptyRun(t *testing.T) {
	agg := New(Config{})
	cmp := agg.Aggregate(&model.AnalysisRun{ID: 1}, competitors("A"), nil)

	require.Zero(t, cmp.TotalMentions)
	require.Zero(t, cmp.Summaries[0].ShareOfVoice, "no-mention run keeps share of voice at 0")
}

func TestAggregateMeanSentimentAndVisibility(t *testing.T) {
	agg := New(Config{})
	ms := []model.NewsMention{
		mention(1, day(1), 1.0),
		mention(1, day(1), 0.0),
		mention(1, day(2), -0.4),
	}
	cmp := agg.Aggregate(&model.AnalysisRun{ID: 1}, competitors("A"), ms)

	s := cmp.Summaries[0]
	require.InDelta(t, 0.2, s.MeanSentiment, 1e-9)
	require.InDelta(t, 6.0, s.VisibilityScore, 1e-9)
	require.Equal(t, model.TrendStable, s.TrendDirection)
}

func TestVisibilityScoreCaps(t *testing.T) {
	require.Equal(t, 100.0, visibilityScore(75))
	require.Equal(t, 40.0, visibilityScore(20))
}

func TestTrendDirectionThresholds(t *testing.T) {
	require.Equal(t, model.TrendRising, trendDirection(5))
	require.Equal(t, model.TrendStable, trendDirection(2))
	require.Equal(t, model.TrendDeclining, trendDirection(1))
	require.Equal(t, model.TrendDeclining, trendDirection(0))
}

func TestTrendBucketsDailyUTC(t *testing.T) {
	agg := New(Config{BucketHours: 24})
	// Two mentions on the same UTC day, one the day after.
	ms := []model.NewsMention{
		mention(1, time.Date(2026, 8, 1, 1, 0, 0, 0, time.UTC), 1.0),
		mention(1, time.Date(2026, 8, 1, 23, 0, 0, 0, time.UTC), 0.0),
		mention(1, time.Date(2026, 8, 2, 0, 30, 0, 0, time.UTC), -1.0),
	}
	cmp := agg.Aggregate(&model.AnalysisRun{ID: 1}, competitors("A"), ms)

	trend := cmp.Summaries[0].Trend
	require.Len(t, trend, 2)
	require.True(t, trend[0].Bucket.Before(trend[1].Bucket), "buckets sorted ascending")
	require.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), trend[0].Bucket)
	require.Equal(t, 2, trend[0].Mentions)
	require.InDelta(t, 0.5, trend[0].Sentiment, 1e-9)
	require.Equal(t, 1, trend[1].Mentions)
	require.InDelta(t, -1.0, trend[1].Sentiment, 1e-9)
}

func TestTopTopicsRankingAndTieBreak(t *testing.T) {
	agg := New(Config{TopTopics: 3})
	ms := []model.NewsMention{
		mention(1, day(1), 0, "funding", "product"),
		mention(1, day(2), 0, "funding", "legal"),
		mention(1, day(5), 0, "product"),
		mention(1, day(3), 0, "security"),
	}
	cmp := agg.Aggregate(&model.AnalysisRun{ID: 1}, competitors("A"), ms)

	topics := cmp.Summaries[0].TopTopics
	require.Len(t, topics, 3)
	// funding and product are tied at 2; product's latest mention is newer.
	require.Equal(t, "product", topics[0].Topic)
	require.Equal(t, "funding", topics[1].Topic)
	// legal and security are tied at 1; security's mention is newer.
	require.Equal(t, "security", topics[2].Topic)
}

func TestTopTopicsLexicographicLastResort(t *testing.T) {
	agg := New(Config{TopTopics: 5})
	same := day(4)
	ms := []model.NewsMention{
		mention(1, same, 0, "pricing", "ai"),
	}
	cmp := agg.Aggregate(&model.AnalysisRun{ID: 1}, competitors("A"), ms)

	topics := cmp.Summaries[0].TopTopics
	require.Equal(t, "ai", topics[0].Topic)
	require.Equal(t, "pricing", topics[1].Topic)
}

func TestAggregateDeterministic(t *testing.T) {
	agg := New(Config{})
	ms := []model.NewsMention{
		mention(1, day(1), 0.3, "funding", "ai"),
		mention(1, day(2), -0.2, "ai"),
		mention(2, day(2), 0.9, "product"),
	}
	base := agg.Aggregate(&model.AnalysisRun{ID: 1}, competitors("A", "B"), ms)
	for i := 0; i < 10; i++ {
		next := agg.Aggregate(&model.AnalysisRun{ID: 1}, competitors("A", "B"), ms)
		for j := range base.Summaries {
			require.Equal(t, base.Summaries[j].TopTopics, next.Summaries[j].TopTopics)
			require.Equal(t, base.Summaries[j].Trend, next.Summaries[j].Trend)
			require.False(t, math.IsNaN(next.Summaries[j].MeanSentiment))
		}
	}
}
