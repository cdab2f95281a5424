package model

import (
	"time"
)

// RunStatus is the lifecycle state of an analysis run.
type RunStatus string

const (
	StatusPending         RunStatus = "pending"
	StatusCollecting      RunStatus = "collecting"
	StatusAggregating     RunStatus = "aggregating"
	StatusInsightsPending RunStatus = "insights_pending"
	StatusCompleted       RunStatus = "completed"
	StatusPartial         RunStatus = "partial"
	StatusFailed          RunStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal state machine edge.
// failed is reachable from any non-terminal state.
func CanTransition(from, to RunStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusCollecting
	case StatusCollecting:
		return to == StatusAggregating
	case StatusAggregating:
		return to == StatusInsightsPending || to == StatusCompleted
	case StatusInsightsPending:
		return to == StatusCompleted || to == StatusPartial
	}
	return false
}

// Competitor is an independently owned company record. Runs reference
// competitors by id and never own them.
type Competitor struct {
	ID          int64
	Name        string
	WebsiteURL  string
	Industry    string
	Description string
	Aliases     []string
	Status      string // active | inactive
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RunOptions are the recognized per-run knobs. Zero values are filled in
// by Normalize.
type RunOptions struct {
	GenerateInsights bool   `json:"generate_insights"`
	DaysBack         int    `json:"days_back"`
	MaxDocs          int    `json:"max_docs"`
	TopTopics        int    `json:"top_topics"`
	BucketHours      int    `json:"bucket_hours"`
	CreatedBy        string `json:"created_by,omitempty"`
}

const (
	DefaultDaysBack    = 30
	DefaultMaxDocs     = 20
	DefaultTopTopics   = 5
	DefaultBucketHours = 24
)

// Normalize fills unset option fields with defaults.
func (o RunOptions) Normalize() RunOptions {
	if o.DaysBack <= 0 {
		o.DaysBack = DefaultDaysBack
	}
	if o.MaxDocs <= 0 {
		o.MaxDocs = DefaultMaxDocs
	}
	if o.TopTopics <= 0 {
		o.TopTopics = DefaultTopTopics
	}
	if o.BucketHours <= 0 {
		o.BucketHours = DefaultBucketHours
	}
	return o
}

// RunError is one entry of a run's append-only error list. CompetitorID is
// zero for run-level errors.
type RunError struct {
	Stage        string    `json:"stage"`
	CompetitorID int64     `json:"competitor_id,omitempty"`
	Message      string    `json:"message"`
	At           time.Time `json:"at"`
}

// AnalysisRun is one execution of the pipeline over a fixed competitor set.
// The run owns its mentions and insights; the orchestrator is the only
// writer of status, timestamps and errors.
type AnalysisRun struct {
	ID              int64
	CompetitorIDs   []int64
	Status          RunStatus
	Options         RunOptions
	Errors          []RunError
	CancelRequested bool
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// Document is a collected piece of content after normalization, before
// signal extraction.
type Document struct {
	URL         string
	Title       string
	Source      string
	Body        string
	PublishedAt time.Time
}

// NewsMention is one normalized document about one competitor within one
// run. (CompetitorID, URL) is unique per run.
type NewsMention struct {
	ID           int64
	RunID        int64
	CompetitorID int64
	URL          string
	Title        string
	Source       string
	PublishedAt  time.Time
	Excerpt      string
	Sentiment    float64 // -1..1
	Topics       []string
	ExtractedAt  time.Time
}

// Signals is the extractor output for a single document.
type Signals struct {
	Sentiment float64
	Topics    []string
}

// TrendPoint is one time bucket of a competitor's sentiment trend.
type TrendPoint struct {
	Bucket    time.Time `json:"bucket"`
	Mentions  int       `json:"mentions"`
	Sentiment float64   `json:"sentiment"`
}

// TopicCount is a topic with its mention frequency.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Trend direction labels, thresholds follow the original scoring policy.
const (
	TrendRising    = "rising"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// AggregateSummary is the derived per-competitor rollup. ShareOfVoice is 0
// when the run has no mentions at all.
type AggregateSummary struct {
	CompetitorID    int64        `json:"competitor_id"`
	CompetitorName  string       `json:"competitor_name"`
	MentionCount    int          `json:"mention_count"`
	MeanSentiment   float64      `json:"mean_sentiment"`
	ShareOfVoice    float64      `json:"share_of_voice"`
	VisibilityScore float64      `json:"visibility_score"`
	TrendDirection  string       `json:"trend_direction"`
	Trend           []TrendPoint `json:"trend"`
	TopTopics       []TopicCount `json:"top_topics"`
}

// Comparison is the cross-competitor view of a run, the input to insight
// generation and export.
type Comparison struct {
	RunID         int64              `json:"run_id"`
	TotalMentions int                `json:"total_mentions"`
	Summaries     []AggregateSummary `json:"summaries"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// InsightKind classifies an AI-derived strategic statement.
type InsightKind string

const (
	InsightOpportunity    InsightKind = "opportunity"
	InsightRisk           InsightKind = "risk"
	InsightRecommendation InsightKind = "recommendation"
)

// Valid reports whether the kind is one of the known values.
func (k InsightKind) Valid() bool {
	switch k {
	case InsightOpportunity, InsightRisk, InsightRecommendation:
		return true
	}
	return false
}

// Insight belongs to exactly one run and is never mutated after creation;
// regeneration replaces the whole set. Confidence is nil when the model
// did not report one.
type Insight struct {
	ID            int64       `json:"id"`
	RunID         int64       `json:"run_id"`
	Kind          InsightKind `json:"kind"`
	Title         string      `json:"title,omitempty"`
	Text          string      `json:"text"`
	CompetitorIDs []int64     `json:"competitor_ids,omitempty"`
	Confidence    *float64    `json:"confidence,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// CompetitorCollection is the per-branch outcome of the collection stage.
type CompetitorCollection struct {
	CompetitorID int64
	Mentions     int
	Skipped      int
	Err          error
}

// CollectionResult is the fan-in of all collection branches.
type CollectionResult struct {
	ByCompetitor map[int64]CompetitorCollection
}

// Succeeded counts branches that completed without error.
func (r CollectionResult) Succeeded() int {
	n := 0
	for _, c := range r.ByCompetitor {
		if c.Err == nil {
			n++
		}
	}
	return n
}

// TotalMentions sums persisted mentions across branches.
func (r CollectionResult) TotalMentions() int {
	n := 0
	for _, c := range r.ByCompetitor {
		n += c.Mentions
	}
	return n
}

// InsightResult reports one insight generation pass.
type InsightResult struct {
	Insights []Insight `json:"insights"`
	Dropped  int       `json:"dropped"`
}

// RunStatusView is the user-facing status projection of a run.
type RunStatusView struct {
	RunID    int64      `json:"run_id"`
	Status   RunStatus  `json:"status"`
	Progress float64    `json:"progress"` // 0..1
	Errors   []RunError `json:"errors"`
}

// ExportModel is the read-only projection handed to renderers.
type ExportModel struct {
	Run         *AnalysisRun  `json:"run"`
	Competitors []*Competitor `json:"competitors"`
	Comparison  *Comparison   `json:"comparison"`
	Insights    []Insight     `json:"insights"`
	Mentions    []NewsMention `json:"mentions"`
}
