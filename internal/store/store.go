// Package store is the record store for competitors, runs, mentions and
// insights. Two implementations exist: postgres for the service and an
// in-memory store for tests and DB-less CLI runs.
package store

import (
	"context"

	"github.com/compintel/compradar/internal/model"
)

// Store is the persistence interface consumed by the pipeline. Every
// write is atomic per entity; callers never see a half-applied status
// transition or mention batch.
type Store interface {
	// Competitors.
	CreateCompetitor(ctx context.Context, c *model.Competitor) error
	GetCompetitor(ctx context.Context, id int64) (*model.Competitor, error)
	ListCompetitors(ctx context.Context) ([]*model.Competitor, error)
	UpdateCompetitor(ctx context.Context, c *model.Competitor) error
	DeleteCompetitor(ctx context.Context, id int64) error

	// Runs. UpdateRunStatus is compare-and-set on the current status so a
	// racing cancellation and stage completion cannot both win; it also
	// stamps started/finished times as the run enters collecting or a
	// terminal state. AppendRunError adds to the append-only error list.
	CreateRun(ctx context.Context, competitorIDs []int64, opts model.RunOptions) (*model.AnalysisRun, error)
	GetRun(ctx context.Context, id int64) (*model.AnalysisRun, error)
	UpdateRunStatus(ctx context.Context, id int64, from, to model.RunStatus) error
	AppendRunError(ctx context.Context, id int64, e model.RunError) error
	RequestCancel(ctx context.Context, id int64) error

	// Mentions. InsertMentions drops duplicates of (competitor id, url)
	// within the run and returns the number actually inserted.
	InsertMentions(ctx context.Context, runID int64, ms []model.NewsMention) (int, error)
	MentionsByRun(ctx context.Context, runID int64) ([]model.NewsMention, error)
	CountMentions(ctx context.Context, runID, competitorID int64) (int, error)

	// Insights. ReplaceInsights atomically swaps the run's insight set.
	ReplaceInsights(ctx context.Context, runID int64, ins []model.Insight) ([]model.Insight, error)
	InsightsByRun(ctx context.Context, runID int64) ([]model.Insight, error)
}
