// Package engine orchestrates analysis runs through the collection,
// aggregation and insight stages, owning every status transition.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compintel/compradar/internal/aggregate"
	"github.com/compintel/compradar/internal/collect"
	"github.com/compintel/compradar/internal/insight"
	"github.com/compintel/compradar/internal/logger"
	"github.com/compintel/compradar/internal/metrics"
	"github.com/compintel/compradar/internal/model"
	"github.com/compintel/compradar/internal/store"
)

// Stage names used in run error records and metrics labels.
const (
	StageCollect   = "collect"
	StageAggregate = "aggregate"
	StageInsight   = "insight"
)

// Engine drives runs through the state machine. It is the only writer of
// run status and the run error list. Safe for concurrent use across runs.
type Engine struct {
	store      store.Store
	collector  *collect.Stage
	aggregator *aggregate.Aggregator
	insights   *insight.Stage // nil disables insight generation
}

func New(st store.Store, collector *collect.Stage, aggregator *aggregate.Aggregator, insights *insight.Stage) *Engine {
	return &Engine{store: st, collector: collector, aggregator: aggregator, insights: insights}
}

// StartRun validates the request and records a pending run. Execution is
// the caller's choice: Execute synchronously or in a goroutine.
func (e *Engine) StartRun(ctx context.Context, competitorIDs []int64, opts model.RunOptions) (*model.AnalysisRun, error) {
	if len(competitorIDs) == 0 {
		return nil, model.Validationf("at least one competitor is required")
	}
	seen := make(map[int64]bool, len(competitorIDs))
	for _, id := range competitorIDs {
		if seen[id] {
			return nil, model.Validationf("duplicate competitor id %d", id)
		}
		seen[id] = true
		if _, err := e.store.GetCompetitor(ctx, id); err != nil {
			return nil, model.Validationf("unknown competitor id %d", id)
		}
	}

	run, err := e.store.CreateRun(ctx, competitorIDs, opts.Normalize())
	if err != nil {
		return nil, err
	}
	metrics.RunsStartedTotal.Inc()
	logger.Log.Infof("run %d created for %d competitors", run.ID, len(competitorIDs))
	return run, nil
}

// Execute advances a run from its current status to a terminal one. It is
// idempotent: re-executing a terminal run is a no-op, and resuming an
// interrupted run re-enters the stage it was in. Cancellation is honored
// at stage boundaries only.
func (e *Engine) Execute(ctx context.Context, runID int64) error {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return nil
	}

	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	for !run.Status.Terminal() {
		if run.CancelRequested {
			return e.fail(ctx, run, model.RunError{
				Stage:   string(run.Status),
				Message: "run cancelled",
				At:      time.Now().UTC(),
			})
		}

		var err error
		switch run.Status {
		case model.StatusPending:
			err = e.store.UpdateRunStatus(ctx, run.ID, model.StatusPending, model.StatusCollecting)
		case model.StatusCollecting:
			err = e.runCollect(ctx, run)
		case model.StatusAggregating:
			err = e.runAggregate(ctx, run)
		case model.StatusInsightsPending:
			err = e.runInsights(ctx, run)
		default:
			err = fmt.Errorf("run %d in unexpected status %q", run.ID, run.Status)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return e.fail(ctx, run, model.RunError{
				Stage:   string(run.Status),
				Message: err.Error(),
				At:      time.Now().UTC(),
			})
		}

		if run, err = e.store.GetRun(ctx, runID); err != nil {
			return err
		}
	}

	metrics.RunsFinishedTotal.WithLabelValues(string(run.Status)).Inc()
	logger.Log.Infof("run %d finished with status %s", run.ID, run.Status)
	return nil
}

// runCollect fans out per competitor. The run proceeds when at least one
// branch succeeded; a full wipe-out fails the run.
func (e *Engine) runCollect(ctx context.Context, run *model.AnalysisRun) error {
	timer := time.Now()
	defer func() {
		metrics.StageDurationSeconds.WithLabelValues(StageCollect).Observe(time.Since(timer).Seconds())
	}()

	competitors, err := e.loadCompetitors(ctx, run)
	if err != nil {
		return err
	}

	res, err := e.collector.Collect(ctx, run, competitors)
	if err != nil {
		return err
	}
	for _, c := range res.ByCompetitor {
		if c.Err != nil {
			appendErr := e.store.AppendRunError(ctx, run.ID, model.RunError{
				Stage:        StageCollect,
				CompetitorID: c.CompetitorID,
				Message:      c.Err.Error(),
				At:           time.Now().UTC(),
			})
			if appendErr != nil {
				return appendErr
			}
		}
	}
	if res.Succeeded() == 0 {
		return fmt.Errorf("collection failed for all %d competitors", len(competitors))
	}

	logger.Log.Infof("run %d collected %d mentions across %d/%d competitors",
		run.ID, res.TotalMentions(), res.Succeeded(), len(competitors))
	return e.store.UpdateRunStatus(ctx, run.ID, model.StatusCollecting, model.StatusAggregating)
}

// runAggregate recomputes the comparison to validate the data, then moves
// the run toward insights or completion. The comparison itself is derived
// state and is rebuilt on read.
func (e *Engine) runAggregate(ctx context.Context, run *model.AnalysisRun) error {
	timer := time.Now()
	defer func() {
		metrics.StageDurationSeconds.WithLabelValues(StageAggregate).Observe(time.Since(timer).Seconds())
	}()

	if _, err := e.comparison(ctx, run); err != nil {
		return err
	}

	next := model.StatusCompleted
	if run.Options.GenerateInsights && e.insights != nil {
		next = model.StatusInsightsPending
	}
	return e.store.UpdateRunStatus(ctx, run.ID, model.StatusAggregating, next)
}

// runInsights generates and persists the insight set. Exhausted retries
// leave the run partial rather than failed: the analytical result is
// still usable.
func (e *Engine) runInsights(ctx context.Context, run *model.AnalysisRun) error {
	timer := time.Now()
	defer func() {
		metrics.StageDurationSeconds.WithLabelValues(StageInsight).Observe(time.Since(timer).Seconds())
	}()

	cmp, err := e.comparison(ctx, run)
	if err != nil {
		return err
	}

	res, err := e.insights.Generate(ctx, run, cmp)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		appendErr := e.store.AppendRunError(ctx, run.ID, model.RunError{
			Stage:   StageInsight,
			Message: err.Error(),
			At:      time.Now().UTC(),
		})
		if appendErr != nil {
			return appendErr
		}
		logger.Log.Warnf("run %d insight generation failed, completing as partial: %v", run.ID, err)
		return e.store.UpdateRunStatus(ctx, run.ID, model.StatusInsightsPending, model.StatusPartial)
	}

	if _, err := e.store.ReplaceInsights(ctx, run.ID, res.Insights); err != nil {
		return err
	}
	return e.store.UpdateRunStatus(ctx, run.ID, model.StatusInsightsPending, model.StatusCompleted)
}

// fail records the error and drives the run to failed from whatever
// non-terminal state it is in.
func (e *Engine) fail(ctx context.Context, run *model.AnalysisRun, re model.RunError) error {
	if err := e.store.AppendRunError(ctx, run.ID, re); err != nil {
		return err
	}
	if err := e.store.UpdateRunStatus(ctx, run.ID, run.Status, model.StatusFailed); err != nil {
		return err
	}
	metrics.RunsFinishedTotal.WithLabelValues(string(model.StatusFailed)).Inc()
	logger.Log.Errorf("run %d failed in stage %s: %s", run.ID, re.Stage, re.Message)
	return nil
}

// Cancel flags the run for cancellation. The engine picks the flag up at
// the next stage boundary. Cancelling a terminal run is rejected.
func (e *Engine) Cancel(ctx context.Context, runID int64) error {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return model.Validationf("run %d already finished with status %s", runID, run.Status)
	}
	return e.store.RequestCancel(ctx, runID)
}

// Status projects the run into its user-facing view.
func (e *Engine) Status(ctx context.Context, runID int64) (*model.RunStatusView, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &model.RunStatusView{
		RunID:    run.ID,
		Status:   run.Status,
		Progress: progress(run.Status),
		Errors:   run.Errors,
	}, nil
}

// Result assembles the full run output. Callers get NotReady until the run
// reaches completed or partial.
func (e *Engine) Result(ctx context.Context, runID int64) (*model.ExportModel, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != model.StatusCompleted && run.Status != model.StatusPartial {
		return nil, fmt.Errorf("%w: run %d is %s", model.ErrNotReady, runID, run.Status)
	}

	competitors, err := e.loadCompetitors(ctx, run)
	if err != nil {
		return nil, err
	}
	mentions, err := e.store.MentionsByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	insights, err := e.store.InsightsByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &model.ExportModel{
		Run:         run,
		Competitors: competitors,
		Comparison:  e.aggregator.Aggregate(run, competitors, mentions),
		Insights:    insights,
		Mentions:    mentions,
	}, nil
}

// GenerateInsights re-runs the insight stage on demand for a finished run,
// replacing the previous set. The run's terminal status is not changed.
func (e *Engine) GenerateInsights(ctx context.Context, runID int64) (*model.InsightResult, error) {
	if e.insights == nil {
		return nil, model.Validationf("insight generation is not configured")
	}
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != model.StatusCompleted && run.Status != model.StatusPartial {
		return nil, fmt.Errorf("%w: run %d is %s", model.ErrNotReady, runID, run.Status)
	}

	cmp, err := e.comparison(ctx, run)
	if err != nil {
		return nil, err
	}
	res, err := e.insights.Generate(ctx, run, cmp)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.ReplaceInsights(ctx, runID, res.Insights); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) comparison(ctx context.Context, run *model.AnalysisRun) (*model.Comparison, error) {
	competitors, err := e.loadCompetitors(ctx, run)
	if err != nil {
		return nil, err
	}
	mentions, err := e.store.MentionsByRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return e.aggregator.Aggregate(run, competitors, mentions), nil
}

func (e *Engine) loadCompetitors(ctx context.Context, run *model.AnalysisRun) ([]*model.Competitor, error) {
	out := make([]*model.Competitor, 0, len(run.CompetitorIDs))
	for _, id := range run.CompetitorIDs {
		c, err := e.store.GetCompetitor(ctx, id)
		switch {
		case errors.Is(err, model.ErrNotFound):
			// Deleted after the run referenced it. The run keeps an orphaned
			// reference; persisted mentions still aggregate and export under
			// a placeholder identity.
			c = &model.Competitor{ID: id, Name: "(deleted)", Status: "deleted"}
		case err != nil:
			return nil, fmt.Errorf("competitor %d: %w", id, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// progress maps status to a coarse 0..1 fraction for the status view.
func progress(s model.RunStatus) float64 {
	switch s {
	case model.StatusPending:
		return 0
	case model.StatusCollecting:
		return 0.25
	case model.StatusAggregating:
		return 0.6
	case model.StatusInsightsPending:
		return 0.8
	default:
		return 1
	}
}
