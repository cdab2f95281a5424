package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/compintel/compradar/internal/model"
)

func TestMemoryMentionDedup(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, err := m.CreateRun(ctx, []int64{1, 2}, model.RunOptions{})
	require.NoError(t, err)

	first := []model.NewsMention{
		{CompetitorID: 1, URL: "https://a.example.com/x", Title: "x"},
		{CompetitorID: 1, URL: "https://a.example.com/y", Title: "y"},
		{CompetitorID: 2, URL: "https://a.example.com/x", Title: "x for 2"},
	}
	n, err := m.InsertMentions(ctx, run.ID, first)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// Re-inserting the same batch must be a no-op.
	n, err = m.InsertMentions(ctx, run.ID, first)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	all, err := m.MentionsByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)

	seen := map[string]bool{}
	for _, mn := range all {
		key := fmt.Sprintf("%d|%s", mn.CompetitorID, mn.URL)
		require.False(t, seen[key], "duplicate (competitor, url) persisted")
		seen[key] = true
	}
}

func TestMemoryStatusCAS(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, err := m.CreateRun(ctx, []int64{1}, model.RunOptions{})
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, run.Status)

	require.NoError(t, m.UpdateRunStatus(ctx, run.ID, model.StatusPending, model.StatusCollecting))

	// Stale CAS loses.
	err = m.UpdateRunStatus(ctx, run.ID, model.StatusPending, model.StatusCollecting)
	require.Error(t, err)
	require.ErrorIs(t, err, model.ErrStore)

	// Illegal edge rejected even when the from-status matches.
	err = m.UpdateRunStatus(ctx, run.ID, model.StatusCollecting, model.StatusCompleted)
	require.ErrorIs(t, err, model.ErrStore)

	got, err := m.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCollecting, got.Status)
	require.NotNil(t, got.StartedAt)
	require.Nil(t, got.FinishedAt)
}

func TestMemoryTerminalTimestamps(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, _ := m.CreateRun(ctx, []int64{1}, model.RunOptions{})

	require.NoError(t, m.UpdateRunStatus(ctx, run.ID, model.StatusPending, model.StatusCollecting))
	require.NoError(t, m.UpdateRunStatus(ctx, run.ID, model.StatusCollecting, model.StatusFailed))

	got, _ := m.GetRun(ctx, run.ID)
	require.True(t, got.Status.Terminal())
	require.NotNil(t, got.FinishedAt)

	// Terminal states are final.
	err := m.UpdateRunStatus(ctx, run.ID, model.StatusFailed, model.StatusCollecting)
	require.Error(t, err)
}

func TestMemoryReplaceInsights(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, _ := m.CreateRun(ctx, []int64{1}, model.RunOptions{})

	_, err := m.ReplaceInsights(ctx, run.ID, []model.Insight{
		{Kind: model.InsightRisk, Text: "first set"},
		{Kind: model.InsightOpportunity, Text: "first set too"},
	})
	require.NoError(t, err)

	second, err := m.ReplaceInsights(ctx, run.ID, []model.Insight{
		{Kind: model.InsightRecommendation, Text: "second set"},
	})
	require.NoError(t, err)
	require.Len(t, second, 1)

	got, err := m.InsightsByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "second set", got[0].Text)
}

func TestMemoryAppendRunError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, _ := m.CreateRun(ctx, []int64{1}, model.RunOptions{})

	require.NoError(t, m.AppendRunError(ctx, run.ID, model.RunError{Stage: "collect", CompetitorID: 1, Message: "boom"}))
	require.NoError(t, m.AppendRunError(ctx, run.ID, model.RunError{Stage: "insights", Message: "later"}))

	got, _ := m.GetRun(ctx, run.ID)
	require.Len(t, got.Errors, 2)
	require.Equal(t, "collect", got.Errors[0].Stage)
	require.False(t, got.Errors[0].At.IsZero())
}

func TestMemoryCompetitorDeleteKeepsMentions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := &model.Competitor{Name: "Acme"}
	require.NoError(t, m.CreateCompetitor(ctx, c))

	run, _ := m.CreateRun(ctx, []int64{c.ID}, model.RunOptions{})
	_, err := m.InsertMentions(ctx, run.ID, []model.NewsMention{{CompetitorID: c.ID, URL: "https://x.example.com"}})
	require.NoError(t, err)

	require.NoError(t, m.DeleteCompetitor(ctx, c.ID))

	_, err = m.GetCompetitor(ctx, c.ID)
	require.True(t, errors.Is(err, model.ErrNotFound))

	all, _ := m.MentionsByRun(ctx, run.ID)
	require.Len(t, all, 1, "mentions keep orphaned competitor id")
	require.Equal(t, c.ID, all[0].CompetitorID)
}
