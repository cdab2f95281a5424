package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"

	"github.com/compintel/compradar/internal/aggregate"
	"github.com/compintel/compradar/internal/collect"
	"github.com/compintel/compradar/internal/engine"
	"github.com/compintel/compradar/internal/export"
	"github.com/compintel/compradar/internal/model"
	"github.com/compintel/compradar/internal/search"
	"github.com/compintel/compradar/internal/signal"
	"github.com/compintel/compradar/internal/store"
)

type fakeSearcher struct{}

func (fakeSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	return &search.Response{Results: []search.Result{{
		Title:         "Acme growth",
		URL:           "https://news.example.com/acme-growth",
		Content:       "Acme reported strong growth and a successful product launch this quarter.",
		PublishedDate: "2026-08-10",
	}}}, nil
}

func newService(t *testing.T) (*AnalysisService, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	collector := collect.NewStage(fakeSearcher{}, st, signal.NewLexiconExtractor(), nil, nil,
		collect.Config{Workers: 2, Retries: 1, Backoff: time.Millisecond, PageSize: 10})
	eng := engine.New(st, collector, aggregate.New(aggregate.Config{}), nil)
	exporter := export.NewAdapter(eng, export.NewCSVRenderer(), export.NewPDFRenderer())
	return NewAnalysisService(st, eng, exporter, log.NewStdLogger(testWriter{t})), st
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestCompetitorCRUD(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.CreateCompetitor(ctx, &CompetitorPayload{Name: "Acme", WebsiteURL: "https://acme.example.com"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, "active", created.Status)

	_, err = svc.CreateCompetitor(ctx, &CompetitorPayload{})
	require.Error(t, err, "missing name is rejected")

	updated, err := svc.UpdateCompetitor(ctx, created.ID, &CompetitorPayload{Industry: "SaaS"})
	require.NoError(t, err)
	require.Equal(t, "SaaS", updated.Industry)
	require.Equal(t, "Acme", updated.Name, "unset fields keep their value")

	list, err := svc.ListCompetitors(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.DeleteCompetitor(ctx, created.ID))
	_, err = svc.GetCompetitor(ctx, created.ID)
	require.Error(t, err)
}

func TestStartRunLifecycle(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	c, err := svc.CreateCompetitor(ctx, &CompetitorPayload{Name: "Acme"})
	require.NoError(t, err)

	reply, err := svc.StartRun(ctx, &StartRunRequest{CompetitorIDs: []int64{c.ID}})
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, reply.Status)

	require.Eventually(t, func() bool {
		run, err := st.GetRun(ctx, reply.RunID)
		return err == nil && run.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	view, err := svc.GetRunStatus(ctx, reply.RunID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, view.Status)

	res, err := svc.GetRunResult(ctx, reply.RunID)
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalMentions)
	require.Len(t, res.Summaries, 1)

	f, err := svc.ExportRun(ctx, reply.RunID, export.FormatCSV)
	require.NoError(t, err)
	require.Equal(t, "application/zip", f.ContentType)
	require.NotEmpty(t, f.Data)
}

func TestStartRunRejectsUnknownCompetitor(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.StartRun(context.Background(), &StartRunRequest{CompetitorIDs: []int64{42}})
	require.Error(t, err)
}

func TestGetRunResultNotReadyMapsToConflict(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	c, err := svc.CreateCompetitor(ctx, &CompetitorPayload{Name: "Acme"})
	require.NoError(t, err)
	run, err := st.CreateRun(ctx, []int64{c.ID}, model.RunOptions{}.Normalize())
	require.NoError(t, err)

	_, err = svc.GetRunResult(ctx, run.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "NOT_READY")
}
