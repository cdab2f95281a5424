package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/compintel/compradar/internal/model"
)

type fakeResults struct {
	m   *model.ExportModel
	err error
}

func (f *fakeResults) Result(ctx context.Context, runID int64) (*model.ExportModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.m, nil
}

func sampleModel() *model.ExportModel {
	conf := 0.8
	at := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	return &model.ExportModel{
		Run: &model.AnalysisRun{ID: 3, Status: model.StatusCompleted, CompetitorIDs: []int64{1, 2}},
		Competitors: []*model.Competitor{
			{ID: 1, Name: "Acme", WebsiteURL: "https://acme.example.com", Industry: "SaaS", Status: "active"},
			{ID: 2, Name: "Globex", Status: "active"},
		},
		Comparison: &model.Comparison{
			RunID:         3,
			TotalMentions: 2,
			Summaries: []model.AggregateSummary{
				{CompetitorID: 1, CompetitorName: "Acme", MentionCount: 2, MeanSentiment: 0.5, ShareOfVoice: 1, VisibilityScore: 4, TrendDirection: model.TrendStable},
				{CompetitorID: 2, CompetitorName: "Globex", TrendDirection: model.TrendDeclining},
			},
		},
		Insights: []model.Insight{
			{ID: 1, RunID: 3, Kind: model.InsightRisk, Title: "Momentum", Text: "Acme dominates coverage.", CompetitorIDs: []int64{1}, Confidence: &conf, CreatedAt: at},
		},
		Mentions: []model.NewsMention{
			{ID: 1, RunID: 3, CompetitorID: 1, URL: "https://news.example.com/a", Title: "Acme raises", Source: "news.example.com", PublishedAt: at, Sentiment: 0.7, Topics: []string{"funding"}, ExtractedAt: at},
			{ID: 2, RunID: 3, CompetitorID: 1, URL: "https://news.example.com/b", Title: "Acme launch, with \"quotes\"", Source: "news.example.com", PublishedAt: at, Sentiment: 0.3, ExtractedAt: at},
		},
	}
}

func readZip(t *testing.T, data []byte) map[string][][]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string][][]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		recs, err := csv.NewReader(rc).ReadAll()
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = recs
	}
	return out
}

func TestCSVExportBundle(t *testing.T) {
	a := NewAdapter(&fakeResults{m: sampleModel()}, NewCSVRenderer())
	f, err := a.Export(context.Background(), 3, FormatCSV)
	require.NoError(t, err)
	require.Equal(t, "application/zip", f.ContentType)
	require.Equal(t, "competitor_analysis_run_3.zip", f.Name)

	files := readZip(t, f.Data)
	require.Len(t, files, 4)

	overview := files["competitors_overview.csv"]
	require.Equal(t, []string{"id", "name", "website_url", "industry", "description", "status"}, overview[0])
	require.Len(t, overview, 3)

	mentions := files["news_mentions.csv"]
	require.Len(t, mentions, 3)
	require.Equal(t, `Acme launch, with "quotes"`, mentions[2][2], "csv quoting survives round trip")
	require.Equal(t, "funding", mentions[1][7])

	sentiment := files["sentiment_analysis.csv"]
	require.Len(t, sentiment, 3)
	require.Equal(t, "Acme", sentiment[1][1])
	require.Equal(t, "1.0000", sentiment[1][4])

	insights := files["insights.csv"]
	require.Len(t, insights, 2)
	require.Equal(t, "risk", insights[1][1])
	require.Equal(t, "0.8000", insights[1][5])
}

func TestCSVExportEmptyRun(t *testing.T) {
	m := sampleModel()
	m.Mentions = nil
	m.Insights = nil
	a := NewAdapter(&fakeResults{m: m}, NewCSVRenderer())

	f, err := a.Export(context.Background(), 3, FormatCSV)
	require.NoError(t, err)

	files := readZip(t, f.Data)
	require.Len(t, files["news_mentions.csv"], 1, "header only")
	require.Len(t, files["insights.csv"], 1, "header only")
}

func TestPDFExport(t *testing.T) {
	a := NewAdapter(&fakeResults{m: sampleModel()}, NewPDFRenderer())
	f, err := a.Export(context.Background(), 3, FormatPDF)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", f.ContentType)
	require.True(t, bytes.HasPrefix(f.Data, []byte("%PDF")), "output starts with the PDF magic")
	require.Greater(t, len(f.Data), 1000)
}

func TestExportUnknownFormat(t *testing.T) {
	a := NewAdapter(&fakeResults{m: sampleModel()}, NewCSVRenderer())
	_, err := a.Export(context.Background(), 3, Format("xlsx"))
	require.True(t, model.IsValidation(err))
}

func TestExportPropagatesNotReady(t *testing.T) {
	notReady := fmt.Errorf("%w: run 3 is collecting", model.ErrNotReady)
	a := NewAdapter(&fakeResults{err: notReady}, NewCSVRenderer(), NewPDFRenderer())
	_, err := a.Export(context.Background(), 3, FormatCSV)
	require.ErrorIs(t, err, model.ErrNotReady)
}
