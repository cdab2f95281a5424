package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/compintel/compradar/internal/model"
)

// CSVRenderer writes the run as a ZIP of four CSV files: competitors
// overview, news mentions, per-competitor sentiment rollup, and insights.
type CSVRenderer struct{}

func NewCSVRenderer() *CSVRenderer { return &CSVRenderer{} }

func (r *CSVRenderer) Format() Format      { return FormatCSV }
func (r *CSVRenderer) ContentType() string { return "application/zip" }

func (r *CSVRenderer) Filename(runID int64) string {
	return fmt.Sprintf("competitor_analysis_run_%d.zip", runID)
}

func (r *CSVRenderer) Render(m *model.ExportModel) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := []struct {
		name  string
		write func(w *csv.Writer) error
	}{
		{"competitors_overview.csv", func(w *csv.Writer) error { return writeCompetitors(w, m.Competitors) }},
		{"news_mentions.csv", func(w *csv.Writer) error { return writeMentions(w, m.Mentions) }},
		{"sentiment_analysis.csv", func(w *csv.Writer) error { return writeSummaries(w, m.Comparison) }},
		{"insights.csv", func(w *csv.Writer) error { return writeInsights(w, m.Insights) }},
	}
	for _, f := range files {
		fw, err := zw.Create(f.name)
		if err != nil {
			return nil, err
		}
		w := csv.NewWriter(fw)
		if err := f.write(w); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCompetitors(w *csv.Writer, cs []*model.Competitor) error {
	if err := w.Write([]string{"id", "name", "website_url", "industry", "description", "status"}); err != nil {
		return err
	}
	for _, c := range cs {
		rec := []string{
			strconv.FormatInt(c.ID, 10),
			c.Name,
			c.WebsiteURL,
			c.Industry,
			truncate(c.Description, 500),
			c.Status,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func writeMentions(w *csv.Writer, ms []model.NewsMention) error {
	header := []string{"id", "competitor_id", "title", "url", "source", "published_at", "sentiment", "topics", "extracted_at"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, mn := range ms {
		rec := []string{
			strconv.FormatInt(mn.ID, 10),
			strconv.FormatInt(mn.CompetitorID, 10),
			truncate(mn.Title, 200),
			mn.URL,
			mn.Source,
			mn.PublishedAt.UTC().Format(time.RFC3339),
			formatFloat(mn.Sentiment),
			strings.Join(mn.Topics, ";"),
			mn.ExtractedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func writeSummaries(w *csv.Writer, cmp *model.Comparison) error {
	header := []string{"competitor_id", "competitor_name", "mention_count", "mean_sentiment", "share_of_voice", "visibility_score", "trend_direction"}
	if err := w.Write(header); err != nil {
		return err
	}
	if cmp == nil {
		return nil
	}
	for _, s := range cmp.Summaries {
		rec := []string{
			strconv.FormatInt(s.CompetitorID, 10),
			s.CompetitorName,
			strconv.Itoa(s.MentionCount),
			formatFloat(s.MeanSentiment),
			formatFloat(s.ShareOfVoice),
			formatFloat(s.VisibilityScore),
			s.TrendDirection,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func writeInsights(w *csv.Writer, ins []model.Insight) error {
	header := []string{"id", "kind", "title", "text", "competitor_ids", "confidence", "created_at"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, i := range ins {
		ids := make([]string, len(i.CompetitorIDs))
		for j, id := range i.CompetitorIDs {
			ids[j] = strconv.FormatInt(id, 10)
		}
		confidence := ""
		if i.Confidence != nil {
			confidence = formatFloat(*i.Confidence)
		}
		rec := []string{
			strconv.FormatInt(i.ID, 10),
			string(i.Kind),
			truncate(i.Title, 200),
			truncate(i.Text, 500),
			strings.Join(ids, ";"),
			confidence,
			i.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}
