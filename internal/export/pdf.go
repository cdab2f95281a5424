package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/compintel/compradar/internal/model"
)

// PDFRenderer builds the report PDF: executive summary, market presence
// table, competitor comparison, recent news with sentiment, and insights.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer { return &PDFRenderer{} }

func (r *PDFRenderer) Format() Format      { return FormatPDF }
func (r *PDFRenderer) ContentType() string { return "application/pdf" }

func (r *PDFRenderer) Filename(runID int64) string {
	return fmt.Sprintf("competitor_analysis_run_%d.pdf", runID)
}

const maxNewsRows = 30

func (r *PDFRenderer) Render(m *model.ExportModel) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Competitor Analysis Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Run %d | Status: %s | Generated: %s",
		m.Run.ID, m.Run.Status, time.Now().UTC().Format("2006-01-02 15:04 UTC")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	r.heading(pdf, "Executive Summary")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, fmt.Sprintf("This report covers %d competitor(s), %d news mention(s), and %d insight(s).",
		len(m.Competitors), len(m.Mentions), len(m.Insights)), "", "L", false)
	pdf.Ln(4)

	r.heading(pdf, "Market Presence")
	if m.Comparison != nil && len(m.Comparison.Summaries) > 0 {
		r.tableHeader(pdf, []col{{"Competitor", 50}, {"Mentions", 25}, {"Sentiment", 25}, {"Visibility", 25}, {"Trend", 30}})
		for _, s := range m.Comparison.Summaries {
			r.tableRow(pdf, []col{
				{truncate(s.CompetitorName, 28), 50},
				{fmt.Sprintf("%d", s.MentionCount), 25},
				{fmt.Sprintf("%.2f", s.MeanSentiment), 25},
				{fmt.Sprintf("%.0f", s.VisibilityScore), 25},
				{s.TrendDirection, 30},
			})
		}
	} else {
		r.empty(pdf, "No market presence data for this run.")
	}
	pdf.Ln(4)

	r.heading(pdf, "Competitor Comparison")
	r.tableHeader(pdf, []col{{"Name", 50}, {"Industry", 45}, {"Website", 60}})
	for _, c := range m.Competitors {
		r.tableRow(pdf, []col{
			{truncate(c.Name, 28), 50},
			{orDash(c.Industry), 45},
			{truncate(orDash(c.WebsiteURL), 40), 60},
		})
	}
	pdf.Ln(4)

	r.heading(pdf, "News & Sentiment")
	if len(m.Mentions) > 0 {
		r.tableHeader(pdf, []col{{"Competitor", 25}, {"Title", 75}, {"Source", 35}, {"Sentiment", 20}})
		rows := m.Mentions
		if len(rows) > maxNewsRows {
			rows = rows[:maxNewsRows]
		}
		for _, mn := range rows {
			r.tableRow(pdf, []col{
				{fmt.Sprintf("%d", mn.CompetitorID), 25},
				{truncate(mn.Title, 45), 75},
				{truncate(orDash(mn.Source), 20), 35},
				{fmt.Sprintf("%.2f", mn.Sentiment), 20},
			})
		}
	} else {
		r.empty(pdf, "No news mentions for this run.")
	}
	pdf.Ln(4)

	r.heading(pdf, "Insights")
	if len(m.Insights) > 0 {
		for _, i := range m.Insights {
			pdf.SetFont("Helvetica", "B", 10)
			title := i.Title
			if title == "" {
				title = string(i.Kind)
			}
			pdf.MultiCell(0, 5, fmt.Sprintf("%s [%s]", truncate(title, 120), i.Kind), "", "L", false)
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, truncate(i.Text, 500), "", "L", false)
			pdf.Ln(2)
		}
	} else {
		r.empty(pdf, "No insights generated yet.")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type col struct {
	text  string
	width float64
}

func (r *PDFRenderer) heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, text, "", 1, "L", false, 0, "")
}

func (r *PDFRenderer) tableHeader(pdf *fpdf.Fpdf, cols []col) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(220, 220, 220)
	for _, c := range cols {
		pdf.CellFormat(c.width, 6, c.text, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

func (r *PDFRenderer) tableRow(pdf *fpdf.Fpdf, cols []col) {
	pdf.SetFont("Helvetica", "", 9)
	for _, c := range cols {
		pdf.CellFormat(c.width, 6, c.text, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

func (r *PDFRenderer) empty(pdf *fpdf.Fpdf, msg string) {
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 6, msg, "", 1, "L", false, 0, "")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
