// Package export renders finished runs into downloadable artifacts.
package export

import (
	"context"
	"fmt"

	"github.com/compintel/compradar/internal/model"
)

// Format is a supported export format.
type Format string

const (
	FormatCSV Format = "csv" // ZIP bundle of CSV files
	FormatPDF Format = "pdf"
)

// File is a rendered export artifact.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Renderer turns the run projection into one artifact format.
type Renderer interface {
	Format() Format
	ContentType() string
	Filename(runID int64) string
	Render(m *model.ExportModel) ([]byte, error)
}

// ResultProvider supplies the run projection. It is expected to reject
// runs that are not yet completed or partial.
type ResultProvider interface {
	Result(ctx context.Context, runID int64) (*model.ExportModel, error)
}

// Adapter dispatches export requests to the registered renderers.
type Adapter struct {
	results   ResultProvider
	renderers map[Format]Renderer
}

func NewAdapter(results ResultProvider, rs ...Renderer) *Adapter {
	a := &Adapter{results: results, renderers: make(map[Format]Renderer, len(rs))}
	for _, r := range rs {
		a.renderers[r.Format()] = r
	}
	return a
}

// Export renders the run in the requested format. Unknown formats are a
// validation error; unfinished runs surface the provider's not-ready error.
func (a *Adapter) Export(ctx context.Context, runID int64, format Format) (*File, error) {
	r, ok := a.renderers[format]
	if !ok {
		return nil, model.Validationf("unsupported export format %q", format)
	}
	m, err := a.results.Result(ctx, runID)
	if err != nil {
		return nil, err
	}
	data, err := r.Render(m)
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", format, err)
	}
	return &File{Name: r.Filename(runID), ContentType: r.ContentType(), Data: data}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
