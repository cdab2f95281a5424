// Package service binds the HTTP surface to the analysis engine.
package service

import (
	"context"
	stderrors "errors"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/compintel/compradar/internal/engine"
	"github.com/compintel/compradar/internal/export"
	"github.com/compintel/compradar/internal/model"
	"github.com/compintel/compradar/internal/store"
)

// AnalysisService exposes competitor CRUD and the run lifecycle. Run
// execution happens asynchronously; the start reply carries only the run
// id and its pending status.
type AnalysisService struct {
	store    store.Store
	engine   *engine.Engine
	exporter *export.Adapter
	log      *log.Helper
}

func NewAnalysisService(st store.Store, eng *engine.Engine, exporter *export.Adapter, logger log.Logger) *AnalysisService {
	return &AnalysisService{
		store:    st,
		engine:   eng,
		exporter: exporter,
		log:      log.NewHelper(logger),
	}
}

// apiErr maps the pipeline error taxonomy onto transport errors.
func apiErr(err error) error {
	switch {
	case err == nil:
		return nil
	case model.IsValidation(err):
		return kerrors.BadRequest("VALIDATION", err.Error())
	case stderrors.Is(err, model.ErrNotFound):
		return kerrors.NotFound("NOT_FOUND", err.Error())
	case stderrors.Is(err, model.ErrNotReady):
		return kerrors.Conflict("NOT_READY", err.Error())
	default:
		return kerrors.InternalServer("INTERNAL", err.Error())
	}
}

type CompetitorPayload struct {
	Name        string   `json:"name"`
	WebsiteURL  string   `json:"website_url"`
	Industry    string   `json:"industry"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases"`
	Status      string   `json:"status"`
}

type CompetitorReply struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	WebsiteURL  string    `json:"website_url"`
	Industry    string    `json:"industry"`
	Description string    `json:"description"`
	Aliases     []string  `json:"aliases"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func competitorReply(c *model.Competitor) *CompetitorReply {
	return &CompetitorReply{
		ID:          c.ID,
		Name:        c.Name,
		WebsiteURL:  c.WebsiteURL,
		Industry:    c.Industry,
		Description: c.Description,
		Aliases:     c.Aliases,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (s *AnalysisService) CreateCompetitor(ctx context.Context, req *CompetitorPayload) (*CompetitorReply, error) {
	if req.Name == "" {
		return nil, apiErr(model.Validationf("competitor name is required"))
	}
	c := &model.Competitor{
		Name:        req.Name,
		WebsiteURL:  req.WebsiteURL,
		Industry:    req.Industry,
		Description: req.Description,
		Aliases:     req.Aliases,
		Status:      req.Status,
	}
	if c.Status == "" {
		c.Status = "active"
	}
	if err := s.store.CreateCompetitor(ctx, c); err != nil {
		return nil, apiErr(err)
	}
	s.log.WithContext(ctx).Infof("competitor %d (%s) created", c.ID, c.Name)
	return competitorReply(c), nil
}

func (s *AnalysisService) GetCompetitor(ctx context.Context, id int64) (*CompetitorReply, error) {
	c, err := s.store.GetCompetitor(ctx, id)
	if err != nil {
		return nil, apiErr(err)
	}
	return competitorReply(c), nil
}

func (s *AnalysisService) ListCompetitors(ctx context.Context) ([]*CompetitorReply, error) {
	cs, err := s.store.ListCompetitors(ctx)
	if err != nil {
		return nil, apiErr(err)
	}
	out := make([]*CompetitorReply, len(cs))
	for i, c := range cs {
		out[i] = competitorReply(c)
	}
	return out, nil
}

func (s *AnalysisService) UpdateCompetitor(ctx context.Context, id int64, req *CompetitorPayload) (*CompetitorReply, error) {
	c, err := s.store.GetCompetitor(ctx, id)
	if err != nil {
		return nil, apiErr(err)
	}
	if req.Name != "" {
		c.Name = req.Name
	}
	if req.WebsiteURL != "" {
		c.WebsiteURL = req.WebsiteURL
	}
	if req.Industry != "" {
		c.Industry = req.Industry
	}
	if req.Description != "" {
		c.Description = req.Description
	}
	if req.Aliases != nil {
		c.Aliases = req.Aliases
	}
	if req.Status != "" {
		c.Status = req.Status
	}
	if err := s.store.UpdateCompetitor(ctx, c); err != nil {
		return nil, apiErr(err)
	}
	return competitorReply(c), nil
}

func (s *AnalysisService) DeleteCompetitor(ctx context.Context, id int64) error {
	return apiErr(s.store.DeleteCompetitor(ctx, id))
}

type StartRunRequest struct {
	CompetitorIDs []int64          `json:"competitor_ids"`
	Options       model.RunOptions `json:"options"`
}

type StartRunReply struct {
	RunID  int64           `json:"run_id"`
	Status model.RunStatus `json:"status"`
}

// StartRun records the run and executes it in the background. The run's
// lifetime is detached from the request context.
func (s *AnalysisService) StartRun(ctx context.Context, req *StartRunRequest) (*StartRunReply, error) {
	run, err := s.engine.StartRun(ctx, req.CompetitorIDs, req.Options)
	if err != nil {
		return nil, apiErr(err)
	}
	go func() {
		if err := s.engine.Execute(context.Background(), run.ID); err != nil {
			s.log.Errorf("run %d execution error: %v", run.ID, err)
		}
	}()
	return &StartRunReply{RunID: run.ID, Status: run.Status}, nil
}

func (s *AnalysisService) GetRunStatus(ctx context.Context, runID int64) (*model.RunStatusView, error) {
	view, err := s.engine.Status(ctx, runID)
	if err != nil {
		return nil, apiErr(err)
	}
	return view, nil
}

type RunResultReply struct {
	RunID         int64                    `json:"run_id"`
	Status        model.RunStatus          `json:"status"`
	TotalMentions int                      `json:"total_mentions"`
	Summaries     []model.AggregateSummary `json:"summaries"`
	Insights      []model.Insight          `json:"insights"`
	Errors        []model.RunError         `json:"errors,omitempty"`
}

func (s *AnalysisService) GetRunResult(ctx context.Context, runID int64) (*RunResultReply, error) {
	res, err := s.engine.Result(ctx, runID)
	if err != nil {
		return nil, apiErr(err)
	}
	return &RunResultReply{
		RunID:         res.Run.ID,
		Status:        res.Run.Status,
		TotalMentions: res.Comparison.TotalMentions,
		Summaries:     res.Comparison.Summaries,
		Insights:      res.Insights,
		Errors:        res.Run.Errors,
	}, nil
}

func (s *AnalysisService) GenerateInsights(ctx context.Context, runID int64) (*model.InsightResult, error) {
	res, err := s.engine.GenerateInsights(ctx, runID)
	if err != nil {
		return nil, apiErr(err)
	}
	return res, nil
}

type CancelRunReply struct {
	RunID     int64 `json:"run_id"`
	Cancelled bool  `json:"cancelled"`
}

func (s *AnalysisService) CancelRun(ctx context.Context, runID int64) (*CancelRunReply, error) {
	if err := s.engine.Cancel(ctx, runID); err != nil {
		return nil, apiErr(err)
	}
	return &CancelRunReply{RunID: runID, Cancelled: true}, nil
}

func (s *AnalysisService) ExportRun(ctx context.Context, runID int64, format export.Format) (*export.File, error) {
	f, err := s.exporter.Export(ctx, runID, format)
	if err != nil {
		return nil, apiErr(err)
	}
	return f, nil
}
