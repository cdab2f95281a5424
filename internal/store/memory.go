package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/compintel/compradar/internal/model"
)

// Memory is an in-memory Store. It is safe for concurrent use and keeps
// the same dedup and compare-and-set semantics as the postgres store.
type Memory struct {
	mu sync.Mutex

	nextCompetitor int64
	nextRun        int64
	nextMention    int64
	nextInsight    int64

	competitors map[int64]*model.Competitor
	runs        map[int64]*model.AnalysisRun
	mentions    map[int64][]model.NewsMention // by run id
	insights    map[int64][]model.Insight     // by run id
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		competitors: map[int64]*model.Competitor{},
		runs:        map[int64]*model.AnalysisRun{},
		mentions:    map[int64][]model.NewsMention{},
		insights:    map[int64][]model.Insight{},
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) CreateCompetitor(ctx context.Context, c *model.Competitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCompetitor++
	c.ID = m.nextCompetitor
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = "active"
	}
	cp := *c
	m.competitors[c.ID] = &cp
	return nil
}

func (m *Memory) GetCompetitor(ctx context.Context, id int64) (*model.Competitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.competitors[id]
	if !ok {
		return nil, fmt.Errorf("competitor %d: %w", id, model.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) ListCompetitors(ctx context.Context) ([]*model.Competitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Competitor, 0, len(m.competitors))
	for _, c := range m.competitors {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateCompetitor(ctx context.Context, c *model.Competitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.competitors[c.ID]
	if !ok {
		return fmt.Errorf("competitor %d: %w", c.ID, model.ErrNotFound)
	}
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = time.Now()
	cp := *c
	m.competitors[c.ID] = &cp
	return nil
}

func (m *Memory) DeleteCompetitor(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.competitors[id]; !ok {
		return fmt.Errorf("competitor %d: %w", id, model.ErrNotFound)
	}
	// Mentions keep their competitor id: history is not rewritten when a
	// competitor disappears.
	delete(m.competitors, id)
	return nil
}

func (m *Memory) CreateRun(ctx context.Context, competitorIDs []int64, opts model.RunOptions) (*model.AnalysisRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRun++
	run := &model.AnalysisRun{
		ID:            m.nextRun,
		CompetitorIDs: append([]int64(nil), competitorIDs...),
		Status:        model.StatusPending,
		Options:       opts.Normalize(),
		CreatedAt:     time.Now(),
	}
	m.runs[run.ID] = run
	cp := cloneRun(run)
	return cp, nil
}

func (m *Memory) GetRun(ctx context.Context, id int64) (*model.AnalysisRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %d: %w", id, model.ErrNotFound)
	}
	return cloneRun(run), nil
}

func (m *Memory) UpdateRunStatus(ctx context.Context, id int64, from, to model.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("run %d: %w", id, model.ErrNotFound)
	}
	if run.Status != from {
		return fmt.Errorf("run %d is %s, not %s: %w", id, run.Status, from, model.ErrStore)
	}
	if !model.CanTransition(from, to) {
		return fmt.Errorf("illegal transition %s -> %s: %w", from, to, model.ErrStore)
	}
	now := time.Now()
	run.Status = to
	if to == model.StatusCollecting && run.StartedAt == nil {
		run.StartedAt = &now
	}
	if to.Terminal() {
		run.FinishedAt = &now
	}
	return nil
}

func (m *Memory) AppendRunError(ctx context.Context, id int64, e model.RunError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("run %d: %w", id, model.ErrNotFound)
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	run.Errors = append(run.Errors, e)
	return nil
}

func (m *Memory) RequestCancel(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("run %d: %w", id, model.ErrNotFound)
	}
	run.CancelRequested = true
	return nil
}

func (m *Memory) InsertMentions(ctx context.Context, runID int64, ms []model.NewsMention) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return 0, fmt.Errorf("run %d: %w", runID, model.ErrNotFound)
	}
	type mentionKey struct {
		competitorID int64
		url          string
	}
	seen := map[mentionKey]bool{}
	for _, existing := range m.mentions[runID] {
		seen[mentionKey{existing.CompetitorID, existing.URL}] = true
	}
	inserted := 0
	for _, mn := range ms {
		key := mentionKey{mn.CompetitorID, mn.URL}
		if seen[key] {
			continue
		}
		seen[key] = true
		m.nextMention++
		mn.ID = m.nextMention
		mn.RunID = runID
		if mn.ExtractedAt.IsZero() {
			mn.ExtractedAt = time.Now()
		}
		m.mentions[runID] = append(m.mentions[runID], mn)
		inserted++
	}
	return inserted, nil
}

func (m *Memory) MentionsByRun(ctx context.Context, runID int64) ([]model.NewsMention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.NewsMention(nil), m.mentions[runID]...), nil
}

func (m *Memory) CountMentions(ctx context.Context, runID, competitorID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, mn := range m.mentions[runID] {
		if mn.CompetitorID == competitorID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ReplaceInsights(ctx context.Context, runID int64, ins []model.Insight) ([]model.Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, fmt.Errorf("run %d: %w", runID, model.ErrNotFound)
	}
	out := make([]model.Insight, 0, len(ins))
	now := time.Now()
	for _, in := range ins {
		m.nextInsight++
		in.ID = m.nextInsight
		in.RunID = runID
		in.CreatedAt = now
		out = append(out, in)
	}
	m.insights[runID] = out
	return append([]model.Insight(nil), out...), nil
}

func (m *Memory) InsightsByRun(ctx context.Context, runID int64) ([]model.Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Insight(nil), m.insights[runID]...), nil
}

func cloneRun(run *model.AnalysisRun) *model.AnalysisRun {
	cp := *run
	cp.CompetitorIDs = append([]int64(nil), run.CompetitorIDs...)
	cp.Errors = append([]model.RunError(nil), run.Errors...)
	if run.StartedAt != nil {
		t := *run.StartedAt
		cp.StartedAt = &t
	}
	if run.FinishedAt != nil {
		t := *run.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
