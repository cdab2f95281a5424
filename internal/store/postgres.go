package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/compintel/compradar/internal/config"
	"github.com/compintel/compradar/internal/model"
)

// Postgres is the production Store backed by lib/pq.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres opens a connection and ensures the schema exists.
func NewPostgres(cfg config.DBConfig) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Postgres{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Postgres) Close() error {
	return s.db.Close()
}

func (s *Postgres) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS competitors (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			website_url TEXT NOT NULL DEFAULT '',
			industry TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			aliases JSONB NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS analysis_runs (
			id BIGSERIAL PRIMARY KEY,
			competitor_ids JSONB NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			options JSONB NOT NULL DEFAULT '{}',
			cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS run_errors (
			id BIGSERIAL PRIMARY KEY,
			run_id BIGINT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			stage TEXT NOT NULL,
			competitor_id BIGINT NOT NULL DEFAULT 0,
			message TEXT NOT NULL,
			at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS news_mentions (
			id BIGSERIAL PRIMARY KEY,
			run_id BIGINT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			competitor_id BIGINT NOT NULL,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			published_at TIMESTAMPTZ,
			excerpt TEXT NOT NULL DEFAULT '',
			sentiment DOUBLE PRECISION NOT NULL DEFAULT 0,
			topics JSONB NOT NULL DEFAULT '[]',
			extracted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (run_id, competitor_id, url)
		);

		CREATE TABLE IF NOT EXISTS insights (
			id BIGSERIAL PRIMARY KEY,
			run_id BIGINT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			competitor_ids JSONB NOT NULL DEFAULT '[]',
			confidence DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_mentions_run ON news_mentions (run_id);
		CREATE INDEX IF NOT EXISTS idx_insights_run ON insights (run_id);
		CREATE INDEX IF NOT EXISTS idx_run_errors_run ON run_errors (run_id);
	`)
	return err
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, model.ErrStore)
}

func (s *Postgres) CreateCompetitor(ctx context.Context, c *model.Competitor) error {
	if c.Status == "" {
		c.Status = "active"
	}
	aliases, _ := json.Marshal(c.Aliases)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO competitors (name, website_url, industry, description, aliases, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		c.Name, c.WebsiteURL, c.Industry, c.Description, aliases, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return storeErr("create competitor", err)
	}
	return nil
}

func (s *Postgres) GetCompetitor(ctx context.Context, id int64) (*model.Competitor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, website_url, industry, description, aliases, status, created_at, updated_at
		FROM competitors WHERE id = $1`, id)
	c, err := scanCompetitor(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("competitor %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get competitor", err)
	}
	return c, nil
}

func (s *Postgres) ListCompetitors(ctx context.Context) ([]*model.Competitor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, website_url, industry, description, aliases, status, created_at, updated_at
		FROM competitors ORDER BY id`)
	if err != nil {
		return nil, storeErr("list competitors", err)
	}
	defer rows.Close()

	var out []*model.Competitor
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			return nil, storeErr("scan competitor", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompetitor(r rowScanner) (*model.Competitor, error) {
	var c model.Competitor
	var aliases []byte
	err := r.Scan(&c.ID, &c.Name, &c.WebsiteURL, &c.Industry, &c.Description, &aliases, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(aliases) > 0 {
		_ = json.Unmarshal(aliases, &c.Aliases)
	}
	return &c, nil
}

func (s *Postgres) UpdateCompetitor(ctx context.Context, c *model.Competitor) error {
	aliases, _ := json.Marshal(c.Aliases)
	res, err := s.db.ExecContext(ctx, `
		UPDATE competitors
		SET name = $2, website_url = $3, industry = $4, description = $5, aliases = $6, status = $7, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.WebsiteURL, c.Industry, c.Description, aliases, c.Status)
	if err != nil {
		return storeErr("update competitor", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("competitor %d: %w", c.ID, model.ErrNotFound)
	}
	return nil
}

func (s *Postgres) DeleteCompetitor(ctx context.Context, id int64) error {
	// Mentions and insights reference competitors by id only; rows from
	// old runs survive the delete.
	res, err := s.db.ExecContext(ctx, `DELETE FROM competitors WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete competitor", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("competitor %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *Postgres) CreateRun(ctx context.Context, competitorIDs []int64, opts model.RunOptions) (*model.AnalysisRun, error) {
	opts = opts.Normalize()
	ids, _ := json.Marshal(competitorIDs)
	optsJSON, _ := json.Marshal(opts)

	run := &model.AnalysisRun{
		CompetitorIDs: append([]int64(nil), competitorIDs...),
		Status:        model.StatusPending,
		Options:       opts,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO analysis_runs (competitor_ids, status, options)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		ids, run.Status, optsJSON,
	).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return nil, storeErr("create run", err)
	}
	return run, nil
}

func (s *Postgres) GetRun(ctx context.Context, id int64) (*model.AnalysisRun, error) {
	var run model.AnalysisRun
	var ids, optsJSON []byte
	var started, finished sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, competitor_ids, status, options, cancel_requested, created_at, started_at, finished_at
		FROM analysis_runs WHERE id = $1`, id,
	).Scan(&run.ID, &ids, &run.Status, &optsJSON, &run.CancelRequested, &run.CreatedAt, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get run", err)
	}
	_ = json.Unmarshal(ids, &run.CompetitorIDs)
	_ = json.Unmarshal(optsJSON, &run.Options)
	if started.Valid {
		run.StartedAt = &started.Time
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, competitor_id, message, at FROM run_errors WHERE run_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, storeErr("get run errors", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e model.RunError
		if err := rows.Scan(&e.Stage, &e.CompetitorID, &e.Message, &e.At); err != nil {
			return nil, storeErr("scan run error", err)
		}
		run.Errors = append(run.Errors, e)
	}
	return &run, rows.Err()
}

func (s *Postgres) UpdateRunStatus(ctx context.Context, id int64, from, to model.RunStatus) error {
	if !model.CanTransition(from, to) {
		return fmt.Errorf("illegal transition %s -> %s: %w", from, to, model.ErrStore)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_runs
		SET status = $3,
		    started_at = CASE WHEN $3 = 'collecting' AND started_at IS NULL THEN NOW() ELSE started_at END,
		    finished_at = CASE WHEN $3 IN ('completed', 'partial', 'failed') THEN NOW() ELSE finished_at END
		WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return storeErr("update run status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %d not in %s: %w", id, from, model.ErrStore)
	}
	return nil
}

func (s *Postgres) AppendRunError(ctx context.Context, id int64, e model.RunError) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_errors (run_id, stage, competitor_id, message, at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, e.Stage, e.CompetitorID, e.Message, e.At)
	if err != nil {
		return storeErr("append run error", err)
	}
	return nil
}

func (s *Postgres) RequestCancel(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE analysis_runs SET cancel_requested = TRUE WHERE id = $1`, id)
	if err != nil {
		return storeErr("request cancel", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *Postgres) InsertMentions(ctx context.Context, runID int64, ms []model.NewsMention) (int, error) {
	if len(ms) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("begin mentions tx", err)
	}
	inserted := 0
	for _, mn := range ms {
		topics, _ := json.Marshal(mn.Topics)
		var pub sql.NullTime
		if !mn.PublishedAt.IsZero() {
			pub = sql.NullTime{Time: mn.PublishedAt, Valid: true}
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO news_mentions (run_id, competitor_id, url, title, source, published_at, excerpt, sentiment, topics)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (run_id, competitor_id, url) DO NOTHING`,
			runID, mn.CompetitorID, mn.URL, mn.Title, mn.Source, pub, mn.Excerpt, mn.Sentiment, topics)
		if err != nil {
			tx.Rollback()
			return 0, storeErr("insert mention", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr("commit mentions", err)
	}
	return inserted, nil
}

func (s *Postgres) MentionsByRun(ctx context.Context, runID int64) ([]model.NewsMention, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, competitor_id, url, title, source, published_at, excerpt, sentiment, topics, extracted_at
		FROM news_mentions WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, storeErr("query mentions", err)
	}
	defer rows.Close()

	var out []model.NewsMention
	for rows.Next() {
		var mn model.NewsMention
		var topics []byte
		var pub sql.NullTime
		if err := rows.Scan(&mn.ID, &mn.RunID, &mn.CompetitorID, &mn.URL, &mn.Title, &mn.Source, &pub, &mn.Excerpt, &mn.Sentiment, &topics, &mn.ExtractedAt); err != nil {
			return nil, storeErr("scan mention", err)
		}
		if pub.Valid {
			mn.PublishedAt = pub.Time
		}
		_ = json.Unmarshal(topics, &mn.Topics)
		out = append(out, mn)
	}
	return out, rows.Err()
}

func (s *Postgres) CountMentions(ctx context.Context, runID, competitorID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM news_mentions WHERE run_id = $1 AND competitor_id = $2`,
		runID, competitorID).Scan(&n)
	if err != nil {
		return 0, storeErr("count mentions", err)
	}
	return n, nil
}

func (s *Postgres) ReplaceInsights(ctx context.Context, runID int64, ins []model.Insight) ([]model.Insight, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin insights tx", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM insights WHERE run_id = $1`, runID); err != nil {
		tx.Rollback()
		return nil, storeErr("clear insights", err)
	}
	out := make([]model.Insight, 0, len(ins))
	for _, in := range ins {
		ids, _ := json.Marshal(in.CompetitorIDs)
		var conf sql.NullFloat64
		if in.Confidence != nil {
			conf = sql.NullFloat64{Float64: *in.Confidence, Valid: true}
		}
		in.RunID = runID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO insights (run_id, kind, title, text, competitor_ids, confidence)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,
			runID, in.Kind, in.Title, in.Text, ids, conf,
		).Scan(&in.ID, &in.CreatedAt)
		if err != nil {
			tx.Rollback()
			return nil, storeErr("insert insight", err)
		}
		out = append(out, in)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit insights", err)
	}
	return out, nil
}

func (s *Postgres) InsightsByRun(ctx context.Context, runID int64) ([]model.Insight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, kind, title, text, competitor_ids, confidence, created_at
		FROM insights WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, storeErr("query insights", err)
	}
	defer rows.Close()

	var out []model.Insight
	for rows.Next() {
		var in model.Insight
		var ids []byte
		var conf sql.NullFloat64
		if err := rows.Scan(&in.ID, &in.RunID, &in.Kind, &in.Title, &in.Text, &ids, &conf, &in.CreatedAt); err != nil {
			return nil, storeErr("scan insight", err)
		}
		_ = json.Unmarshal(ids, &in.CompetitorIDs)
		if conf.Valid {
			v := conf.Float64
			in.Confidence = &v
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
