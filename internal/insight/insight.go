// Package insight turns a run's cross-competitor comparison into strategic
// insights via a chat model.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/compintel/compradar/internal/config"
	"github.com/compintel/compradar/internal/logger"
	"github.com/compintel/compradar/internal/metrics"
	"github.com/compintel/compradar/internal/model"
)

// ChatModel is the narrow slice of the eino chat model the stage needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// NewChatModel builds the OpenAI-compatible eino model from config.
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (ChatModel, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("chat model init: %w", err)
	}
	return cm, nil
}

// Config controls retries and the per-attempt timeout.
type Config struct {
	Retries int           // generation attempts, default 3
	Backoff time.Duration // base delay, doubled per retry, default 2s
	Timeout time.Duration // per-attempt deadline, default 60s
}

func (c Config) normalize() Config {
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 2 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// Stage generates and persists insights for a run. Regeneration replaces
// the run's previous set.
type Stage struct {
	cm      ChatModel
	limiter *rate.Limiter
	cfg     Config

	sleep func(ctx context.Context, d time.Duration) error
}

func New(cm ChatModel, limiter *rate.Limiter, cfg Config) *Stage {
	return &Stage{cm: cm, limiter: limiter, cfg: cfg.normalize(), sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// rawInsight is the wire shape the model is asked to produce.
type rawInsight struct {
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	CompetitorIDs []int64  `json:"competitor_ids"`
	Confidence    *float64 `json:"confidence"`
}

type rawResponse struct {
	Insights []rawInsight `json:"insights"`
}

// Generate asks the model for insights over the comparison. Malformed
// entries are dropped and counted; a fully unparseable response is retried
// within the budget, then surfaces as an unparseable-response error.
// Transient provider errors are retried with exponential backoff.
func (s *Stage) Generate(ctx context.Context, run *model.AnalysisRun, cmp *model.Comparison) (*model.InsightResult, error) {
	prompt := buildPrompt(cmp)
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: prompt},
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.cfg.Backoff*time.Duration(1<<(attempt-1))); err != nil {
				return nil, err
			}
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		res, err := s.generateOnce(ctx, run, messages)
		if err == nil {
			metrics.InsightsGeneratedTotal.Add(float64(len(res.Insights)))
			return res, nil
		}
		lastErr = err
		if !model.Retryable(err) {
			return nil, err
		}
		logger.Log.Warnf("insight attempt %d for run %d failed: %v", attempt+1, run.ID, err)
	}
	return nil, lastErr
}

func (s *Stage) generateOnce(ctx context.Context, run *model.AnalysisRun, messages []*schema.Message) (*model.InsightResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.cm.Generate(callCtx, messages)
	if err != nil {
		return nil, classifyModelErr(ctx, err)
	}
	return s.parse(run, resp.Content)
}

// parse unwraps markdown fences, decodes the JSON payload and validates
// every entry, dropping the malformed ones.
func (s *Stage) parse(run *model.AnalysisRun, content string) (*model.InsightResult, error) {
	clean := strings.TrimSpace(content)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var raw rawResponse
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUnparseableResponse, err)
	}
	if len(raw.Insights) == 0 {
		return nil, fmt.Errorf("%w: empty insight list", model.ErrUnparseableResponse)
	}

	known := make(map[int64]bool, len(run.CompetitorIDs))
	for _, id := range run.CompetitorIDs {
		known[id] = true
	}

	res := &model.InsightResult{}
	for _, r := range raw.Insights {
		ins, ok := validate(run, r, known)
		if !ok {
			res.Dropped++
			logger.Log.Warnf("dropping malformed insight for run %d: type=%q", run.ID, r.Type)
			continue
		}
		res.Insights = append(res.Insights, ins)
	}
	if len(res.Insights) == 0 {
		return nil, fmt.Errorf("%w: all %d entries malformed", model.ErrUnparseableResponse, res.Dropped)
	}
	return res, nil
}

func validate(run *model.AnalysisRun, r rawInsight, known map[int64]bool) (model.Insight, bool) {
	kind := model.InsightKind(strings.ToLower(strings.TrimSpace(r.Type)))
	text := strings.TrimSpace(r.Description)
	if !kind.Valid() || text == "" {
		return model.Insight{}, false
	}
	if r.Confidence != nil && (*r.Confidence < 0 || *r.Confidence > 1) {
		return model.Insight{}, false
	}
	ids := make([]int64, 0, len(r.CompetitorIDs))
	for _, id := range r.CompetitorIDs {
		if known[id] {
			ids = append(ids, id)
		}
	}
	return model.Insight{
		RunID:         run.ID,
		Kind:          kind,
		Title:         strings.TrimSpace(r.Title),
		Text:          text,
		CompetitorIDs: ids,
		Confidence:    r.Confidence,
		CreatedAt:     time.Now().UTC(),
	}, true
}

func classifyModelErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return fmt.Errorf("%w: %v", model.ErrProviderTransient, err)
	}
	return fmt.Errorf("%w: %v", model.ErrProviderPermanent, err)
}

const systemPrompt = "You are a JSON generator. Output a single JSON object and nothing else."

// buildPrompt renders the comparison into the analyst prompt.
func buildPrompt(cmp *model.Comparison) string {
	var sb strings.Builder
	sb.WriteString("Competitive landscape summary across the tracked companies:\n\n")
	sb.WriteString(fmt.Sprintf("Total news mentions in the window: %d\n\n", cmp.TotalMentions))
	for _, s := range cmp.Summaries {
		sb.WriteString(fmt.Sprintf("Competitor %d (%s):\n", s.CompetitorID, s.CompetitorName))
		sb.WriteString(fmt.Sprintf("  mentions: %d, share of voice: %.1f%%, mean sentiment: %.2f\n",
			s.MentionCount, s.ShareOfVoice*100, s.MeanSentiment))
		sb.WriteString(fmt.Sprintf("  visibility score: %.0f/100, trend: %s\n", s.VisibilityScore, s.TrendDirection))
		if len(s.TopTopics) > 0 {
			topics := make([]string, 0, len(s.TopTopics))
			for _, t := range s.TopTopics {
				topics = append(topics, fmt.Sprintf("%s (%d)", t.Topic, t.Count))
			}
			sb.WriteString("  top topics: " + strings.Join(topics, ", ") + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`You are a senior competitive intelligence analyst. Based on the data above,
produce strategic insights. Return strictly the following JSON shape with no markdown fences:
{
	"insights": [
		{
			"type": "opportunity",
			"title": "short headline",
			"description": "2-3 sentence analysis",
			"competitor_ids": [1, 2],
			"confidence": 0.8
		}
	]
}
Rules: "type" must be one of "opportunity", "risk", "recommendation".
"competitor_ids" lists the competitors the insight is about, using the numeric ids given above.
"confidence" is a number between 0 and 1. Produce 3 to 6 insights covering all three types.`)
	return sb.String()
}
