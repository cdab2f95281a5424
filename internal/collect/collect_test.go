package collect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/compintel/compradar/internal/model"
	"github.com/compintel/compradar/internal/search"
	"github.com/compintel/compradar/internal/signal"
	"github.com/compintel/compradar/internal/store"
)

// fakeSearcher answers per-query from canned responses or errors.
type fakeSearcher struct {
	mu        sync.Mutex
	responses map[string]*search.Response
	errs      map[string]error
	calls     map[string]int
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		responses: map[string]*search.Response{},
		errs:      map[string]error{},
		calls:     map[string]int{},
	}
}

func (f *fakeSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.Query]++
	if err, ok := f.errs[req.Query]; ok {
		return nil, err
	}
	if resp, ok := f.responses[req.Query]; ok {
		return resp, nil
	}
	return &search.Response{}, nil
}

func (f *fakeSearcher) callCount(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[query]
}

func result(url, title, published string) search.Result {
	return search.Result{
		Title:         title,
		URL:           url,
		Content:       "Acme announced strong growth and a new product launch today, well beyond forecasts.",
		PublishedDate: published,
	}
}

func newStage(t *testing.T, f *fakeSearcher, st store.Store) *Stage {
	t.Helper()
	s := NewStage(f, st, signal.NewLexiconExtractor(), nil, nil, Config{Workers: 2, Retries: 3, Backoff: time.Millisecond})
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return s
}

func seedRun(t *testing.T, st *store.Memory, names ...string) (*model.AnalysisRun, []*model.Competitor) {
	t.Helper()
	ctx := context.Background()
	var comps []*model.Competitor
	var ids []int64
	for _, n := range names {
		c := &model.Competitor{Name: n}
		require.NoError(t, st.CreateCompetitor(ctx, c))
		comps = append(comps, c)
		ids = append(ids, c.ID)
	}
	run, err := st.CreateRun(ctx, ids, model.RunOptions{MaxDocs: 10})
	require.NoError(t, err)
	return run, comps
}

func TestCollectPersistsMentions(t *testing.T) {
	st := store.NewMemory()
	run, comps := seedRun(t, st, "Acme")

	f := newFakeSearcher()
	f.responses["Acme"] = &search.Response{Results: []search.Result{
		result("https://news.example.com/a", "a", "2026-08-01"),
		result("https://news.example.com/b", "b", "2026-08-02"),
		result("https://news.example.com/c", "c", "2026-08-03"),
	}}

	res, err := newStage(t, f, st).Collect(context.Background(), run, comps)
	require.NoError(t, err)
	require.Equal(t, 3, res.ByCompetitor[comps[0].ID].Mentions)

	mentions, _ := st.MentionsByRun(context.Background(), run.ID)
	require.Len(t, mentions, 3)
	for _, mn := range mentions {
		require.NotZero(t, mn.PublishedAt)
		require.InDelta(t, 0, mn.Sentiment, 1)
	}
}

func TestCollectIsolatesBranchFailure(t *testing.T) {
	st := store.NewMemory()
	run, comps := seedRun(t, st, "Acme", "Globex")

	f := newFakeSearcher()
	f.responses["Acme"] = &search.Response{Results: []search.Result{
		result("https://news.example.com/a", "a", "2026-08-01"),
		result("https://news.example.com/b", "b", "2026-08-02"),
		result("https://news.example.com/c", "c", "2026-08-03"),
	}}
	f.errs["Globex"] = fmt.Errorf("bad key: %w", model.ErrProviderPermanent)

	res, err := newStage(t, f, st).Collect(context.Background(), run, comps)
	require.NoError(t, err, "provider failure must not fail the stage")

	require.Equal(t, 3, res.ByCompetitor[comps[0].ID].Mentions)
	require.Error(t, res.ByCompetitor[comps[1].ID].Err)
	require.Equal(t, 0, res.ByCompetitor[comps[1].ID].Mentions)
	require.Equal(t, 1, res.Succeeded())

	// Permanent errors surface immediately, no retries.
	require.Equal(t, 1, f.callCount("Globex"))
}

func TestCollectRetriesTransientThenFails(t *testing.T) {
	st := store.NewMemory()
	run, comps := seedRun(t, st, "Acme", "Globex")

	f := newFakeSearcher()
	f.errs["Acme"] = fmt.Errorf("429: %w", model.ErrProviderTransient)
	f.errs["Globex"] = fmt.Errorf("timeout: %w", model.ErrProviderTransient)

	res, err := newStage(t, f, st).Collect(context.Background(), run, comps)
	require.NoError(t, err)
	require.Equal(t, 0, res.Succeeded())
	require.Equal(t, 0, res.TotalMentions())

	for _, c := range comps {
		require.ErrorIs(t, res.ByCompetitor[c.ID].Err, model.ErrProviderTransient)
		require.Equal(t, 3, f.callCount(c.Name), "transient errors retried to the budget")
	}

	mentions, _ := st.MentionsByRun(context.Background(), run.ID)
	require.Empty(t, mentions, "no mentions persisted when every branch fails")
}

func TestCollectSkipsUnnormalizableDocs(t *testing.T) {
	st := store.NewMemory()
	run, comps := seedRun(t, st, "Acme")

	empty := result("https://news.example.com/empty", "no body", "2026-08-01")
	empty.Content = ""
	badDate := result("https://news.example.com/baddate", "bad date", "sometime last week-ish???")

	f := newFakeSearcher()
	f.responses["Acme"] = &search.Response{Results: []search.Result{
		result("https://news.example.com/a", "a", "2026-08-01"),
		empty,
		badDate,
	}}

	res, err := newStage(t, f, st).Collect(context.Background(), run, comps)
	require.NoError(t, err)
	branch := res.ByCompetitor[comps[0].ID]
	require.Equal(t, 1, branch.Mentions)
	require.Equal(t, 2, branch.Skipped)
}

func TestCollectDedupesWithinBranch(t *testing.T) {
	st := store.NewMemory()
	run, comps := seedRun(t, st, "Acme")

	f := newFakeSearcher()
	f.responses["Acme"] = &search.Response{Results: []search.Result{
		result("https://news.example.com/a", "a", "2026-08-01"),
		result("https://news.example.com/a/", "a again", "2026-08-01"),
		result("https://NEWS.example.com/a?utm_source=feed", "a third time", "2026-08-01"),
	}}

	res, err := newStage(t, f, st).Collect(context.Background(), run, comps)
	require.NoError(t, err)
	require.Equal(t, 1, res.ByCompetitor[comps[0].ID].Mentions)
}

func TestCollectResumptionIsNoOp(t *testing.T) {
	st := store.NewMemory()
	run, comps := seedRun(t, st, "Acme")

	f := newFakeSearcher()
	f.responses["Acme"] = &search.Response{Results: []search.Result{
		result("https://news.example.com/a", "a", "2026-08-01"),
		result("https://news.example.com/b", "b", "2026-08-02"),
	}}

	stage := newStage(t, f, st)
	_, err := stage.Collect(context.Background(), run, comps)
	require.NoError(t, err)
	firstCalls := f.callCount("Acme")

	// Second invocation for the same run id must not search or duplicate.
	res, err := stage.Collect(context.Background(), run, comps)
	require.NoError(t, err)
	require.Equal(t, 2, res.ByCompetitor[comps[0].ID].Mentions)
	require.Equal(t, firstCalls, f.callCount("Acme"), "resumed branch must not re-query the provider")

	mentions, _ := st.MentionsByRun(context.Background(), run.ID)
	require.Len(t, mentions, 2)
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://News.Example.com/Path/", "https://news.example.com/Path", true},
		{"https://news.example.com/a?utm_source=x&id=1", "https://news.example.com/a?id=1", true},
		{"https://news.example.com/a#section", "https://news.example.com/a", true},
		{"ftp://news.example.com/a", "", false},
		{"not a url", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := NormalizeURL(tc.in)
			if ok != tc.ok {
				t.Fatalf("NormalizeURL(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestParsePublished(t *testing.T) {
	for _, good := range []string{"2026-08-01", "2026-08-01T10:30:00Z", "Mon, 03 Aug 2026 10:00:00 GMT"} {
		if _, err := ParsePublished(good); err != nil {
			t.Errorf("ParsePublished(%q) unexpected error: %v", good, err)
		}
	}
	for _, bad := range []string{"", "   ", "yesterday-ish???"} {
		if _, err := ParsePublished(bad); err == nil {
			t.Errorf("ParsePublished(%q) expected error", bad)
		}
	}
}

func TestCollectStoreFailureIsFatal(t *testing.T) {
	st := &failingStore{Store: store.NewMemory()}
	mem := st.Store.(*store.Memory)
	run, comps := func() (*model.AnalysisRun, []*model.Competitor) {
		ctx := context.Background()
		c := &model.Competitor{Name: "Acme"}
		require.NoError(t, mem.CreateCompetitor(ctx, c))
		run, err := mem.CreateRun(ctx, []int64{c.ID}, model.RunOptions{})
		require.NoError(t, err)
		return run, []*model.Competitor{c}
	}()

	f := newFakeSearcher()
	f.responses["Acme"] = &search.Response{Results: []search.Result{
		result("https://news.example.com/a", "a", "2026-08-01"),
	}}

	_, err := newStage(t, f, st).Collect(context.Background(), run, comps)
	require.Error(t, err)
	require.True(t, errors.Is(err, model.ErrStore))
}

// failingStore fails all mention writes.
type failingStore struct {
	store.Store
}

func (f *failingStore) InsertMentions(ctx context.Context, runID int64, ms []model.NewsMention) (int, error) {
	return 0, fmt.Errorf("disk on fire: %w", model.ErrStore)
}
