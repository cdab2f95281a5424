package search

import "context"

// Searcher is the content-search provider interface consumed by the
// collection stage. Implementations classify failures by wrapping
// model.ErrProviderTransient or model.ErrProviderPermanent.
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request is a provider-neutral search request.
type Request struct {
	Query             string
	Topic             string // "news" or "general"
	MaxResults        int
	IncludeRawContent bool
	StartDate         string // YYYY-MM-DD
	EndDate           string // YYYY-MM-DD
}

// Response is a provider-neutral search response.
type Response struct {
	Results []Result
}

// Result is a single ranked document.
type Result struct {
	Title         string
	URL           string
	Content       string
	RawContent    string
	Score         float64
	PublishedDate string
}
