package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultSearchEndpoint = "https://serpapi.com/search.json"
	defaultSearchResults  = 20
	searchTimeout         = 20 * time.Second
)

// SearchResult is one organic search hit.
type SearchResult struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Searcher finds candidate sources for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// WebSearcher queries a SerpAPI-compatible JSON search endpoint.
type WebSearcher struct {
	fetcher  Fetcher
	endpoint string
	apiKey   string
	results  int
}

func NewWebSearcher(fetcher Fetcher, endpoint, apiKey string) (*WebSearcher, error) {
	if apiKey == "" {
		return nil, errors.New("search API key is required")
	}
	if endpoint == "" {
		endpoint = DefaultSearchEndpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	return &WebSearcher{
		fetcher:  fetcher,
		endpoint: endpoint,
		apiKey:   apiKey,
		results:  defaultSearchResults,
	}, nil
}

type searchResponse struct {
	OrganicResults []SearchResult `json:"organic_results"`
	Error          string         `json:"error"`
}

func (s *WebSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	u, _ := url.Parse(s.endpoint)
	q := u.Query()
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("api_key", s.apiKey)
	q.Set("num", strconv.Itoa(s.results))
	u.RawQuery = q.Encode()

	resp, err := s.fetcher.Get(ctx, u.String(), searchTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to query search endpoint: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("search endpoint returned HTTP %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("search endpoint error: %s", body.Error)
	}

	results := body.OrganicResults[:0]
	for _, r := range body.OrganicResults {
		if r.Link != "" {
			results = append(results, r)
		}
	}
	return results, nil
}
