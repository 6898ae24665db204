package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SearxNG queries a self-hosted SearxNG instance's JSON API.
type SearxNG struct {
	client  *http.Client
	baseURL string
}

// NewSearxNG returns a provider for the given instance URL.
func NewSearxNG(baseURL string) *SearxNG {
	return &SearxNG{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (s *SearxNG) Name() string { return "searxng" }

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search queries /search with format=json.
func (s *SearxNG) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	endpoint := fmt.Sprintf("%s/search?%s", s.baseURL, url.Values{
		"q":      {query},
		"format": {"json"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websearch: building request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: searxng request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("websearch: searxng returned %d", resp.StatusCode)
	}

	var parsed searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("websearch: decoding searxng response: %w", err)
	}

	out := make([]Result, 0, limit)
	for _, r := range parsed.Results {
		if len(out) == limit {
			break
		}
		if r.URL == "" || r.Title == "" {
			continue
		}
		out = append(out, Result{Title: r.Title, Snippet: r.Content, URL: r.URL, Source: "searxng"})
	}
	return out, nil
}
