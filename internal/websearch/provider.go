// Package websearch retrieves web results from keyless search backends.
// Results feed the context bundle as WEB sources; callers treat failures
// as a missing source, never as a fatal error.
package websearch

import (
	"context"
	"fmt"
	"strings"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

// Provider performs one search against a backend.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Name() string
}

// NewProvider selects a backend by name. searxURL is only consulted for
// searxng.
func NewProvider(name, searxURL string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "duckduckgo", "ddg":
		return NewDuckDuckGo(), nil
	case "searxng", "searx":
		if strings.TrimSpace(searxURL) == "" {
			return nil, fmt.Errorf("websearch: searxng requires a base URL")
		}
		return NewSearxNG(searxURL), nil
	default:
		return nil, fmt.Errorf("websearch: unknown provider %q (supported: duckduckgo, searxng)", name)
	}
}
