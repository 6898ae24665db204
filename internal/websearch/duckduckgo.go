package websearch

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const ddgEndpoint = "https://html.duckduckgo.com/html/"

var (
	ddgResultRE  = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	ddgSnippetRE = regexp.MustCompile(`(?s)<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
	tagRE        = regexp.MustCompile(`<[^>]+>`)
)

// DuckDuckGo scrapes the HTML search endpoint, which needs no API key.
type DuckDuckGo struct {
	client   *http.Client
	endpoint string
}

// NewDuckDuckGo returns the DuckDuckGo provider.
func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: ddgEndpoint,
	}
}

// Name returns the provider name.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search fetches and parses the HTML results page.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("websearch: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "veritas/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: duckduckgo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("websearch: duckduckgo returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("websearch: reading response: %w", err)
	}

	return parseDDGHTML(string(body), limit), nil
}

func parseDDGHTML(page string, limit int) []Result {
	links := ddgResultRE.FindAllStringSubmatch(page, -1)
	snippets := ddgSnippetRE.FindAllStringSubmatch(page, -1)

	var out []Result
	for i, link := range links {
		if len(out) == limit {
			break
		}
		u := cleanDDGURL(link[1])
		title := stripTags(link[2])
		if u == "" || title == "" {
			continue
		}
		snippet := ""
		if i < len(snippets) {
			snippet = stripTags(snippets[i][1])
		}
		out = append(out, Result{Title: title, Snippet: snippet, URL: u, Source: "duckduckgo"})
	}
	return out
}

// cleanDDGURL unwraps the redirect links the HTML endpoint serves
// (//duckduckgo.com/l/?uddg=<encoded>).
func cleanDDGURL(raw string) string {
	raw = html.UnescapeString(raw)
	if strings.Contains(raw, "uddg=") {
		if u, err := url.Parse(raw); err == nil {
			if target := u.Query().Get("uddg"); target != "" {
				return target
			}
		}
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

func stripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRE.ReplaceAllString(s, "")))
}
