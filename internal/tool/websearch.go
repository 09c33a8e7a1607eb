package tool

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebSearchTool searches the web via the DuckDuckGo Lite HTML interface,
// which requires no API key.
type WebSearchTool struct {
	// BaseURL is overridable for tests.
	BaseURL string
}

func init() {
	Register(&WebSearchTool{})
}

func (*WebSearchTool) Name() string { return "web_search" }

var (
	ddgLinkRe    = regexp.MustCompile(`(?s)<a[^>]+rel="nofollow"[^>]+href="([^"]+)"[^>]*>\s*(.*?)\s*</a>`)
	ddgSnippetRe = regexp.MustCompile(`(?s)<td[^>]*class="result-snippet"[^>]*>(.*?)</td>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
)

func (t *WebSearchTool) Execute(ctx context.Context, input string, config map[string]any) (string, error) {
	maxResults := cfgInt(config, "max_results", 5)
	query := strings.TrimSpace(input)

	base := t.BaseURL
	if base == "" {
		base = "https://lite.duckduckgo.com/lite/"
	}

	client := resty.New().SetTimeout(15 * time.Second)
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; Gennaro/1.0)").
		Get(base)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return fmt.Sprintf("Search error: %v", err), nil
	}
	if resp.IsError() {
		return fmt.Sprintf("Search error: status %d", resp.StatusCode()), nil
	}

	results := parseDDGLite(string(resp.Body()), maxResults)
	if len(results) == 0 {
		return "No search results found for: " + query, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for: %s\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, r.title)
		fmt.Fprintf(&b, "   %s\n", r.snippet)
		fmt.Fprintf(&b, "   URL: %s\n\n", r.url)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type searchResult struct {
	title, url, snippet string
}

func parseDDGLite(html string, maxResults int) []searchResult {
	links := ddgLinkRe.FindAllStringSubmatch(html, -1)
	snippets := ddgSnippetRe.FindAllStringSubmatch(html, -1)

	var results []searchResult
	for i, m := range links {
		if len(results) >= maxResults {
			break
		}
		url := m[1]
		title := strings.TrimSpace(htmlTagRe.ReplaceAllString(m[2], ""))
		if url == "" || title == "" {
			continue
		}
		snippet := ""
		if i < len(snippets) {
			snippet = strings.TrimSpace(htmlTagRe.ReplaceAllString(snippets[i][1], ""))
		}
		results = append(results, searchResult{title: title, url: url, snippet: snippet})
	}
	return results
}
