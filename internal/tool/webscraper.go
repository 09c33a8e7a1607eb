package tool

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-resty/resty/v2"
)

const scraperMaxOutput = 10_000

// WebScraperTool fetches a web page and extracts its content as markdown
// text or as a link listing.
type WebScraperTool struct{}

func init() {
	Register(&WebScraperTool{})
}

func (*WebScraperTool) Name() string { return "web_scraper" }

func (t *WebScraperTool) Execute(ctx context.Context, input string, config map[string]any) (string, error) {
	operation := cfgString(config, "operation", "extract_text")
	timeout := cfgInt(config, "timeout", 15)
	ua := cfgString(config, "user_agent", "Mozilla/5.0 (compatible; Gennaro/1.0)")

	pageURL := strings.TrimSpace(input)
	if pageURL == "" {
		return "[web_scraper] No URL provided. Pass a URL as input.", nil
	}
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		pageURL = "https://" + pageURL
		parsed, err = url.Parse(pageURL)
	}
	if err != nil || parsed.Host == "" {
		return fmt.Sprintf("[web_scraper] Invalid URL: %s", strings.TrimSpace(input)), nil
	}

	client := resty.New().SetTimeout(time.Duration(timeout) * time.Second)
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("User-Agent", ua).
		Get(pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return fmt.Sprintf("[web_scraper] Fetch error: %v", err), nil
	}
	if resp.IsError() {
		return fmt.Sprintf("[web_scraper] Fetch error: status %d", resp.StatusCode()), nil
	}
	html := string(resp.Body())

	switch operation {
	case "extract_text":
		return extractPageText(html, pageURL), nil
	case "extract_links":
		return extractPageLinks(html, pageURL), nil
	}
	return fmt.Sprintf("[web_scraper] Unknown operation: %s", operation), nil
}

var (
	titleRe  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	anchorRe = regexp.MustCompile(`(?is)<a\s[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
)

func extractPageText(html, pageURL string) string {
	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return fmt.Sprintf("[web_scraper] Parse error: %v", err)
	}

	title := ""
	if m := titleRe.FindStringSubmatch(html); m != nil {
		title = strings.TrimSpace(m[1])
	}

	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n", title)
	} else {
		fmt.Fprintf(&b, "# %s\n", pageURL)
	}
	fmt.Fprintf(&b, "Source: %s\n\n", pageURL)
	b.WriteString(strings.TrimSpace(markdown))

	out := b.String()
	if len(out) > scraperMaxOutput {
		out = out[:scraperMaxOutput] + fmt.Sprintf("\n\n... (truncated, %d total chars)", len(out))
	}
	return out
}

func extractPageLinks(html, pageURL string) string {
	base, _ := url.Parse(pageURL)
	matches := anchorRe.FindAllStringSubmatch(html, -1)

	type link struct{ text, url string }
	var links []link
	for _, m := range matches {
		href := strings.TrimSpace(m[1])
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			continue
		}
		absolute := href
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				absolute = base.ResolveReference(ref).String()
			}
		}
		text := strings.TrimSpace(htmlTagRe.ReplaceAllString(m[2], ""))
		if text == "" {
			text = "[no text]"
		}
		links = append(links, link{text: text, url: absolute})
	}

	if len(links) == 0 {
		return fmt.Sprintf("[web_scraper] No links found on %s", pageURL)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Links extracted from %s (%d total)\n\n", pageURL, len(links))
	for i, l := range links {
		if i >= 200 {
			fmt.Fprintf(&b, "\n... (%d more links)", len(links)-200)
			break
		}
		text := l.text
		if len(text) > 80 {
			text = text[:80]
		}
		fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, text, l.url)
	}
	return strings.TrimRight(b.String(), "\n")
}
