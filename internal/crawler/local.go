package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
)

// LocalBackend renders pages with a headless browser instead of calling an
// external crawl service. It serves the same two tools with the same body
// shapes, so the rest of the pipeline cannot tell the backends apart.
type LocalBackend struct {
	Timeout  time.Duration
	MaxChars int
	MaxLinks int
}

func NewLocalBackend(timeout time.Duration, maxChars, maxLinks int) *LocalBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxChars <= 0 {
		maxChars = 20000
	}
	if maxLinks <= 0 {
		maxLinks = 100
	}
	return &LocalBackend{Timeout: timeout, MaxChars: maxChars, MaxLinks: maxLinks}
}

func (b *LocalBackend) Fetch(ctx context.Context, tool, endpoint string) (int, []byte, error) {
	target, err := targetURL(endpoint)
	if err != nil {
		return http.StatusBadRequest, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	switch tool {
	case ToolSiteLinks:
		return b.fetchSiteLinks(ctx, target)
	case ToolExternalContent:
		return b.fetchContent(ctx, target)
	default:
		return 0, nil, fmt.Errorf("unknown tool: %s", tool)
	}
}

func (b *LocalBackend) fetchContent(ctx context.Context, target string) (int, []byte, error) {
	html, err := fetchHTML(ctx, target)
	if err != nil {
		return 599, nil, fmt.Errorf("failed to render page: %w", err)
	}
	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(target))
	if err != nil {
		return http.StatusOK, nil, fmt.Errorf("failed to extract content: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > b.MaxChars {
		text = text[:b.MaxChars]
	}
	body, err := json.Marshal(map[string]interface{}{
		"url":         target,
		"title":       strings.TrimSpace(article.Title),
		"description": strings.TrimSpace(article.Excerpt),
		"content":     text,
		"status":      "success",
	})
	return http.StatusOK, body, err
}

func (b *LocalBackend) fetchSiteLinks(ctx context.Context, target string) (int, []byte, error) {
	var anchors []map[string]string
	err := withBrowser(ctx, target, chromedp.Evaluate(`
		Array.from(document.querySelectorAll("a[href]")).map(a => ({
			href: a.href,
			text: (a.textContent || "").trim().slice(0, 200),
			title: a.title || ""
		}))`, &anchors))
	if err != nil {
		return 599, nil, fmt.Errorf("failed to collect links: %w", err)
	}

	base := mustParseURL(target)
	links := make([]string, 0, len(anchors))
	metadata := map[string]map[string]string{}
	seen := map[string]bool{}
	for _, a := range anchors {
		href := normalizeHref(base, a["href"])
		if href == "" || seen[href] {
			continue
		}
		seen[href] = true
		links = append(links, href)
		metadata[href] = map[string]string{"text": a["text"], "title": a["title"]}
		if len(links) >= b.MaxLinks {
			break
		}
	}

	body, err := json.Marshal(map[string]interface{}{
		"url":      target,
		"links":    links,
		"metadata": metadata,
		"status":   "success",
	})
	return http.StatusOK, body, err
}

func fetchHTML(ctx context.Context, target string) (string, error) {
	var html string
	err := withBrowser(ctx, target, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func withBrowser(ctx context.Context, target string, extract chromedp.Action) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("FootprintCrawler/1.0"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	return chromedp.Run(bctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		extract,
	)
}

func targetURL(endpoint string) (string, error) {
	q, err := url.ParseQuery(strings.TrimPrefix(endpoint, "?"))
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint: %w", err)
	}
	target := q.Get("url")
	if target == "" {
		return "", fmt.Errorf("endpoint has no url parameter")
	}
	return target, nil
}

func normalizeHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
