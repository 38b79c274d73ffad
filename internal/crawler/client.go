package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Backend fetches crawl results. The endpoint string is the raw query part
// produced by the tool selector, "?url=...&search=..." included.
type Backend interface {
	Fetch(ctx context.Context, tool, endpoint string) (status int, body []byte, err error)
}

// HTTPBackend talks to an external crawl service exposing one GET route per
// tool: GET {base}/{tool}{endpoint}.
type HTTPBackend struct {
	base   string
	client *http.Client
}

func NewHTTPBackend(base string, timeout time.Duration) *HTTPBackend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (b *HTTPBackend) Fetch(ctx context.Context, tool, endpoint string) (int, []byte, error) {
	url := b.base + "/" + tool + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to reach crawl backend: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read backend response: %w", err)
	}
	return resp.StatusCode, body, nil
}
