// Package fetch implements the two-tier fetch pipeline: a direct
// net/http client, a headless-browser client (go-rod), and a fallback
// client that tries the direct client first and falls back to the
// browser on any error.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"spiderd/internal/model"
	"spiderd/internal/retry"
)

// defaultUserAgent mirrors the source's single configured user agent.
const defaultUserAgent = "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"

// Client is the common interface implemented by DirectClient,
// BrowserClient, and FallbackClient.
type Client interface {
	Fetch(ctx context.Context, req model.HttpRequest) (*model.HttpResponse, error)
}

// DirectClient issues a GET with a fixed desktop/mobile user agent,
// follows redirects, and sends the source's default header set.
type DirectClient struct {
	httpClient *http.Client
	userAgent  string
}

// NewDirectClient builds a DirectClient with the given default timeout.
func NewDirectClient(timeout time.Duration) *DirectClient {
	return &DirectClient{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  defaultUserAgent,
	}
}

func (c *DirectClient) defaultHeaders() map[string]string {
	return map[string]string{
		"accept":           "*/*",
		"accept-language":  "en-GB,en;q=0.6",
		"sec-fetch-dest":   "document",
		"sec-fetch-mode":   "navigate",
		"sec-fetch-site":   "none",
		"sec-fetch-user":   "?1",
		"sec-gpc":          "1",
		"user-agent":       c.userAgent,
	}
}

// Fetch performs a single GET. Failures are surfaced as
// *retry.FetchError carrying the retry_after hints from spec.md §4.2:
// 2s for 4xx, 10s for 5xx, 0.1s for a small body after a redirect, 5s
// for any transport error.
func (c *DirectClient) Fetch(ctx context.Context, req model.HttpRequest) (*model.HttpResponse, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.httpClient.Timeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	headers := c.defaultHeaders()
	if req.Referer != "" {
		headers["referer"] = req.Referer
	}
	for k, v := range req.Headers {
		headers[k] = v
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, retry.NewFetchError(err, 5*time.Second)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.NewFetchError(err, 5*time.Second)
	}

	if resp.StatusCode >= 400 {
		wait := 2 * time.Second
		if resp.StatusCode >= 500 {
			wait = 10 * time.Second
		}
		return nil, retry.NewFetchError(
			&statusError{status: resp.StatusCode},
			wait,
		)
	}

	finalURL := resp.Request.URL.String()
	content := string(bodyBytes)

	if len(content) < 500 && finalURL != req.URL {
		return nil, retry.NewFetchError(
			&redirectSmallBodyError{length: len(content)},
			100*time.Millisecond,
		)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	return &model.HttpResponse{
		Content:    content,
		StatusCode: resp.StatusCode,
		Headers:    respHeaders,
		FinalURL:   finalURL,
	}, nil
}

type statusError struct{ status int }

func (e *statusError) Error() string {
	return httpStatusText(e.status)
}

func httpStatusText(status int) string {
	return "HTTP " + http.StatusText(status) + " error"
}

type redirectSmallBodyError struct{ length int }

func (e *redirectSmallBodyError) Error() string {
	return "redirect detected with small content, should use browser"
}
