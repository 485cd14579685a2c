package fetch

import (
	"context"

	"spiderd/internal/model"
)

// FallbackClient wraps a primary direct client and an optional browser
// client. On any error from the primary, if a browser client is
// configured, it retries via the browser; otherwise the error
// propagates.
type FallbackClient struct {
	Primary *DirectClient
	Browser *BrowserClient
}

// NewFallbackClient builds a FallbackClient. browser may be nil, in
// which case FallbackClient behaves exactly like Primary.
func NewFallbackClient(primary *DirectClient, browser *BrowserClient) *FallbackClient {
	return &FallbackClient{Primary: primary, Browser: browser}
}

func (c *FallbackClient) Fetch(ctx context.Context, req model.HttpRequest) (*model.HttpResponse, error) {
	resp, err := c.Primary.Fetch(ctx, req)
	if err == nil {
		return resp, nil
	}
	if c.Browser == nil {
		return nil, err
	}
	return c.Browser.Fetch(ctx, req)
}
