// Package catalog fetches authoritative product records from the marketplace
// API so cached cart snapshots can be refreshed.
package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/artfolio/cartstore/pkg/cart"
	"github.com/artfolio/cartstore/pkg/errors"
)

const (
	defaultTimeout       = 10 * time.Second
	responseBodyLimit    = 1 << 20
	errorBodyExcerptSize = 256
)

// Client implements cart.ProductFetcher over the marketplace REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

var _ cart.ProductFetcher = (*Client)(nil)

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sends an Authorization: Bearer header on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient builds a catalog client for baseURL, e.g. https://api.example.com/v1.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New(errors.KindInvalidArgument, "catalog base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, errors.WrapKind(errors.KindInvalidArgument, err, "invalid catalog base url")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// FetchArtwork retrieves GET {base}/artworks/{id}.
func (c *Client) FetchArtwork(ctx context.Context, id string) (*cart.ArtworkInput, error) {
	body, err := c.get(ctx, "artworks", id)
	if err != nil {
		return nil, err
	}
	return cart.ParseArtwork(body)
}

// FetchMaterial retrieves GET {base}/art-materials/{id}.
func (c *Client) FetchMaterial(ctx context.Context, id string) (*cart.MaterialInput, error) {
	body, err := c.get(ctx, "art-materials", id)
	if err != nil {
		return nil, err
	}
	return cart.ParseMaterial(body)
}

func (c *Client) get(ctx context.Context, collection, id string) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New(errors.KindInvalidArgument, "product id is required")
	}
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, collection, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build catalog request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("catalog_request_failed", "url", endpoint, "error", err)
		return nil, errors.Wrap(err, "catalog request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog response")
	}

	slog.Debug("catalog_request_complete", "url", endpoint, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := string(body)
		if len(excerpt) > errorBodyExcerptSize {
			excerpt = excerpt[:errorBodyExcerptSize]
		}
		excerpt = strings.TrimSpace(excerpt)
		if resp.StatusCode == http.StatusNotFound {
			return nil, errors.Newf(errors.KindNotFound, "catalog returned %d for %s/%s", resp.StatusCode, collection, id).
				WithDetails(map[string]any{"status": resp.StatusCode, "body": excerpt})
		}
		return nil, fmt.Errorf("catalog returned %d for %s/%s: %s", resp.StatusCode, collection, id, excerpt)
	}
	return body, nil
}
