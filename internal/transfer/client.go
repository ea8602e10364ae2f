// Package transfer implements the byte-moving side of download operations:
// a plain HTTP fetch for directly addressable files and a segmented fetch
// with merge for playlist-based streams. Operators own the contract with the
// engine; this package only moves bytes to a destination path.
package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/metrics"
	"github.com/grabtree/grabtree/internal/models"
)

// Fetcher downloads a single directly addressable file to dest.
type Fetcher interface {
	FetchFile(ctx context.Context, rawURL string, headers map[string]string, dest string, sink models.ProgressSink) error
}

// StreamFetcher downloads a segmented stream (an m3u8-style playlist) and
// merges the segments into dest.
type StreamFetcher interface {
	FetchStream(ctx context.Context, playlistURL string, headers map[string]string, dest string, sink models.ProgressSink) error
}

// Client implements Fetcher and StreamFetcher over HTTP with transparent
// response decompression and retry with exponential backoff.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	retry       retrypolicy.RetryPolicy[any]
	concurrency int
}

// New creates a transfer client from the download configuration.
func New(cfg *config.Config) *Client {
	timeout := 30 * time.Second // default
	if cfg.ClientTimeout != "" {
		if parsed, err := time.ParseDuration(cfg.ClientTimeout); err != nil {
			logger := config.GetLogger()
			logger.Warn().Err(err).Str("timeout", cfg.ClientTimeout).Msg("Invalid timeout duration, using default 30s")
		} else {
			timeout = parsed
		}
	}

	maxRetries := cfg.Download.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	concurrency := cfg.Download.MaxConcurrentDownloads
	if concurrency <= 0 {
		concurrency = 4
	}

	baseTransport := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: newCompressionTransport(baseTransport),
		},
		userAgent: cfg.UserAgent,
		retry: retrypolicy.NewBuilder[any]().
			WithBackoff(500*time.Millisecond, 8*time.Second).
			WithMaxRetries(maxRetries).
			Build(),
		concurrency: concurrency,
	}
}

// NewWithHTTPClient creates a transfer client around an existing HTTP client.
// Used by tests to point at an httptest server.
func NewWithHTTPClient(httpClient *http.Client, concurrency int) *Client {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Client{
		httpClient:  httpClient,
		retry:       retrypolicy.NewBuilder[any]().WithMaxRetries(2).Build(),
		concurrency: concurrency,
	}
}

// FetchFile implements Fetcher. The destination is written through a
// temporary sibling and renamed into place so an interrupted transfer never
// leaves a truncated file at dest.
func (c *Client) FetchFile(ctx context.Context, rawURL string, headers map[string]string, dest string, sink models.ProgressSink) error {
	return failsafe.With[any](c.retry).WithContext(ctx).Run(func() error {
		return c.fetchOnce(ctx, rawURL, headers, dest, sink)
	})
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string, headers map[string]string, dest string, sink models.ProgressSink) error {
	resp, err := c.get(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmp := dest + ".part"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}

	written, err := io.Copy(newProgressWriter(out, resp.ContentLength, sink), resp.Body)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, closeErr)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming into place: %w", err)
	}

	metrics.DownloadedBytesTotal.Add(float64(written))
	return nil
}

// get issues a GET request with default and per-item headers applied.
func (c *Client) get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, rawURL)
	}
	return resp, nil
}

// resolveSegmentURL resolves a possibly relative segment URI against the
// playlist URL.
func resolveSegmentURL(playlistURL, segment string) (string, error) {
	base, err := url.Parse(playlistURL)
	if err != nil {
		return "", fmt.Errorf("invalid playlist URL: %w", err)
	}
	ref, err := url.Parse(segment)
	if err != nil {
		return "", fmt.Errorf("invalid segment URI: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
