// Package asset downloads customer-supplied files referenced by form
// submissions.
package asset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/heartmarshall/brandkit/internal/domain"
)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxBytes = 10 << 20

	// Retries is the number of extra attempts after a 5xx or network error.
	Retries = 1
	// RetryDelay is the pause before each retry.
	RetryDelay = 500 * time.Millisecond
)

// Options configures a Fetcher.
type Options struct {
	Timeout  time.Duration
	MaxBytes int64
}

// MaxDuration is the longest a Fetch can take with opts, retries included.
func (o Options) MaxDuration() time.Duration {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return time.Duration(Retries+1)*o.Timeout + time.Duration(Retries)*RetryDelay
}

// Fetcher downloads assets over HTTP(S).
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
	retryDelay time.Duration
	log        *slog.Logger
}

// serverError is a 5xx response; it is retried.
type serverError struct{ status int }

func (e *serverError) Error() string { return fmt.Sprintf("unexpected status %d", e.status) }

// NewFetcher creates a Fetcher. Zero options fall back to defaults.
func NewFetcher(logger *slog.Logger, opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: opts.Timeout},
		maxBytes:   opts.MaxBytes,
		retryDelay: RetryDelay,
		log:        logger.With("adapter", "asset"),
	}
}

// Fetch downloads rawURL and returns its body. Every failure wraps
// domain.ErrAssetFetch.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("asset: %w: invalid url %q", domain.ErrAssetFetch, rawURL)
	}

	f.log.DebugContext(ctx, "asset request", slog.String("host", u.Host))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("asset: %w: create request: %w", domain.ErrAssetFetch, err)
	}

	resp, err := f.do(ctx, req)
	if err != nil {
		f.log.WarnContext(ctx, "asset request failed", slog.String("host", u.Host), slog.String("error", err.Error()))
		return nil, fmt.Errorf("asset: %w: %w", domain.ErrAssetFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("asset: %w: unexpected status %d", domain.ErrAssetFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("asset: %w: read body: %w", domain.ErrAssetFetch, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("asset: %w: body exceeds %d bytes", domain.ErrAssetFetch, f.maxBytes)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("asset: %w: empty body", domain.ErrAssetFetch)
	}

	f.log.DebugContext(ctx, "asset response",
		slog.String("host", u.Host),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
	)
	return body, nil
}

// do executes req, retrying once on a 5xx response or a network error.
// Other responses are returned as they are.
func (f *Fetcher) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	op := func() (*http.Response, error) {
		resp, err := f.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, &serverError{status: resp.StatusCode}
		}
		return resp, nil
	}

	onRetry := func(err error, wait time.Duration) {
		f.log.WarnContext(ctx, "asset retry",
			slog.String("host", req.URL.Host),
			slog.String("reason", err.Error()),
			slog.Duration("wait", wait),
		)
	}

	return backoff.RetryNotifyWithData(op, f.policy(ctx), onRetry)
}

func (f *Fetcher) policy(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(f.retryDelay), Retries), ctx)
}
