package fetcher

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/submit-service/internal/apperr"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	// HeaderTimeout bounds the wait for response headers. Bodies are streamed
	// without an overall deadline; the caller's context governs them.
	HeaderTimeout time.Duration
	// MaxErrorBody caps how much of a non-200 body is kept for diagnostics.
	MaxErrorBody int64
}

// HTTPFetcher implements Fetcher using net/http. Requests are attempted once.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.HeaderTimeout == 0 {
		opts.HeaderTimeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "submit-service/1.0"
	}
	if opts.MaxErrorBody == 0 {
		opts.MaxErrorBody = 4096
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       20,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.HeaderTimeout,
	}
	return &HTTPFetcher{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
}

// Download fetches the URL and returns the response body.
// Connection failures are *apperr.TransportError; non-200 responses are
// *apperr.UpstreamError carrying the status and the start of the body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &apperr.TransportError{Locator: rawURL, Err: eris.Wrap(err, "create request")}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		zap.L().Debug("http request failed",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return nil, &apperr.TransportError{Locator: rawURL, Err: eris.Wrap(err, "download")}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close() //nolint:errcheck
		body, _ := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxErrorBody))
		zap.L().Warn("unexpected upstream status",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &apperr.UpstreamError{
			Locator:    rawURL,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return resp.Body, nil
}
