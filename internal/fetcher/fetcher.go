package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The request is bound
	// to ctx, so cancelling ctx aborts an in-flight body read.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
