// Package dataset resolves a dataset key to its processed archive through the metadata feed.
package dataset

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/submit-service/internal/apperr"
	"github.com/sells-group/submit-service/internal/fetcher"
)

const (
	sourceColumn    = "source"
	processedColumn = "processed"
)

// ErrFeedNotConfigured is returned when no metadata feed URL was provided.
var ErrFeedNotConfigured = errors.New("metadata feed is not configured")

// Metadata is the subset of a feed row the download pipeline needs.
type Metadata struct {
	Source    string
	Processed string // archive URL
}

// Resolver looks dataset keys up in a tab-separated metadata feed.
type Resolver struct {
	fetcher fetcher.Fetcher
	feedURL string
}

// NewResolver returns a Resolver reading the feed at feedURL through f.
func NewResolver(f fetcher.Fetcher, feedURL string) *Resolver {
	return &Resolver{fetcher: f, feedURL: feedURL}
}

// Configured reports whether a feed URL is set.
func (r *Resolver) Configured() bool {
	return r.feedURL != ""
}

// Resolve streams the feed and returns the first row whose source column equals
// key exactly. The feed is not read past the match. A matching row without a
// processed archive counts as not found.
func (r *Resolver) Resolve(ctx context.Context, key string) (Metadata, error) {
	if r.feedURL == "" {
		return Metadata{}, ErrFeedNotConfigured
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	body, err := r.fetcher.Download(ctx, r.feedURL)
	if err != nil {
		return Metadata{}, &apperr.MetadataFeedError{Locator: r.feedURL, Err: err}
	}
	defer body.Close() //nolint:errcheck

	rows, errs := fetcher.StreamCSV(ctx, body, fetcher.CSVOptions{
		Delimiter:  '\t',
		LazyQuotes: true,
	})
	stop := func() {
		cancel()
		_ = body.Close()
		for range rows { //nolint:revive // wait for the producer
		}
	}

	srcIdx, procIdx := -1, -1
	for row := range rows {
		if srcIdx < 0 {
			srcIdx, procIdx, err = columns(row.Fields)
			if err != nil {
				stop()
				return Metadata{}, &apperr.MetadataFeedError{Locator: r.feedURL, Err: err}
			}
			continue
		}
		if srcIdx >= len(row.Fields) || row.Fields[srcIdx] != key {
			continue
		}

		m := Metadata{Source: key}
		if procIdx < len(row.Fields) {
			m.Processed = row.Fields[procIdx]
		}
		stop()
		if m.Processed == "" {
			return Metadata{}, &apperr.DatasetNotFoundError{Key: key}
		}
		zap.L().Debug("dataset: resolved",
			zap.String("dataset", key),
			zap.String("processed", m.Processed),
			zap.Int("line", row.Line),
		)
		return m, nil
	}

	if err := <-errs; err != nil {
		return Metadata{}, &apperr.MetadataFeedError{Locator: r.feedURL, Err: err}
	}
	return Metadata{}, &apperr.DatasetNotFoundError{Key: key}
}

func columns(header []string) (int, int, error) {
	src, proc := -1, -1
	for i, name := range header {
		switch name {
		case sourceColumn:
			if src < 0 {
				src = i
			}
		case processedColumn:
			if proc < 0 {
				proc = i
			}
		}
	}
	if src < 0 || proc < 0 {
		return -1, -1, eris.Errorf("dataset: feed header lacks %q or %q columns", sourceColumn, processedColumn)
	}
	return src, proc, nil
}
