// Package download resolves a dataset to its processed archive and streams the
// archive's CSV member verbatim or as point GeoJSON.
package download

import (
	"context"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/submit-service/internal/apperr"
	"github.com/sells-group/submit-service/internal/convert"
	"github.com/sells-group/submit-service/internal/dataset"
	"github.com/sells-group/submit-service/internal/fetcher"
	"github.com/sells-group/submit-service/internal/source"
)

// Format is an output encoding.
type Format string

// Supported formats.
const (
	FormatCSV     Format = "csv"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat validates a requested format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatGeoJSON:
		return FormatGeoJSON, nil
	default:
		return "", &apperr.UnsupportedFormatError{Format: s}
	}
}

// ContentType returns the media type of the format.
func (f Format) ContentType() string {
	if f == FormatGeoJSON {
		return "application/geo+json"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns the attachment name used for the format.
func (f Format) Filename() string {
	return "data." + string(f)
}

var csvOnly = []source.EncodedType{source.TypeCSV}

// Options configures a Pipeline.
type Options struct {
	TempDir string // archive staging directory; os.TempDir when empty
	Convert convert.Options
}

// Pipeline streams dataset archives.
type Pipeline struct {
	fetcher  fetcher.Fetcher
	resolver *dataset.Resolver
	opts     Options
}

// New returns a Pipeline downloading through f and resolving datasets with r.
func New(f fetcher.Fetcher, r *dataset.Resolver, opts Options) *Pipeline {
	return &Pipeline{fetcher: f, resolver: r, opts: opts}
}

// Run resolves key and streams its archive to w in the given format.
func (p *Pipeline) Run(ctx context.Context, w io.Writer, key string, format Format) (convert.Stats, error) {
	if key == "" {
		return convert.Stats{}, &apperr.ValidationError{Message: "dataset is required"}
	}
	meta, err := p.resolver.Resolve(ctx, key)
	if err != nil {
		return convert.Stats{}, err
	}
	zap.L().Debug("download: resolved archive",
		zap.String("dataset", key),
		zap.String("archive", meta.Processed),
	)
	return p.Stream(ctx, w, meta.Processed, format)
}

// Stream stages the archive at archiveURL and writes its first CSV member to w.
// Nothing is written to w before the member is open and, for GeoJSON, before the
// first record decodes. The staged archive is removed before Stream returns.
func (p *Pipeline) Stream(ctx context.Context, w io.Writer, archiveURL string, format Format) (convert.Stats, error) {
	tmp, err := fetcher.DownloadTemp(ctx, p.fetcher, archiveURL, p.opts.TempDir, ".zip")
	if err != nil {
		return convert.Stats{}, err
	}
	defer tmp.Close() //nolint:errcheck

	var stats convert.Stats
	summary, err := fetcher.ScanZIP(ctx, tmp.Path, csvOnly,
		func(ctx context.Context, _ fetcher.ZIPEntry, r io.Reader) error {
			if format == FormatGeoJSON {
				var err error
				stats, err = convert.FromCSV(ctx, w, r, p.opts.Convert)
				return err
			}
			n, err := io.Copy(w, r)
			stats.Bytes = n
			if err != nil {
				return eris.Wrap(err, "download: copy csv")
			}
			return nil
		})
	if err != nil {
		var nm *apperr.NoMatchingEntryError
		if errors.As(err, &nm) {
			nm.Locator = archiveURL
		}
		return stats, apperr.WithLocator(err, archiveURL)
	}

	zap.L().Debug("download: streamed archive member",
		zap.String("archive", archiveURL),
		zap.Int64("archive_bytes", tmp.Size),
		zap.String("entry", summary.Selected.Name),
		zap.Uint64("entry_bytes", summary.Selected.Size),
		zap.String("format", string(format)),
	)
	return stats, nil
}
