package sample

import (
	"context"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/submit-service/internal/apperr"
	"github.com/sells-group/submit-service/internal/arcgis"
	"github.com/sells-group/submit-service/internal/decode"
	"github.com/sells-group/submit-service/internal/fetcher"
	"github.com/sells-group/submit-service/internal/source"
)

// archiveTypes are the members a sampled archive may contribute.
var archiveTypes = []source.EncodedType{source.TypeCSV, source.TypeGeoJSON}

// Options configures a Sampler.
type Options struct {
	Limit   int
	TempDir string // staging directory for archives; os.TempDir when empty
}

// Sampler dispatches a classified source to the matching sampling strategy.
type Sampler struct {
	fetcher fetcher.Fetcher
	arcgis  *arcgis.Client
	opts    Options
	log     *zap.Logger
}

// New returns a Sampler that downloads through f.
func New(f fetcher.Fetcher, opts Options) *Sampler {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	return &Sampler{
		fetcher: f,
		arcgis:  arcgis.NewClient(f),
		opts:    opts,
		log:     zap.L().With(zap.String("component", "sampler")),
	}
}

// Limit returns the configured sample size.
func (s *Sampler) Limit() int {
	return s.opts.Limit
}

// Sample takes a bounded sample from the source described by desc. The returned
// descriptor equals desc except that a zip source's encoded type is resolved to
// the type of the archive member that was sampled. Errors carry the locator.
func (s *Sampler) Sample(ctx context.Context, desc source.Descriptor) (*Result, source.Descriptor, error) {
	var (
		res *Result
		err error
	)
	switch desc.Kind() {
	case source.KindArcGIS:
		res, err = s.sampleArcGIS(ctx, desc)
	case source.KindZip:
		res, desc, err = s.sampleZip(ctx, desc)
	case source.KindCSV, source.KindGeoJSON:
		res, err = s.sampleStream(ctx, desc)
	default:
		err = &apperr.UnsupportedSourceError{Locator: desc.Locator}
	}
	if err != nil {
		err = apperr.WithLocator(err, desc.Locator)
		s.log.Warn("sample failed", zap.String("source", desc.Locator), zap.Error(err))
		return nil, desc, err
	}

	s.log.Info("sampled source",
		zap.String("source", desc.Locator),
		zap.String("type", desc.EncodedType.String()),
		zap.Int("records", len(res.Results)),
	)
	return res, desc, nil
}

func (s *Sampler) sampleArcGIS(ctx context.Context, desc source.Descriptor) (*Result, error) {
	recs, err := s.arcgis.Query(ctx, desc.Locator, s.opts.Limit)
	if err != nil {
		return nil, err
	}
	return FromRecords(recs, s.opts.Limit), nil
}

func (s *Sampler) sampleStream(ctx context.Context, desc source.Descriptor) (*Result, error) {
	body, err := s.fetcher.Download(ctx, desc.Locator)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	return Take(ctx, body, decode.For(desc.EncodedType), s.opts.Limit)
}

func (s *Sampler) sampleZip(ctx context.Context, desc source.Descriptor) (*Result, source.Descriptor, error) {
	tmp, err := fetcher.DownloadTemp(ctx, s.fetcher, desc.Locator, s.opts.TempDir, ".zip")
	if err != nil {
		return nil, desc, err
	}
	defer tmp.Close() //nolint:errcheck

	var res *Result
	summary, err := fetcher.ScanZIP(ctx, tmp.Path, archiveTypes,
		func(ctx context.Context, entry fetcher.ZIPEntry, r io.Reader) error {
			dec := decode.For(entry.Type)
			if dec == nil {
				return eris.Errorf("sample: no decoder for %s", entry.Name)
			}
			var err error
			res, err = Take(ctx, r, dec, s.opts.Limit)
			return err
		})
	if err != nil {
		var nm *apperr.NoMatchingEntryError
		if errors.As(err, &nm) {
			nm.Locator = desc.Locator
		}
		return nil, desc, err
	}

	s.log.Debug("sampled archive member",
		zap.String("source", desc.Locator),
		zap.String("entry", summary.Selected.Name),
		zap.Int64("archive_bytes", tmp.Size),
		zap.Uint64("entry_bytes", summary.Selected.Size),
		zap.Strings("skipped", summary.Skipped),
	)
	return res, desc.Resolve(summary.Selected.Type), nil
}
