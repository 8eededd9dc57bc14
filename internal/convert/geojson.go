// Package convert rewrites tabular records as a streamed GeoJSON FeatureCollection of points.
package convert

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/submit-service/internal/decode"
	"github.com/sells-group/submit-service/internal/record"
)

const (
	collectionStart = `{"type":"FeatureCollection","features":[`
	collectionEnd   = `]}`
)

// Options configures point construction and output flushing.
type Options struct {
	LonField   string // default "LON"
	LatField   string // default "LAT"
	FlushEvery int    // features between flushes when w is an http.Flusher; default 500
}

func (o Options) withDefaults() Options {
	if o.LonField == "" {
		o.LonField = "LON"
	}
	if o.LatField == "" {
		o.LatField = "LAT"
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = 500
	}
	return o
}

// Stats summarizes a conversion.
type Stats struct {
	Features  int
	Unlocated int // features written with a null geometry
	Bytes     int64
}

// FromCSV decodes CSV from r and writes it to w as point features. The decoder is
// stopped and drained before FromCSV returns, whatever the outcome.
func FromCSV(ctx context.Context, w io.Writer, r io.Reader, opts Options) (Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recs, errs := decode.CSV(ctx, r)
	stats, err := WriteFeatureCollection(ctx, w, recs, errs, opts)
	if err != nil {
		cancel()
		for range recs { //nolint:revive // wait for the decoder
		}
	}
	return stats, err
}

// WriteFeatureCollection consumes recs and writes one Point feature per record.
// Nothing is written before the first record arrives or the input ends cleanly,
// so an error returned with Stats.Bytes == 0 left w untouched. A failure after
// output has begun stops writing without closing the collection; the document
// is left unterminated. Records whose coordinates are missing, unparsable, or
// non-finite are written with a null geometry. The caller must cancel ctx after
// an error to release the producer.
func WriteFeatureCollection(ctx context.Context, w io.Writer, recs <-chan record.Record, errs <-chan error, opts Options) (Stats, error) {
	opts = opts.withDefaults()
	sw := &sink{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}

	var (
		stats Stats
		buf   []byte
	)
	for {
		var (
			rec record.Record
			ok  bool
		)
		select {
		case rec, ok = <-recs:
		case <-ctx.Done():
			stats.Bytes = sw.n
			return stats, eris.Wrap(ctx.Err(), "convert: cancelled")
		}
		if !ok {
			break
		}

		buf = buf[:0]
		if stats.Features == 0 {
			buf = append(buf, collectionStart...)
		} else {
			buf = append(buf, ',')
		}
		var located bool
		var err error
		buf, located, err = appendFeature(buf, rec, opts)
		if err != nil {
			stats.Bytes = sw.n
			return stats, err
		}
		if err := sw.write(buf); err != nil {
			stats.Bytes = sw.n
			return stats, err
		}
		stats.Features++
		if !located {
			stats.Unlocated++
		}
		if stats.Features == 1 || stats.Features%opts.FlushEvery == 0 {
			sw.flush()
		}
	}

	if err := <-errs; err != nil {
		stats.Bytes = sw.n
		return stats, err
	}

	var tail []byte
	if stats.Features == 0 {
		tail = append(tail, collectionStart...)
	}
	tail = append(tail, collectionEnd...)
	if err := sw.write(tail); err != nil {
		stats.Bytes = sw.n
		return stats, err
	}
	sw.flush()
	stats.Bytes = sw.n
	return stats, nil
}

func appendFeature(dst []byte, rec record.Record, opts Options) ([]byte, bool, error) {
	dst = append(dst, `{"type":"Feature","geometry":`...)
	located := false
	if lon, lat, ok := coordinates(rec, opts); ok {
		g, err := geojson.Marshal(geom.NewPointFlat(geom.XY, []float64{lon, lat}))
		if err != nil {
			return nil, false, eris.Wrap(err, "convert: encode geometry")
		}
		dst = append(dst, g...)
		located = true
	} else {
		dst = append(dst, "null"...)
	}
	dst = append(dst, `,"properties":`...)
	dst, err := rec.Without(opts.LonField, opts.LatField).AppendJSON(dst)
	if err != nil {
		return nil, false, eris.Wrap(err, "convert: encode properties")
	}
	return append(dst, '}'), located, nil
}

func coordinates(rec record.Record, opts Options) (float64, float64, bool) {
	lon, ok := number(rec, opts.LonField)
	if !ok {
		return 0, 0, false
	}
	lat, ok := number(rec, opts.LatField)
	if !ok {
		return 0, 0, false
	}
	return lon, lat, true
}

func number(rec record.Record, field string) (float64, bool) {
	s, ok := rec.String(field)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// sink counts bytes written and flushes when the writer supports it.
type sink struct {
	w       io.Writer
	flusher http.Flusher
	n       int64
}

func (s *sink) write(p []byte) error {
	n, err := s.w.Write(p)
	s.n += int64(n)
	if err != nil {
		return eris.Wrap(err, "convert: write")
	}
	return nil
}

func (s *sink) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
