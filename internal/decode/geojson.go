package decode

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/valyala/fastjson"

	"github.com/sells-group/submit-service/internal/apperr"
	"github.com/sells-group/submit-service/internal/fetcher"
	"github.com/sells-group/submit-service/internal/record"
)

// GeoJSON decodes the features of a FeatureCollection one at a time, emitting each
// feature's properties in document order. Geometry is not read. A feature whose
// properties are null or absent yields an empty record.
func GeoJSON(ctx context.Context, r io.Reader) (<-chan record.Record, <-chan error) {
	out := make(chan record.Record)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		features, featErrs := fetcher.StreamGeoJSONFeatures(ctx, r)
		stop := func() {
			cancel()
			for range features { //nolint:revive // wait for the producer
			}
		}

		var p fastjson.Parser
		for raw := range features {
			rec, err := properties(&p, raw)
			if err != nil {
				stop()
				errc <- &apperr.DecodeError{Err: err}
				return
			}
			if !send(ctx, out, rec) {
				stop()
				errc <- eris.Wrap(ctx.Err(), "decode: geojson cancelled")
				return
			}
		}

		if err := <-featErrs; err != nil {
			errc <- decodeErr(err, "decode: geojson")
		}
	}()

	return out, errc
}

func properties(p *fastjson.Parser, raw []byte) (record.Record, error) {
	v, err := p.ParseBytes(raw)
	if err != nil {
		return record.Record{}, eris.Wrap(err, "decode: parse feature")
	}
	props := v.Get("properties")
	if props == nil || props.Type() == fastjson.TypeNull {
		return record.New(0), nil
	}
	obj, err := props.Object()
	if err != nil {
		return record.Record{}, eris.Wrap(err, "decode: feature properties")
	}
	return record.FromObject(obj), nil
}
