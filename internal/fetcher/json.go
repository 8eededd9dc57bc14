package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// StreamGeoJSONFeatures walks a GeoJSON FeatureCollection and sends each element of
// its top-level "features" array as raw JSON, one at a time, without holding the
// document in memory. Reading stops once the array closes; members after it are
// never read. A document without a features array yields no elements.
// Both channels are closed when processing completes.
func StreamGeoJSONFeatures(ctx context.Context, r io.Reader) (<-chan json.RawMessage, <-chan error) {
	outCh := make(chan json.RawMessage)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				errCh <- eris.New("geojson: empty document")
				return
			}
			errCh <- eris.Wrap(err, "geojson: read opening token")
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			errCh <- eris.Errorf("geojson: expected '{', got %v", tok)
			return
		}

		for decoder.More() {
			keyTok, err := decoder.Token()
			if err != nil {
				errCh <- eris.Wrap(err, "geojson: read member name")
				return
			}
			key, _ := keyTok.(string)

			if key != "features" {
				var skip json.RawMessage
				if err := decoder.Decode(&skip); err != nil {
					errCh <- eris.Wrapf(err, "geojson: read member %q", key)
					return
				}
				continue
			}

			tok, err := decoder.Token()
			if err != nil {
				errCh <- eris.Wrap(err, "geojson: read features opening token")
				return
			}
			if delim, ok := tok.(json.Delim); !ok || delim != '[' {
				errCh <- eris.Errorf("geojson: expected features array, got %v", tok)
				return
			}

			for decoder.More() {
				if ctx.Err() != nil {
					errCh <- eris.Wrap(ctx.Err(), "geojson: context cancelled")
					return
				}

				var item json.RawMessage
				if err := decoder.Decode(&item); err != nil {
					errCh <- eris.Wrap(err, "geojson: decode feature")
					return
				}

				select {
				case outCh <- item:
				case <-ctx.Done():
					errCh <- eris.Wrap(ctx.Err(), "geojson: context cancelled")
					return
				}
			}

			if _, err := decoder.Token(); err != nil {
				errCh <- eris.Wrap(err, "geojson: read features closing token")
			}
			return
		}
	}()

	return outCh, errCh
}
