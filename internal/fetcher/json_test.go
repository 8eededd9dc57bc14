package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectFeatures(t *testing.T, outCh <-chan json.RawMessage, errCh <-chan error) ([]string, error) {
	t.Helper()
	var out []string
	for item := range outCh {
		out = append(out, string(item))
	}
	for err := range errCh {
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func TestStreamGeoJSONFeatures(t *testing.T) {
	input := `{"type":"FeatureCollection","crs":{"type":"name"},"features":[
		{"type":"Feature","properties":{"a":1}},
		{"type":"Feature","properties":{"a":2}}
	]}`
	outCh, errCh := StreamGeoJSONFeatures(context.Background(), strings.NewReader(input))
	items, err := collectFeatures(t, outCh, errCh)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.JSONEq(t, `{"type":"Feature","properties":{"a":1}}`, items[0])
	assert.JSONEq(t, `{"type":"Feature","properties":{"a":2}}`, items[1])
}

func TestStreamGeoJSONFeatures_StopsAfterArray(t *testing.T) {
	// Trailing garbage after the features array is never read.
	input := `{"features":[{"properties":{}}], "bbox": [1,2,` + "\x00garbage"
	outCh, errCh := StreamGeoJSONFeatures(context.Background(), strings.NewReader(input))
	items, err := collectFeatures(t, outCh, errCh)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestStreamGeoJSONFeatures_NoFeatures(t *testing.T) {
	outCh, errCh := StreamGeoJSONFeatures(context.Background(), strings.NewReader(`{"type":"FeatureCollection"}`))
	items, err := collectFeatures(t, outCh, errCh)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStreamGeoJSONFeatures_EmptyInput(t *testing.T) {
	outCh, errCh := StreamGeoJSONFeatures(context.Background(), strings.NewReader(""))
	_, err := collectFeatures(t, outCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty document")
}

func TestStreamGeoJSONFeatures_NotAnObject(t *testing.T) {
	outCh, errCh := StreamGeoJSONFeatures(context.Background(), strings.NewReader(`[1,2]`))
	_, err := collectFeatures(t, outCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '{'")
}

func TestStreamGeoJSONFeatures_FeaturesNotArray(t *testing.T) {
	outCh, errCh := StreamGeoJSONFeatures(context.Background(), strings.NewReader(`{"features":{}}`))
	_, err := collectFeatures(t, outCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected features array")
}

func TestStreamGeoJSONFeatures_MalformedFeature(t *testing.T) {
	input := `{"features":[{"properties":{"a":1}},{"properties":{"a":}}]}`
	outCh, errCh := StreamGeoJSONFeatures(context.Background(), strings.NewReader(input))
	items, err := collectFeatures(t, outCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geojson")
	assert.Len(t, items, 1)
}

func TestStreamGeoJSONFeatures_ContextCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		_, _ = io.WriteString(pw, `{"features":[`)
		for i := range 100000 {
			if i > 0 {
				if _, err := io.WriteString(pw, ","); err != nil {
					return
				}
			}
			if _, err := fmt.Fprintf(pw, `{"properties":{"i":%d}}`, i); err != nil {
				return
			}
		}
		_, _ = io.WriteString(pw, `]}`)
		_ = pw.Close()
	}()
	defer pr.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	outCh, errCh := StreamGeoJSONFeatures(ctx, pr)

	count := 0
	for range outCh {
		count++
		if count == 3 {
			cancel()
			break
		}
	}
	for range outCh { //nolint:revive // drain
	}

	var gotErr error
	for err := range errCh {
		gotErr = err
	}
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "context cancelled")
}
