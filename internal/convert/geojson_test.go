package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/submit-service/internal/apperr"
	"github.com/sells-group/submit-service/internal/record"
)

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Type     string `json:"type"`
		Geometry *struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func TestFromCSV_RoundTrip(t *testing.T) {
	var out bytes.Buffer
	stats, err := FromCSV(context.Background(), &out, strings.NewReader("LON,LAT,NAME\n-122.1,37.5,Foo\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Features)
	assert.Equal(t, int64(out.Len()), stats.Bytes)

	assert.JSONEq(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-122.1,37.5]},"properties":{"NAME":"Foo"}}
	]}`, out.String())
}

func TestFromCSV_PropertyOrderPreserved(t *testing.T) {
	var out bytes.Buffer
	_, err := FromCSV(context.Background(), &out, strings.NewReader("zeta,LON,alpha,LAT,mid\nz,1,a,2,m\n"), Options{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"properties":{"zeta":"z","alpha":"a","mid":"m"}`)
}

func TestFromCSV_Empty(t *testing.T) {
	var out bytes.Buffer
	stats, err := FromCSV(context.Background(), &out, strings.NewReader("LON,LAT\n"), Options{})
	require.NoError(t, err)
	assert.Zero(t, stats.Features)
	assert.Equal(t, `{"type":"FeatureCollection","features":[]}`, out.String())
}

func TestFromCSV_UnlocatedFeatures(t *testing.T) {
	input := "LON,LAT,ID\nabc,1,a\nNaN,2,b\n3,,c\n4,Inf,d\n5,6,e\n"
	var out bytes.Buffer
	stats, err := FromCSV(context.Background(), &out, strings.NewReader(input), Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Features)
	assert.Equal(t, 4, stats.Unlocated)

	var fc featureCollection
	require.NoError(t, json.Unmarshal(out.Bytes(), &fc))
	require.Len(t, fc.Features, 5)
	for _, f := range fc.Features[:4] {
		assert.Nil(t, f.Geometry)
	}
	require.NotNil(t, fc.Features[4].Geometry)
	assert.Equal(t, []float64{5, 6}, fc.Features[4].Geometry.Coordinates)
}

func TestFromCSV_CustomFields(t *testing.T) {
	var out bytes.Buffer
	_, err := FromCSV(context.Background(), &out, strings.NewReader("x,y,n\n10,20,p\n"), Options{LonField: "x", LatField: "y"})
	require.NoError(t, err)

	var fc featureCollection
	require.NoError(t, json.Unmarshal(out.Bytes(), &fc))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, []float64{10, 20}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, map[string]any{"n": "p"}, fc.Features[0].Properties)
}

func TestFromCSV_ManyRecords(t *testing.T) {
	var b strings.Builder
	b.WriteString("LON,LAT,I\n")
	for i := 0; i < 1200; i++ {
		fmt.Fprintf(&b, "%d.5,%d.25,%d\n", i%180, i%90, i)
	}
	rec := httptest.NewRecorder()
	stats, err := FromCSV(context.Background(), rec, strings.NewReader(b.String()), Options{FlushEvery: 100})
	require.NoError(t, err)
	assert.Equal(t, 1200, stats.Features)
	assert.True(t, rec.Flushed)

	var fc featureCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Len(t, fc.Features, 1200)
}

func TestFromCSV_FailureBeforeFirstRecordWritesNothing(t *testing.T) {
	var out bytes.Buffer
	stats, err := FromCSV(context.Background(), &out, strings.NewReader("LON,LAT\n\"1,2\n"), Options{})
	var de *apperr.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Zero(t, stats.Bytes)
	assert.Zero(t, out.Len())
}

func TestFromCSV_MidStreamFailureLeavesDocumentOpen(t *testing.T) {
	var out bytes.Buffer
	stats, err := FromCSV(context.Background(), &out, strings.NewReader("LON,LAT\n1,2\n3,4\n\"5,6\n"), Options{})
	require.Error(t, err)
	assert.Equal(t, 2, stats.Features)
	assert.True(t, strings.HasPrefix(out.String(), `{"type":"FeatureCollection","features":[`))
	assert.False(t, strings.HasSuffix(out.String(), `]}`))
	assert.False(t, json.Valid(out.Bytes()))
}

type failingWriter struct{ writes int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	if f.writes > 1 {
		return 0, errors.New("client went away")
	}
	return len(p), nil
}

func TestFromCSV_WriteFailureStopsDecoder(t *testing.T) {
	var b strings.Builder
	b.WriteString("LON,LAT\n")
	for i := 0; i < 1000; i++ {
		b.WriteString("1,2\n")
	}
	w := &failingWriter{}
	stats, err := FromCSV(context.Background(), w, strings.NewReader(b.String()), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client went away")
	assert.Equal(t, 1, stats.Features)
}

func TestWriteFeatureCollection_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	recs := make(chan record.Record)
	errs := make(chan error)

	var out bytes.Buffer
	_, err := WriteFeatureCollection(ctx, &out, recs, errs, Options{})
	require.Error(t, err)
	assert.Zero(t, out.Len())
}
