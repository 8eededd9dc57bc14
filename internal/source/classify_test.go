package source

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/submit-service/internal/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		locator     string
		protocol    Protocol
		encoded     EncodedType
		compression Compression
		kind        Kind
	}{
		{"map server", "https://gis.example.com/arcgis/rest/services/Addr/MapServer/3", ProtocolArcGIS, TypeGeoJSON, CompressionNone, KindArcGIS},
		{"feature server trailing slash", "https://gis.example.com/rest/services/P/FeatureServer/12/", ProtocolArcGIS, TypeGeoJSON, CompressionNone, KindArcGIS},
		{"geojson", "https://example.com/data/foo.geojson", ProtocolHTTP, TypeGeoJSON, CompressionNone, KindGeoJSON},
		{"csv", "https://example.com/data/foo.csv", ProtocolHTTP, TypeCSV, CompressionNone, KindCSV},
		{"zip", "https://example.com/data/foo.zip", ProtocolHTTP, TypeUnknown, CompressionZip, KindZip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Classify(tt.locator)
			require.NoError(t, err)
			assert.Equal(t, tt.locator, d.Locator)
			assert.Equal(t, tt.protocol, d.Protocol)
			assert.Equal(t, tt.encoded, d.EncodedType)
			assert.Equal(t, tt.compression, d.Compression)
			assert.Equal(t, tt.kind, d.Kind())
		})
	}
}

func TestClassify_Unsupported(t *testing.T) {
	for _, loc := range []string{"https://example.com/foo.txt", "https://example.com/mapserver/3", "", "foo.CSV"} {
		_, err := Classify(loc)
		var ue *apperr.UnsupportedSourceError
		require.True(t, errors.As(err, &ue), "locator %q", loc)
		assert.Equal(t, "Unsupported type", err.Error())
	}
}

func TestClassify_ServerPatternNeedsLayerID(t *testing.T) {
	_, err := Classify("https://gis.example.com/rest/services/Addr/MapServer")
	require.Error(t, err)
}

func TestClassify_Pure(t *testing.T) {
	a, err := Classify("https://example.com/foo.zip")
	require.NoError(t, err)
	b, err := Classify("https://example.com/foo.zip")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDescriptor_Resolve(t *testing.T) {
	d, err := Classify("https://example.com/foo.zip")
	require.NoError(t, err)

	resolved := d.Resolve(TypeCSV)
	assert.Equal(t, TypeCSV, resolved.EncodedType)
	assert.Equal(t, TypeUnknown, d.EncodedType)
	assert.Equal(t, KindZip, resolved.Kind())
}

func TestClassifyName(t *testing.T) {
	assert.Equal(t, TypeCSV, ClassifyName("dir/data.csv"))
	assert.Equal(t, TypeGeoJSON, ClassifyName("extra.geojson"))
	assert.Equal(t, TypeUnknown, ClassifyName("readme.txt"))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "ESRI", ProtocolArcGIS.String())
	assert.Equal(t, "http", ProtocolHTTP.String())
	assert.Equal(t, "csv", TypeCSV.String())
	assert.Equal(t, "geojson", TypeGeoJSON.String())
	assert.Equal(t, "zip", CompressionZip.String())
	assert.Equal(t, "", CompressionNone.String())
}
