// Package source classifies remote geodata locators without touching the network.
package source

import (
	"regexp"
	"strings"

	"github.com/sells-group/submit-service/internal/apperr"
)

// Protocol identifies how a source is retrieved.
type Protocol uint8

const (
	ProtocolHTTP Protocol = iota
	ProtocolArcGIS
)

func (p Protocol) String() string {
	if p == ProtocolArcGIS {
		return "ESRI"
	}
	return "http"
}

// EncodedType is the payload encoding of a source.
type EncodedType uint8

const (
	TypeUnknown EncodedType = iota
	TypeCSV
	TypeGeoJSON
)

func (t EncodedType) String() string {
	names := []string{"unknown", "csv", "geojson"}
	if int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}

// Compression is the container wrapping a source payload.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZip
)

func (c Compression) String() string {
	if c == CompressionZip {
		return "zip"
	}
	return ""
}

// Kind is the dispatch tag derived from a descriptor.
type Kind uint8

const (
	KindArcGIS Kind = iota
	KindGeoJSON
	KindCSV
	KindZip
)

// Descriptor is the immutable classification of a locator.
type Descriptor struct {
	Locator     string
	Protocol    Protocol
	EncodedType EncodedType
	Compression Compression
}

// Kind returns the variant used to dispatch sampling.
func (d Descriptor) Kind() Kind {
	switch {
	case d.Protocol == ProtocolArcGIS:
		return KindArcGIS
	case d.Compression == CompressionZip:
		return KindZip
	case d.EncodedType == TypeCSV:
		return KindCSV
	default:
		return KindGeoJSON
	}
}

// Resolve returns a copy of d with the encoded type settled by archive inspection.
func (d Descriptor) Resolve(t EncodedType) Descriptor {
	d.EncodedType = t
	return d
}

var arcgisPattern = regexp.MustCompile(`(Map|Feature)Server/\d+/?$`)

// Classify maps a locator to its descriptor. Rules are applied in order and the
// first match wins.
func Classify(locator string) (Descriptor, error) {
	d := Descriptor{Locator: locator}
	switch {
	case arcgisPattern.MatchString(locator):
		d.Protocol = ProtocolArcGIS
		d.EncodedType = TypeGeoJSON
	case strings.HasSuffix(locator, ".geojson"):
		d.EncodedType = TypeGeoJSON
	case strings.HasSuffix(locator, ".csv"):
		d.EncodedType = TypeCSV
	case strings.HasSuffix(locator, ".zip"):
		d.Compression = CompressionZip
	default:
		return Descriptor{}, &apperr.UnsupportedSourceError{Locator: locator}
	}
	return d, nil
}

// ClassifyName applies the file suffix rules to an archive entry name.
func ClassifyName(name string) EncodedType {
	switch {
	case strings.HasSuffix(name, ".geojson"):
		return TypeGeoJSON
	case strings.HasSuffix(name, ".csv"):
		return TypeCSV
	default:
		return TypeUnknown
	}
}
