// Package decode turns CSV and GeoJSON byte streams into ordered records.
package decode

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/submit-service/internal/apperr"
	"github.com/sells-group/submit-service/internal/record"
	"github.com/sells-group/submit-service/internal/source"
)

// Func streams records from r until EOF, a decode failure, or ctx cancellation.
// The record channel is unbuffered so nothing is decoded ahead of the consumer.
// Both channels are closed when the producer exits; at most one error is sent.
type Func func(ctx context.Context, r io.Reader) (<-chan record.Record, <-chan error)

// For returns the decoder for an encoded type, or nil when there is none.
func For(t source.EncodedType) Func {
	switch t {
	case source.TypeCSV:
		return CSV
	case source.TypeGeoJSON:
		return GeoJSON
	default:
		return nil
	}
}

// bomReader strips a UTF-8 byte-order mark and transcodes UTF-16 input marked
// with a BOM. Input without a BOM passes through untouched.
func bomReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(encoding.Nop.NewDecoder()))
}

// decodeErr classifies a producer failure. Cancellation passes through so callers
// can tell an abandoned stream from a malformed one.
func decodeErr(err error, msg string) error {
	if apperr.IsCanceled(err) {
		return err
	}
	return &apperr.DecodeError{Err: eris.Wrap(err, msg)}
}

func send(ctx context.Context, out chan<- record.Record, rec record.Record) bool {
	select {
	case out <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}
