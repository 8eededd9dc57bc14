// Package sample extracts a bounded sample of records and field names from a source.
package sample

import (
	"context"
	"io"

	"github.com/sells-group/submit-service/internal/decode"
	"github.com/sells-group/submit-service/internal/record"
)

// DefaultLimit is the number of records kept when no limit is configured.
const DefaultLimit = 10

// Result is a bounded sample. Fields is the key list of the last record taken.
type Result struct {
	Fields  []string        `json:"fields" yaml:"fields"`
	Results []record.Record `json:"results" yaml:"results"`
}

func newResult(limit int) *Result {
	return &Result{Fields: []string{}, Results: make([]record.Record, 0, limit)}
}

func (r *Result) add(rec record.Record) {
	r.Results = append(r.Results, rec)
	r.Fields = rec.Keys()
}

// Take decodes records from r until limit records are held, the input ends, or
// decoding fails. Once the limit is reached the decoder is cancelled, r is closed
// when it implements io.Closer, and Take waits for the decoder to exit before
// returning; nothing past the limit is decoded. Fewer than limit records is not
// an error. A decode failure before the limit discards the partial sample.
func Take(ctx context.Context, r io.Reader, dec decode.Func, limit int) (*Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recs, errs := dec(ctx, r)
	res := newResult(limit)
	for rec := range recs {
		res.add(rec)
		if len(res.Results) == limit {
			break
		}
	}

	if len(res.Results) < limit {
		if err := <-errs; err != nil {
			return nil, err
		}
		return res, nil
	}

	cancel()
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
	for range recs { //nolint:revive // wait for the decoder
	}
	<-errs
	return res, nil
}

// FromRecords builds a result from records already bounded by the upstream.
func FromRecords(recs []record.Record, limit int) *Result {
	if limit <= 0 {
		limit = DefaultLimit
	}
	res := newResult(min(limit, len(recs)))
	for _, rec := range recs {
		if len(res.Results) == limit {
			break
		}
		res.add(rec)
	}
	return res
}
