package decode

import (
	"context"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/submit-service/internal/fetcher"
	"github.com/sells-group/submit-service/internal/record"
)

// CSV decodes comma-separated text whose first row names the fields. Rows shorter
// than the header yield records with fewer fields; extra trailing cells are dropped.
// Empty lines are skipped. A malformed row ends the stream with *apperr.DecodeError.
func CSV(ctx context.Context, r io.Reader) (<-chan record.Record, <-chan error) {
	out := make(chan record.Record)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		rows, rowErrs := fetcher.StreamCSV(ctx, bomReader(r), fetcher.CSVOptions{})
		stop := func() {
			cancel()
			for range rows { //nolint:revive // wait for the producer
			}
		}

		var header []string
		for row := range rows {
			if header == nil {
				header = row.Fields
				continue
			}
			n := min(len(header), len(row.Fields))
			rec := record.New(n)
			for i := 0; i < n; i++ {
				rec.Set(header[i], row.Fields[i])
			}
			if !send(ctx, out, rec) {
				stop()
				errc <- eris.Wrap(ctx.Err(), "decode: csv cancelled")
				return
			}
		}

		if err := <-rowErrs; err != nil {
			errc <- decodeErr(err, "decode: csv")
		}
	}()

	return out, errc
}
