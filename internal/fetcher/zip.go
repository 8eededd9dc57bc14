package fetcher

import (
	"archive/zip"
	"context"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/submit-service/internal/apperr"
	"github.com/sells-group/submit-service/internal/source"
)

// ZIPEntry describes the archive member handed to a ScanZIP visitor.
type ZIPEntry struct {
	Name string
	Type source.EncodedType
	Size uint64
}

// ZIPSummary reports what ScanZIP did with each member of an archive.
type ZIPSummary struct {
	Selected ZIPEntry
	Skipped  []string // members after the selected one, never opened
	Ignored  []string // members before the selected one that were not accepted
}

// ZIPVisitFunc consumes the selected member. r is only valid for the duration of the call.
type ZIPVisitFunc func(ctx context.Context, entry ZIPEntry, r io.Reader) error

// ScanZIP enumerates the archive at zipPath in stored order and hands the first
// member whose type is in accept to visit. At most one member is processed;
// later members are recorded as skipped without being opened. Directories and
// macOS resource-fork members are ignored. If nothing matches, the error is
// *apperr.NoMatchingEntryError. The archive is closed before ScanZIP returns.
func ScanZIP(ctx context.Context, zipPath string, accept []source.EncodedType, visit ZIPVisitFunc) (ZIPSummary, error) {
	var summary ZIPSummary

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return summary, &apperr.DecodeError{Err: eris.Wrap(err, "zip: open archive")}
	}
	defer zr.Close() //nolint:errcheck

	selected := false
	for _, f := range zr.File {
		if ctx.Err() != nil {
			return summary, eris.Wrap(ctx.Err(), "zip: context cancelled")
		}

		if selected {
			summary.Skipped = append(summary.Skipped, f.Name)
			continue
		}

		typ := entryType(f)
		if !accepts(accept, typ) {
			summary.Ignored = append(summary.Ignored, f.Name)
			continue
		}

		selected = true
		summary.Selected = ZIPEntry{Name: f.Name, Type: typ, Size: f.UncompressedSize64}
		if err := visitEntry(ctx, f, summary.Selected, visit); err != nil {
			return summary, err
		}
	}

	if !selected {
		return summary, &apperr.NoMatchingEntryError{Want: describe(accept)}
	}

	zap.L().Debug("zip: scan complete",
		zap.String("selected", summary.Selected.Name),
		zap.Int("skipped", len(summary.Skipped)),
		zap.Int("ignored", len(summary.Ignored)),
	)
	return summary, nil
}

func visitEntry(ctx context.Context, f *zip.File, entry ZIPEntry, visit ZIPVisitFunc) error {
	rc, err := f.Open()
	if err != nil {
		return &apperr.DecodeError{Err: eris.Wrapf(err, "zip: open entry %s", f.Name)}
	}
	defer rc.Close() //nolint:errcheck

	// Hide Close from the visitor; the entry is closed here once visit returns.
	return visit(ctx, entry, struct{ io.Reader }{rc})
}

func entryType(f *zip.File) source.EncodedType {
	if f.FileInfo().IsDir() {
		return source.TypeUnknown
	}
	name := f.Name
	if strings.HasPrefix(name, "__MACOSX/") {
		return source.TypeUnknown
	}
	if strings.HasPrefix(path.Base(name), "._") {
		return source.TypeUnknown
	}
	return source.ClassifyName(name)
}

func accepts(accept []source.EncodedType, t source.EncodedType) bool {
	if t == source.TypeUnknown {
		return false
	}
	for _, a := range accept {
		if a == t {
			return true
		}
	}
	return false
}

func describe(accept []source.EncodedType) string {
	names := make([]string, 0, len(accept))
	for _, a := range accept {
		names = append(names, strings.ToUpper(a.String()))
	}
	if len(names) == 0 {
		return "matching"
	}
	return strings.Join(names, " or ")
}
