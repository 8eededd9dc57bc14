package fetcher

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/submit-service/internal/apperr"
)

// TempFile is a downloaded payload staged on local disk for the lifetime of one request.
// Close removes it; callers defer Close immediately after a successful DownloadTemp.
type TempFile struct {
	Path string
	Size int64
}

// Close deletes the staged file. It is safe to call more than once.
func (t *TempFile) Close() error {
	if t == nil || t.Path == "" {
		return nil
	}
	err := os.Remove(t.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrap(err, "tempfile: remove")
	}
	return nil
}

// DownloadTemp streams rawURL into a uniquely named file under dir (os.TempDir when empty)
// with the given suffix. On any failure the partial file is removed before returning.
func DownloadTemp(ctx context.Context, f Fetcher, rawURL, dir, suffix string) (*TempFile, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "tempfile: create dir")
	}

	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	path := filepath.Join(dir, "archive-"+uuid.NewString()+suffix)
	out, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, eris.Wrap(err, "tempfile: create")
	}
	tmp := &TempFile{Path: path}

	n, err := io.Copy(out, body)
	closeErr := out.Close()
	if err != nil {
		_ = tmp.Close()
		if apperr.IsCanceled(err) || ctx.Err() != nil {
			return nil, eris.Wrap(err, "tempfile: download cancelled")
		}
		return nil, &apperr.TransportError{Locator: rawURL, Err: eris.Wrap(err, "tempfile: write")}
	}
	if closeErr != nil {
		_ = tmp.Close()
		return nil, eris.Wrap(closeErr, "tempfile: close")
	}

	tmp.Size = n
	zap.L().Debug("staged download",
		zap.String("url", rawURL),
		zap.String("path", path),
		zap.Int64("bytes", n),
	)
	return tmp, nil
}
