package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/submit-service/internal/apperr"
)

// brokenBody yields some bytes then fails, simulating a connection dropped mid-transfer.
type brokenBody struct {
	sent bool
}

func (b *brokenBody) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, "PK partial"), nil
	}
	return 0, io.ErrUnexpectedEOF
}

func (b *brokenBody) Close() error { return nil }

type stubFetcher struct {
	body io.ReadCloser
	err  error
}

func (s *stubFetcher) Download(context.Context, string) (io.ReadCloser, error) {
	return s.body, s.err
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDownloadTemp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("zip bytes")) //nolint:errcheck
	}))
	defer srv.Close()

	dir := t.TempDir()
	tmp, err := DownloadTemp(context.Background(), newTestFetcher(), srv.URL+"/a.zip", dir, ".zip")
	require.NoError(t, err)

	assert.Equal(t, int64(9), tmp.Size)
	assert.True(t, strings.HasSuffix(tmp.Path, ".zip"))
	data, err := os.ReadFile(tmp.Path)
	require.NoError(t, err)
	assert.Equal(t, "zip bytes", string(data))

	require.NoError(t, tmp.Close())
	assert.Empty(t, dirEntries(t, dir))
	require.NoError(t, tmp.Close(), "second close is a no-op")
}

func TestDownloadTemp_UniqueNames(t *testing.T) {
	dir := t.TempDir()
	var wg sync.WaitGroup
	paths := make([]string, 20)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tmp, err := DownloadTemp(context.Background(), &stubFetcher{body: io.NopCloser(strings.NewReader("x"))}, "u", dir, ".zip")
			if assert.NoError(t, err) {
				paths[i] = tmp.Path
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate temp path %s", p)
		seen[p] = true
	}
	assert.Len(t, dirEntries(t, dir), len(paths))
}

func TestDownloadTemp_UpstreamErrorLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	_, err := DownloadTemp(context.Background(), &stubFetcher{err: &apperr.UpstreamError{StatusCode: 500}}, "u", dir, ".zip")
	var ue *apperr.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Empty(t, dirEntries(t, dir))
}

func TestDownloadTemp_MidStreamFailureRemovesPartial(t *testing.T) {
	dir := t.TempDir()
	_, err := DownloadTemp(context.Background(), &stubFetcher{body: &brokenBody{}}, "http://x/a.zip", dir, ".zip")
	var te *apperr.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "http://x/a.zip", te.Locator)
	assert.Empty(t, dirEntries(t, dir))
}

func TestTempFile_CloseNil(t *testing.T) {
	var tmp *TempFile
	assert.NoError(t, tmp.Close())
}
