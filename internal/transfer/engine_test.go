package transfer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pdfBody returns bytes that pass the magic and size heuristics.
func pdfBody(size int) []byte {
	b := make([]byte, size)
	copy(b, "%PDF-1.4\n")
	return b
}

func pdfServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// deadServer returns a URL that refuses connections.
func deadServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	return url
}

func TestTransferFirstMirror(t *testing.T) {
	srv := pdfServer(t, pdfBody(4096))

	dir := t.TempDir()
	dest := filepath.Join(dir, "sub", "book.pdf")

	e := NewEngine(WithMirrors([]string{srv.URL}), WithMinSize(1024))
	out := e.Transfer(context.Background(), "/assets/book.pdf", dest)

	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, srv.URL, out.Mirror)
	assert.Equal(t, int64(4096), out.BytesWritten)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Len(t, data, 4096)
}

func TestTransferFallsBackThroughMirrors(t *testing.T) {
	// Mirror 1 serves a small HTML error page, mirror 2 refuses the
	// connection, mirror 3 has the document.
	errPage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not found</html>"))
	}))
	defer errPage.Close()

	good := pdfServer(t, pdfBody(4096))

	dir := t.TempDir()
	dest := filepath.Join(dir, "book.pdf")

	e := NewEngine(WithMirrors([]string{errPage.URL, deadServer(t), good.URL}), WithMinSize(1024))
	out := e.Transfer(context.Background(), "/assets/book.pdf", dest)

	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, good.URL, out.Mirror)

	assertNoPartials(t, dir)
}

func TestTransferAllMirrorsFail(t *testing.T) {
	small := pdfServer(t, pdfBody(10))
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "book.pdf")

	e := NewEngine(WithMirrors([]string{small.URL, notFound.URL, deadServer(t)}), WithMinSize(1024))
	out := e.Transfer(context.Background(), "/assets/book.pdf", dest)

	require.Equal(t, StatusFailed, out.Status)
	assert.ErrorIs(t, out.Err, ErrAllMirrorsFailed)

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "no file should exist at the destination")
	assertNoPartials(t, dir)
}

func TestTransferRejectsNonPDF(t *testing.T) {
	srv := pdfServer(t, make([]byte, 4096)) // right size, wrong magic

	dir := t.TempDir()
	e := NewEngine(WithMirrors([]string{srv.URL}), WithMinSize(1024))
	out := e.Transfer(context.Background(), "/assets/book.pdf", filepath.Join(dir, "book.pdf"))

	require.Equal(t, StatusFailed, out.Status)
	assert.ErrorIs(t, out.Err, ErrValidation)
	assertNoPartials(t, dir)
}

func TestTransferLeavesExistingFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "book.pdf")
	existing := pdfBody(2048)
	require.NoError(t, os.WriteFile(dest, existing, 0644))

	e := NewEngine(WithMirrors([]string{deadServer(t)}), WithMinSize(1024))
	out := e.Transfer(context.Background(), "/assets/book.pdf", dest)

	require.Equal(t, StatusFailed, out.Status)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, existing, data, "a failed re-run must not disturb the existing file")
}

func TestTransferSendsHeaders(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write(pdfBody(2048))
	}))
	defer srv.Close()

	dir := t.TempDir()
	e := NewEngine(
		WithMirrors([]string{srv.URL}),
		WithMinSize(1024),
		WithHeaders(map[string]string{"User-Agent": "textfetch-test"}),
	)
	out := e.Transfer(context.Background(), "/assets/book.pdf", filepath.Join(dir, "book.pdf"))

	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "textfetch-test", gotUA)
}

func TestTransferContextCancelled(t *testing.T) {
	srv := pdfServer(t, pdfBody(2048))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	e := NewEngine(WithMirrors([]string{srv.URL, srv.URL}), WithMinSize(1024))
	out := e.Transfer(ctx, "/assets/book.pdf", filepath.Join(dir, "book.pdf"))

	require.Equal(t, StatusFailed, out.Status)
	assert.ErrorIs(t, out.Err, ErrAllMirrorsFailed)
}

func TestTransferStreamsSlowBody(t *testing.T) {
	// Body arrives in flushed chunks with pauses, the way a large document
	// trickles off a busy mirror. The attempt must not be cut off while
	// bytes are still flowing.
	body := pdfBody(4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl := w.(http.Flusher)
		for i := 0; i < len(body); i += 512 {
			_, _ = w.Write(body[i : i+512])
			fl.Flush()
			time.Sleep(10 * time.Millisecond)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	e := NewEngine(WithMirrors([]string{srv.URL}), WithMinSize(1024))
	out := e.Transfer(context.Background(), "/assets/book.pdf", filepath.Join(dir, "book.pdf"))

	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, int64(4096), out.BytesWritten)
}

func TestDefaultMirrors(t *testing.T) {
	e := NewEngine()
	require.Len(t, e.mirrors, 3)
	for _, m := range e.mirrors {
		assert.True(t, strings.HasPrefix(m, "https://"))
	}
	assert.Equal(t, int64(defaultMinSize), e.minSize)
}

func TestDefaultClientDoesNotBoundBodyStreaming(t *testing.T) {
	e := NewEngine()

	assert.Zero(t, e.httpClient.Timeout, "body streaming must not be wall-clock bounded")

	tr, ok := e.httpClient.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, headerTimeout, tr.ResponseHeaderTimeout)
}

func assertNoPartials(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, ent := range entries {
		assert.False(t, strings.HasSuffix(ent.Name(), ".partial"), "found leftover partial %s", ent.Name())
	}
}
