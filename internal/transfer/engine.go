// Package transfer streams a resolved file from an ordered list of mirrors,
// validates the result, and renames it atomically into the destination. A
// file only ever appears at its final path once fully validated, which is
// what makes interrupted runs safe to resume.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Default mirror endpoints in fixed priority order.
var defaultMirrors = []string{
	"https://r1-ndr-oversea.ykt.cbern.com.cn",
	"https://r2-ndr-oversea.ykt.cbern.com.cn",
	"https://r3-ndr-oversea.ykt.cbern.com.cn",
}

// defaultMinSize is the heuristic floor below which a response is treated as
// an error or placeholder page rather than a document.
const defaultMinSize = 1 << 20 // 1 MiB

// headerTimeout bounds connecting and waiting for response headers. The body
// stream itself is not wall-clock bounded: documents run to tens of
// megabytes and may legitimately take minutes on a slow mirror. Cancellation
// during streaming comes from the request context.
const headerTimeout = 30 * time.Second

var pdfMagic = []byte("%PDF")

// Status is the terminal state of one transfer.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Outcome reports one transfer attempt across all mirrors.
type Outcome struct {
	Status       Status
	Path         string
	BytesWritten int64
	Mirror       string // mirror that produced the valid file, empty on failure
	Err          error  // most recent mirror's error when Status is failed
}

// Engine downloads resolved fragments with mirror fallback.
type Engine struct {
	mirrors    []string
	httpClient *http.Client
	headers    map[string]string
	minSize    int64
	deepCheck  bool
	log        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMirrors overrides the mirror list. Order is priority order.
func WithMirrors(mirrors []string) Option {
	return func(e *Engine) {
		if len(mirrors) > 0 {
			e.mirrors = mirrors
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = hc
	}
}

// WithHeaders sets the request headers sent to mirrors.
func WithHeaders(h map[string]string) Option {
	return func(e *Engine) {
		e.headers = h
	}
}

// WithMinSize overrides the minimum valid document size in bytes.
func WithMinSize(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minSize = n
		}
	}
}

// WithDeepValidation enables structural PDF validation of the transferred
// bytes on top of the magic-byte and size heuristics.
func WithDeepValidation(enabled bool) Option {
	return func(e *Engine) {
		e.deepCheck = enabled
	}
}

// WithLogger sets a logger for per-mirror diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log.With("component", "transfer")
	}
}

// NewEngine creates a transfer engine with the default mirrors and limits.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		mirrors: defaultMirrors,
		minSize: defaultMinSize,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: headerTimeout}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: headerTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transfer tries each mirror in priority order until one yields a validated
// document, then renames it into destPath. Every mirror is tried before
// giving up; the failure outcome carries the last mirror's error.
func (e *Engine) Transfer(ctx context.Context, fragment, destPath string) Outcome {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return Outcome{Status: StatusFailed, Path: destPath, Err: fmt.Errorf("create destination directory: %w", err)}
	}

	var lastErr error
	for _, mirror := range e.mirrors {
		start := time.Now()
		n, err := e.attempt(ctx, mirror, fragment, destPath)
		if err != nil {
			lastErr = err
			if e.log != nil {
				e.log.Warn("mirror attempt failed", "mirror", mirror, "error", err)
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if e.log != nil {
			e.log.Debug("transfer complete", "mirror", mirror, "bytes", n, "duration_ms", time.Since(start).Milliseconds())
		}
		return Outcome{Status: StatusSuccess, Path: destPath, BytesWritten: n, Mirror: mirror}
	}

	return Outcome{Status: StatusFailed, Path: destPath, Err: errors.Join(ErrAllMirrorsFailed, lastErr)}
}

// attempt streams one mirror's response to a temporary file, validates it,
// and renames it into place. The temporary file never survives a failure.
func (e *Engine) attempt(ctx context.Context, mirror, fragment, destPath string) (written int64, err error) {
	url := strings.TrimSuffix(mirror, "/")
	if !strings.HasPrefix(fragment, "/") {
		url += "/"
	}
	url += fragment

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("mirror returned %s", resp.Status)
	}

	// Same directory as the destination so the final rename stays on one
	// filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".transfer-*.partial")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	written, err = io.Copy(tmp, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("stream body: %w", err)
	}

	if err = e.validate(tmp, written); err != nil {
		return 0, err
	}

	if err = tmp.Sync(); err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), destPath); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("rename into place: %w", err)
	}

	return written, nil
}

// validate checks that the transferred bytes look like a real document
// rather than an error page.
func (e *Engine) validate(f *os.File, size int64) error {
	if size < e.minSize {
		return fmt.Errorf("%w: %d bytes below minimum %d", ErrValidation, size, e.minSize)
	}

	magic := make([]byte, len(pdfMagic))
	if _, err := f.ReadAt(magic, 0); err != nil {
		return fmt.Errorf("%w: read magic bytes: %v", ErrValidation, err)
	}
	if string(magic) != string(pdfMagic) {
		return fmt.Errorf("%w: not a PDF (magic %q)", ErrValidation, magic)
	}

	if e.deepCheck {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("%w: seek: %v", ErrValidation, err)
		}
		pages, err := api.PageCount(f, nil)
		if err != nil {
			return fmt.Errorf("%w: structural check: %v", ErrValidation, err)
		}
		if pages == 0 {
			return fmt.Errorf("%w: document has no pages", ErrValidation)
		}
	}

	return nil
}
