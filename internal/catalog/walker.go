package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wyu/textfetch/pkg/ndr"
)

// PageFetcher retrieves catalog structure and pages. *ndr.Client satisfies
// it; tests substitute mocks.
type PageFetcher interface {
	// Parts returns the ordered catalog part URLs.
	Parts(ctx context.Context) ([]string, error)
	// FetchPage retrieves one page of a catalog. An empty token requests
	// the first page; the returned token is empty on the final page.
	FetchPage(ctx context.Context, catalogIndex int, pageToken string) ([]ndr.RawRecord, string, error)
}

// Walker iterates all catalogs in increasing index order, chaining page
// tokens within each catalog, and emits normalized Records with gap-free
// global sequence numbers. Usage follows the cursor pattern:
//
//	w := catalog.NewWalker(client)
//	for w.Next(ctx) {
//		rec := w.Record()
//		...
//	}
//	if err := w.Err(); err != nil { ... }
//
// A fetch failure is fatal to the walk: the cursor position is no longer
// trustworthy, so Err returns the failure and Next stays false.
type Walker struct {
	fetcher PageFetcher
	log     *slog.Logger
	start   Coord

	started      bool
	catalogCount int
	catalog      int
	position     int
	seq          int
	page         []ndr.RawRecord
	idx          int
	nextToken    string
	pageFetched  bool
	cur          Record
	err          error
	done         bool
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithStart resumes emission from the given coordinate. Pages before it are
// still fetched so sequence numbers stay identical to an uninterrupted walk,
// but their records are not yielded.
func WithStart(start Coord) WalkerOption {
	return func(w *Walker) {
		w.start = start
	}
}

// WithWalkerLogger sets a logger for skip/progress diagnostics.
func WithWalkerLogger(log *slog.Logger) WalkerOption {
	return func(w *Walker) {
		w.log = log.With("component", "walker")
	}
}

// NewWalker creates a walker over all catalogs served by the fetcher.
func NewWalker(fetcher PageFetcher, opts ...WalkerOption) *Walker {
	w := &Walker{fetcher: fetcher}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Next advances to the next emitted record. It returns false at the end of
// the final catalog or on the first fetch error.
func (w *Walker) Next(ctx context.Context) bool {
	if w.done || w.err != nil {
		return false
	}

	if !w.started {
		parts, err := w.fetcher.Parts(ctx)
		if err != nil {
			w.err = fmt.Errorf("list catalogs: %w", err)
			return false
		}
		w.catalogCount = len(parts)
		w.started = true
	}

	for {
		// Refill the page buffer when exhausted.
		for w.idx >= len(w.page) {
			if w.pageFetched && w.nextToken == "" {
				// Current catalog is finished.
				w.catalog++
				w.position = 0
				w.pageFetched = false
			}
			if w.catalog >= w.catalogCount {
				w.done = true
				return false
			}

			token := ""
			if w.pageFetched {
				token = w.nextToken
			}
			records, next, err := w.fetcher.FetchPage(ctx, w.catalog, token)
			if err != nil {
				w.err = fmt.Errorf("catalog %d: %w", w.catalog, err)
				return false
			}
			w.page = records
			w.idx = 0
			w.nextToken = next
			w.pageFetched = true
		}

		raw := w.page[w.idx]
		w.idx++

		rec, err := Normalize(raw)
		if err != nil {
			if w.log != nil {
				w.log.Warn("skipping malformed record", "catalog", w.catalog, "error", err)
			}
			continue
		}

		rec.CatalogIndex = w.catalog
		rec.Position = w.position
		w.position++
		w.seq++
		rec.GlobalSequence = w.seq

		// Records before the start coordinate are counted but not yielded.
		if rec.CatalogIndex < w.start.Catalog ||
			(rec.CatalogIndex == w.start.Catalog && rec.Position < w.start.Item) {
			continue
		}

		w.cur = rec
		return true
	}
}

// Record returns the record produced by the last successful Next.
func (w *Walker) Record() Record {
	return w.cur
}

// Err returns the error that terminated the walk, if any.
func (w *Walker) Err() error {
	return w.err
}
