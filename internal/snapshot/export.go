package snapshot

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/wyu/textfetch/internal/catalog"
)

// utf8BOM makes the exported CSV open correctly in spreadsheet tools that
// guess the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvHeader is the column layout of the exported snapshot.
var csvHeader = []string{"number", "catalog", "position", "id", "title", "publisher"}

// RecordSource is the walking side of a snapshot capture, satisfied by
// catalog.Walker.
type RecordSource interface {
	Next(ctx context.Context) bool
	Record() catalog.Record
	Err() error
}

// Export walks every record from source, persists each into the store, and
// streams CSV rows to w. The walk and the write side run concurrently; rows
// are written in walk order. Returns the number of exported records.
func Export(ctx context.Context, source RecordSource, store *Store, w io.Writer) (int, error) {
	// A capture replaces whatever an earlier run stored; stale rows from a
	// shifted or shrunken catalog must not survive.
	if err := store.Clear(); err != nil {
		return 0, err
	}

	if _, err := w.Write(utf8BOM); err != nil {
		return 0, fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	records := make(chan catalog.Record, 64)

	g.Go(func() error {
		defer close(records)
		for source.Next(ctx) {
			select {
			case records <- source.Record():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return source.Err()
	})

	var exported int
	g.Go(func() error {
		for rec := range records {
			if err := store.Upsert(rec); err != nil {
				return err
			}
			row := []string{
				strconv.Itoa(rec.GlobalSequence),
				strconv.Itoa(rec.CatalogIndex),
				strconv.Itoa(rec.Position),
				rec.ID,
				rec.Title,
				rec.Publisher,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write record %d: %w", rec.GlobalSequence, err)
			}
			exported++
		}
		cw.Flush()
		return cw.Error()
	})

	if err := g.Wait(); err != nil {
		return exported, err
	}
	return exported, nil
}
