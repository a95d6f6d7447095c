// Package snapshot persists a local copy of the walked catalog so records
// can be listed, searched, and exported without re-walking the remote
// service.
package snapshot

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/wyu/textfetch/internal/catalog"
)

// ErrNotFound is returned when no stored record matches the lookup.
var ErrNotFound = errors.New("record not found")

// Store provides access to snapshot data.
type Store struct {
	db *sql.DB
}

// NewStore creates a snapshot store over an open database. The caller is
// responsible for applying migrations first.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert inserts a record or replaces the stored row with the same
// sequence number. When the catalog has shifted between captures the same
// id can arrive at a new sequence number; the stale row is removed first
// so the id stays unique.
func (s *Store) Upsert(rec catalog.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("upsert record %d: %w", rec.GlobalSequence, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM records WHERE id = ? AND sequence != ?`,
		rec.ID, rec.GlobalSequence); err != nil {
		return fmt.Errorf("upsert record %d: %w", rec.GlobalSequence, err)
	}

	if _, err := tx.Exec(`
		INSERT INTO records (sequence, catalog_idx, position, id, title, publisher)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(sequence) DO UPDATE SET
			catalog_idx = excluded.catalog_idx,
			position = excluded.position,
			id = excluded.id,
			title = excluded.title,
			publisher = excluded.publisher`,
		rec.GlobalSequence, rec.CatalogIndex, rec.Position, rec.ID, rec.Title, rec.Publisher,
	); err != nil {
		return fmt.Errorf("upsert record %d: %w", rec.GlobalSequence, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert record %d: %w", rec.GlobalSequence, err)
	}
	return nil
}

// Clear removes every stored record.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

// BySequence retrieves the record with the given global sequence number.
func (s *Store) BySequence(sequence int) (catalog.Record, error) {
	return s.one(`WHERE sequence = ?`, sequence)
}

// ByID retrieves the record with the given identifier.
func (s *Store) ByID(id string) (catalog.Record, error) {
	return s.one(`WHERE id = ?`, id)
}

func (s *Store) one(where string, arg any) (catalog.Record, error) {
	var rec catalog.Record
	err := s.db.QueryRow(`
		SELECT sequence, catalog_idx, position, id, title, publisher
		FROM records `+where, arg,
	).Scan(&rec.GlobalSequence, &rec.CatalogIndex, &rec.Position, &rec.ID, &rec.Title, &rec.Publisher)
	if err == sql.ErrNoRows {
		return catalog.Record{}, ErrNotFound
	}
	if err != nil {
		return catalog.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// All returns every stored record in sequence order.
func (s *Store) All() ([]catalog.Record, error) {
	rows, err := s.db.Query(`
		SELECT sequence, catalog_idx, position, id, title, publisher
		FROM records ORDER BY sequence`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []catalog.Record
	for rows.Next() {
		var rec catalog.Record
		if err := rows.Scan(&rec.GlobalSequence, &rec.CatalogIndex, &rec.Position, &rec.ID, &rec.Title, &rec.Publisher); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return recs, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Match is one fuzzy search result.
type Match struct {
	Record catalog.Record
	Score  float32
}

// SearchTitle ranks stored records by fuzzy similarity between the query
// and the record's full name (publisher plus title). Substring matches rank
// above pure similarity so short queries behave intuitively.
func (s *Store) SearchTitle(query string, limit int) ([]Match, error) {
	recs, err := s.All()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	matches := make([]Match, 0, len(recs))
	for _, rec := range recs {
		name := strings.ToLower(rec.Name())
		score := edlib.JaroWinklerSimilarity(name, q)
		if strings.Contains(name, q) {
			score = 1.0
		}
		matches = append(matches, Match{Record: rec, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
