// Package catalog turns the platform's paginated part files into a
// deterministic, restartable sequence of normalized records.
package catalog

import "fmt"

// Record is the canonical identity of one catalog entry. Records are value
// types: built while walking a page, never mutated, discarded after use.
type Record struct {
	ID        string
	Title     string
	Publisher string

	// CatalogIndex is the 0-based catalog the record was discovered in.
	CatalogIndex int
	// Position is the record's 0-based rank among the catalog's valid
	// records.
	Position int
	// GlobalSequence is the 1-based rank across all catalogs in fixed
	// order. Strictly increasing and gap-free as the walk advances.
	GlobalSequence int
}

// Name returns the display name used for output files: publisher followed by
// title, matching how the platform labels editions.
func (r Record) Name() string {
	return r.Publisher + r.Title
}

// Coord addresses a record by catalog index and position within the catalog.
type Coord struct {
	Catalog int
	Item    int
}

func (c Coord) String() string {
	return fmt.Sprintf("catalog %d item %d", c.Catalog, c.Item)
}
