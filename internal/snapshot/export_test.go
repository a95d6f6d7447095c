package snapshot

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyu/textfetch/internal/catalog"
)

type fakeSource struct {
	records []catalog.Record
	pos     int
	err     error
}

func (f *fakeSource) Next(ctx context.Context) bool {
	if f.pos >= len(f.records) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeSource) Record() catalog.Record { return f.records[f.pos-1] }
func (f *fakeSource) Err() error             { return f.err }

func TestExport(t *testing.T) {
	store := testStore(t)
	src := &fakeSource{records: sampleRecords()}

	var buf bytes.Buffer
	n, err := Export(context.Background(), src, store, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}), "CSV must start with a UTF-8 BOM")

	r := csv.NewReader(bytes.NewReader(out[3:]))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"number", "catalog", "position", "id", "title", "publisher"}, rows[0])
	assert.Equal(t, []string{"1", "0", "1", "id-1", "数学一年级上册", "人教版"}, rows[1])
	assert.Equal(t, []string{"3", "1", "1", "id-3", "英语三年级起点", "外研版"}, rows[3])

	// Every exported record is also persisted.
	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestExportReplacesPreviousCapture(t *testing.T) {
	store := testStore(t)
	for _, rec := range sampleRecords() {
		require.NoError(t, store.Upsert(rec))
	}

	// The catalog shrank and shifted since the last capture.
	src := &fakeSource{records: []catalog.Record{
		{ID: "id-2", Title: "语文一年级上册", Publisher: "人教版", CatalogIndex: 0, Position: 1, GlobalSequence: 1},
		{ID: "id-3", Title: "英语三年级起点", Publisher: "外研版", CatalogIndex: 1, Position: 1, GlobalSequence: 2},
	}}

	var buf bytes.Buffer
	n, err := Export(context.Background(), src, store, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = store.BySequence(3)
	assert.ErrorIs(t, err, ErrNotFound, "stale rows must not survive a re-capture")
}

func TestExportWalkerError(t *testing.T) {
	store := testStore(t)
	walkErr := errors.New("fetch page: boom")
	src := &fakeSource{records: sampleRecords()[:1], err: walkErr}

	var buf bytes.Buffer
	_, err := Export(context.Background(), src, store, &buf)
	assert.ErrorIs(t, err, walkErr)
}

func TestExportEmptyCatalog(t *testing.T) {
	store := testStore(t)
	var buf bytes.Buffer

	n, err := Export(context.Background(), &fakeSource{}, store, &buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Header only.
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1)
}
