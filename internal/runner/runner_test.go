package runner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyu/textfetch/internal/catalog"
	"github.com/wyu/textfetch/internal/selection"
	"github.com/wyu/textfetch/internal/transfer"
	"github.com/wyu/textfetch/pkg/ndr"
)

// fakeSource replays a fixed record stream.
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

type fakeResolver struct {
	failIDs map[string]error
	calls   []string
}

func (f *fakeResolver) Resolve(ctx context.Context, recordID string) (*ndr.ResolvedSource, error) {
	f.calls = append(f.calls, recordID)
	if err, ok := f.failIDs[recordID]; ok {
		return nil, err
	}
	return &ndr.ResolvedSource{ID: recordID, Fragment: "/assets/" + recordID + ".pdf"}, nil
}

type fakeTransferer struct {
	failFragments map[string]error
	dests         []string
}

func (f *fakeTransferer) Transfer(ctx context.Context, fragment, destPath string) transfer.Outcome {
	if err, ok := f.failFragments[fragment]; ok {
		return transfer.Outcome{Status: transfer.StatusFailed, Path: destPath, Err: err}
	}
	f.dests = append(f.dests, destPath)
	return transfer.Outcome{Status: transfer.StatusSuccess, Path: destPath, BytesWritten: 2048, Mirror: "https://m1"}
}

func records(n int) []catalog.Record {
	recs := make([]catalog.Record, n)
	for i := range recs {
		recs[i] = catalog.Record{
			ID:             fmt.Sprintf("id-%d", i+1),
			Title:          fmt.Sprintf("册%d", i+1),
			Publisher:      "人教版",
			GlobalSequence: i + 1,
		}
	}
	return recs
}

func mustMode(t *testing.T, f selection.Flags) selection.Mode {
	t.Helper()
	m, err := selection.Parse(f)
	require.NoError(t, err)
	return m
}

func TestRunRange(t *testing.T) {
	src := &fakeSource{records: records(10)}
	res := &fakeResolver{}
	tr := &fakeTransferer{}

	r := New(src, res, tr, mustMode(t, selection.Flags{Range: "3-5"}), "/out")
	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, []string{"id-3", "id-4", "id-5"}, res.calls)
	assert.Equal(t, "/out/人教版册3.pdf", tr.dests[0])

	// The walk stops once the range is satisfied.
	assert.Equal(t, 5, src.pos)
}

func TestRunBySequenceStopsEarly(t *testing.T) {
	src := &fakeSource{records: records(10)}
	res := &fakeResolver{}
	tr := &fakeTransferer{}

	r := New(src, res, tr, mustMode(t, selection.Flags{Sequence: 2}), "/out")
	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, []string{"id-2"}, res.calls)
	assert.Equal(t, 2, src.pos)
}

func TestRunRecordFailureDoesNotAbort(t *testing.T) {
	src := &fakeSource{records: records(4)}
	res := &fakeResolver{failIDs: map[string]error{"id-2": ndr.ErrNoSource}}
	tr := &fakeTransferer{failFragments: map[string]error{"/assets/id-3.pdf": transfer.ErrAllMirrorsFailed}}

	r := New(src, res, tr, mustMode(t, selection.Flags{Range: "1-4"}), "/out")
	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 2, summary.Succeeded)
	require.Len(t, summary.Failed, 2)
	assert.ErrorIs(t, summary.Failed[0].Err, ndr.ErrNoSource)
	assert.Equal(t, "id-2", summary.Failed[0].Record.ID)
	assert.ErrorIs(t, summary.Failed[1].Err, transfer.ErrAllMirrorsFailed)
}

func TestRunWalkerErrorIsFatal(t *testing.T) {
	walkErr := errors.New("fetch page 2: boom")
	src := &fakeSource{records: records(2), err: walkErr}

	r := New(src, &fakeResolver{}, &fakeTransferer{}, mustMode(t, selection.Flags{Range: "1-10"}), "/out")
	summary, err := r.Run(context.Background())

	assert.ErrorIs(t, err, walkErr)
	assert.Equal(t, 2, summary.Processed)
}

func TestRunRangePastCatalogEnd(t *testing.T) {
	src := &fakeSource{records: records(12)}
	res := &fakeResolver{}

	r := New(src, res, &fakeTransferer{}, mustMode(t, selection.Flags{Range: "10-20"}), "/out")
	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 3, summary.Succeeded)

	// Sequences 13-20 were never reachable; each shows up as a failure.
	require.Len(t, summary.Failed, 8)
	assert.Equal(t, 13, summary.Failed[0].Record.GlobalSequence)
	assert.Equal(t, 20, summary.Failed[7].Record.GlobalSequence)
	for _, f := range summary.Failed {
		assert.ErrorIs(t, f.Err, selection.ErrInvalidSelection)
	}
}

func TestRunSelectionBeyondCatalog(t *testing.T) {
	src := &fakeSource{records: records(3)}

	r := New(src, &fakeResolver{}, &fakeTransferer{}, mustMode(t, selection.Flags{Sequence: 50}), "/out")
	_, err := r.Run(context.Background())

	assert.ErrorIs(t, err, selection.ErrInvalidSelection)
}

func TestRunByIDNotFound(t *testing.T) {
	src := &fakeSource{records: records(3)}

	mode := mustMode(t, selection.Flags{BookID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"})
	r := New(src, &fakeResolver{}, &fakeTransferer{}, mode, "/out")
	_, err := r.Run(context.Background())

	assert.ErrorIs(t, err, selection.ErrInvalidSelection)
}

func TestRunLegacyLimit(t *testing.T) {
	src := &fakeSource{records: records(10)}
	res := &fakeResolver{}

	r := New(src, res, &fakeTransferer{}, mustMode(t, selection.Flags{Limit: 2}), "/out")
	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, []string{"id-1", "id-2"}, res.calls)
}

func TestRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{records: records(5)}
	r := New(src, &fakeResolver{}, &fakeTransferer{}, mustMode(t, selection.Flags{Range: "1-5"}), "/out", WithDelay(1))
	_, err := r.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}
