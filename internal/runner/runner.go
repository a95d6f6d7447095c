// Package runner drives the end-to-end fetch pipeline: walk the catalogs,
// apply the selection, resolve each selected record to a file fragment, and
// hand it to the transfer engine. Records are processed strictly one at a
// time in walk order.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wyu/textfetch/internal/catalog"
	"github.com/wyu/textfetch/internal/selection"
	"github.com/wyu/textfetch/internal/transfer"
	"github.com/wyu/textfetch/pkg/ndr"
)

// RecordSource is the walking side of the pipeline, satisfied by
// catalog.Walker.
type RecordSource interface {
	Next(ctx context.Context) bool
	Record() catalog.Record
	Err() error
}

// Resolver turns a record id into a downloadable source, satisfied by
// ndr.Client.
type Resolver interface {
	Resolve(ctx context.Context, recordID string) (*ndr.ResolvedSource, error)
}

// Transferer downloads a resolved fragment to a destination path, satisfied
// by transfer.Engine.
type Transferer interface {
	Transfer(ctx context.Context, fragment, destPath string) transfer.Outcome
}

// Failure describes one record that could not be fetched.
type Failure struct {
	Record catalog.Record
	Err    error
}

// Summary is the result of a pipeline run.
type Summary struct {
	Processed int
	Succeeded int
	Failed    []Failure
}

// Runner executes one fetch run.
type Runner struct {
	source     RecordSource
	resolver   Resolver
	transferer Transferer
	selector   *selection.Selector
	mode       selection.Mode
	outputRoot string
	delay      time.Duration
	log        *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithDelay sets the pause between consecutive records in multi-record
// selections. Single-record selections never pause.
func WithDelay(d time.Duration) Option {
	return func(r *Runner) {
		r.delay = d
	}
}

// WithLogger sets the runner's logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		r.log = log.With("component", "runner")
	}
}

// New wires a pipeline run for the given selection mode.
func New(source RecordSource, resolver Resolver, transferer Transferer, mode selection.Mode, outputRoot string, opts ...Option) *Runner {
	r := &Runner{
		source:     source,
		resolver:   resolver,
		transferer: transferer,
		selector:   selection.NewSelector(mode),
		mode:       mode,
		outputRoot: outputRoot,
		log:        slog.Default().With("component", "runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run walks the catalogs until the selection is satisfied or the stream
// ends. Per-record failures are collected in the summary and never abort
// the run; walker errors and impossible selections do.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var summary Summary

walk:
	for r.source.Next(ctx) {
		rec := r.source.Record()

		switch r.selector.Decide(rec) {
		case selection.Skip:
			continue
		case selection.Stop:
			break walk
		}

		if summary.Processed > 0 && r.delay > 0 && r.mode.Multi() {
			if err := sleep(ctx, r.delay); err != nil {
				return summary, err
			}
		}

		summary.Processed++
		if err := r.process(ctx, rec); err != nil {
			r.log.Error("record failed", "id", rec.ID, "sequence", rec.GlobalSequence, "error", err)
			summary.Failed = append(summary.Failed, Failure{Record: rec, Err: err})
		} else {
			summary.Succeeded++
		}

		if r.selector.Exhausted() {
			break
		}
	}

	if err := r.source.Err(); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if err := r.selector.Done(); err != nil {
		return summary, err
	}

	// A range can start inside the catalog yet extend past its end; the
	// unreachable tail counts as failures so a resume plan sees it.
	for _, seq := range r.selector.Unmet() {
		r.log.Error("record unreachable", "sequence", seq)
		summary.Failed = append(summary.Failed, Failure{
			Record: catalog.Record{GlobalSequence: seq},
			Err:    fmt.Errorf("%w: sequence %d beyond catalog end", selection.ErrInvalidSelection, seq),
		})
	}
	return summary, nil
}

func (r *Runner) process(ctx context.Context, rec catalog.Record) error {
	start := time.Now()

	src, err := r.resolver.Resolve(ctx, rec.ID)
	if err != nil {
		return err
	}

	// The detail endpoint's title is authoritative when it disagrees with
	// the catalog listing.
	title := rec.Title
	if src.Title != "" {
		title = src.Title
	}
	dest := filepath.Join(r.outputRoot, transfer.Filename(rec.Publisher, title))
	if _, statErr := os.Stat(dest); statErr == nil {
		r.log.Warn("overwriting existing file", "path", dest)
	}
	out := r.transferer.Transfer(ctx, src.Fragment, dest)
	if out.Status != transfer.StatusSuccess {
		return out.Err
	}

	r.log.Info("record fetched",
		"id", rec.ID,
		"sequence", rec.GlobalSequence,
		"path", out.Path,
		"bytes", out.BytesWritten,
		"mirror", out.Mirror,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// sleep pauses for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
