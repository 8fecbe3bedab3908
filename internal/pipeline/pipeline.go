// Package pipeline drives the fetch-transform-load run: a bounded pool of
// workers resolves and fetches property payloads concurrently, and a single
// sink goroutine drains their output into the store. The sink is the only
// writer for the duration of a run, which is what makes the shared store
// connection safe under fifty in-flight fetches.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/propwatch/appraisal-cli/internal/model"
	"github.com/propwatch/appraisal-cli/internal/normalize"
	"github.com/propwatch/appraisal-cli/internal/resolve"
	"github.com/propwatch/appraisal-cli/internal/store"
	"github.com/propwatch/appraisal-cli/pkg/appraiser"
)

// FolioResolver resolves a free-text address to a folio.
type FolioResolver interface {
	Resolve(ctx context.Context, address string) (string, error)
}

// Options configures one pipeline run.
type Options struct {
	// Workers bounds how many records are in flight at once, independent
	// of batch size.
	Workers int
	// QueueDepth bounds the worker-to-sink handoff channel. Zero means
	// 2x Workers. The bound is the run's only backpressure: a slow sink
	// blocks producers instead of growing memory.
	QueueDepth int
	// ResidentialOnly drops records whose classification is not residential.
	ResidentialOnly bool
	// RequireLand drops records that normalize to zero land-parcel rows.
	RequireLand bool
	// Normalize is the land-line filtering policy.
	Normalize normalize.Policy
}

// Pipeline wires the resolver, the record source, and the store together.
type Pipeline struct {
	resolver FolioResolver
	source   appraiser.Client
	store    store.Store
	opts     Options
}

// New creates a Pipeline. Workers defaults to 50, matching the record
// source's tolerated concurrency.
func New(resolver FolioResolver, source appraiser.Client, st store.Store, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 50
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 2 * opts.Workers
	}
	return &Pipeline{resolver: resolver, source: source, store: st, opts: opts}
}

// queueItem is the single outcome a worker emits per input record: either a
// row batch or a failure, never both, never neither.
type queueItem struct {
	input   model.InputRecord
	rows    *model.RowSet
	failure *model.Failure
}

// Run processes every input record and blocks until the sink has drained the
// last queued item. It returns the run report; the error is non-nil only for
// faults fatal to the whole run (a sink store failure), in which case rows
// committed before the fault remain valid.
func (p *Pipeline) Run(ctx context.Context, zipCode string, inputs []model.InputRecord) (*model.Report, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("zip", zipCode))
	log.Info("starting run",
		zap.Int("records", len(inputs)),
		zap.Int("workers", p.opts.Workers),
		zap.Int("queue_depth", p.opts.QueueDepth),
	)

	report := &model.Report{
		ZipCode:   zipCode,
		Attempted: len(inputs),
		StartedAt: time.Now().UTC(),
	}

	queue := make(chan queueItem, p.opts.QueueDepth)
	sinkDone := make(chan error, 1)
	go func() {
		sinkDone <- p.runSink(ctx, queue, len(inputs), report)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for _, in := range inputs {
		g.Go(func() error {
			// Failures stay per-record; a worker never aborts the group.
			queue <- p.process(gctx, in)
			return nil
		})
	}
	_ = g.Wait()

	// All producers have drained; the closed channel is the sink's
	// shutdown signal, so nothing enqueued is ever dropped.
	close(queue)
	sinkErr := <-sinkDone

	report.FinishedAt = time.Now().UTC()

	if err := p.store.SaveReport(ctx, report); err != nil {
		log.Warn("failed to persist run report", zap.Error(err))
	}

	log.Info("run complete",
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	for _, f := range report.Failures {
		log.Info("record failure", zap.String("input", f.Input),
			zap.String("kind", string(f.Kind)), zap.String("reason", f.Reason))
	}

	if sinkErr != nil {
		return report, eris.Wrap(sinkErr, "pipeline: sink failed")
	}
	return report, nil
}

// process runs resolve, fetch, filter, and normalize for one record and
// always produces exactly one queue item.
func (p *Pipeline) process(ctx context.Context, in model.InputRecord) queueItem {
	folio, err := p.resolver.Resolve(ctx, in.Address)
	if err != nil {
		return failureItem(in, classify(err), err)
	}

	prop, err := p.source.PropertyByFolio(ctx, folio)
	if err != nil {
		return failureItem(in, model.FailureSourceUnavailable, err)
	}

	if p.opts.ResidentialOnly {
		if prop.PropertyInfo == nil || !strings.Contains(prop.PropertyInfo.DORDescription, "RESIDENTIAL") {
			return failureItem(in, model.FailureFiltered, eris.New("not residential"))
		}
	}

	rows, err := normalize.Rows(prop, p.opts.Normalize)
	if err != nil {
		return failureItem(in, model.FailureNormalization, err)
	}

	if p.opts.RequireLand && len(rows.LandParcels) == 0 {
		return failureItem(in, model.FailureFiltered, eris.New("no land data"))
	}

	return queueItem{input: in, rows: rows}
}

// classify maps a resolve-stage error to its failure kind. An unmatched
// address is a resolution failure; anything else means the source itself
// misbehaved.
func classify(err error) model.FailureKind {
	if eris.Is(err, resolve.ErrNoMatch) {
		return model.FailureResolution
	}
	return model.FailureSourceUnavailable
}

func failureItem(in model.InputRecord, kind model.FailureKind, err error) queueItem {
	return queueItem{
		input: in,
		failure: &model.Failure{
			Input:  in.Address,
			Kind:   kind,
			Reason: err.Error(),
		},
	}
}

// runSink is the persistence sink: the sole store writer during a run. It
// exits when the queue is closed and empty. A store failure is fatal to the
// run, but the sink keeps draining so blocked producers can finish; items
// after the fault are not committed.
func (p *Pipeline) runSink(ctx context.Context, queue <-chan queueItem, total int, report *model.Report) error {
	log := zap.L().With(zap.String("component", "pipeline.sink"))

	processed := 0
	var fatal error
	for item := range queue {
		processed++

		switch {
		case item.failure != nil:
			report.Failed++
			report.Failures = append(report.Failures, *item.failure)
		case fatal != nil:
			report.Failed++
			report.Failures = append(report.Failures, model.Failure{
				Input:  item.input.Address,
				Kind:   model.FailureStore,
				Reason: "sink stopped: " + fatal.Error(),
			})
		default:
			if err := p.store.InsertBatch(ctx, item.input.AddressID, item.rows); err != nil {
				fatal = err
				log.Error("batch insert failed, aborting writes",
					zap.Int64("address_id", item.input.AddressID),
					zap.Error(err),
				)
				report.Failed++
				report.Failures = append(report.Failures, model.Failure{
					Input:  item.input.Address,
					Kind:   model.FailureStore,
					Reason: err.Error(),
				})
			} else {
				report.Succeeded++
			}
		}

		log.Info("progress", zap.Int("processed", processed), zap.Int("total", total))
	}

	return fatal
}
