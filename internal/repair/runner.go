// Package repair rewrites stored articles in place with the text cleanup
// rules and reports on articles that need attention.
package repair

import (
	"context"
	"fmt"

	"github.com/techreview-es/mgz-harvester/internal/domain"
	"github.com/techreview-es/mgz-harvester/internal/logger"
	"github.com/techreview-es/mgz-harvester/internal/store"
)

// DefaultBatchSize keeps each commit under the store's per-batch write limit.
const DefaultBatchSize = 400

// Job computes the field updates for one document. It returns nil when the
// document is already clean.
type Job interface {
	Name() string
	Apply(doc domain.Document) map[string]any
}

// Result summarizes a repair run.
type Result struct {
	Scanned int
	Updated int
	Batches int
}

// Runner applies a Job over the whole collection.
type Runner struct {
	store     store.Store
	batchSize int
	log       logger.Logger
}

// NewRunner returns a Runner. A non-positive batchSize uses DefaultBatchSize.
func NewRunner(st store.Store, batchSize int, log logger.Logger) *Runner {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Runner{store: st, batchSize: batchSize, log: logger.Ensure(log)}
}

// Run scans every document and writes back only the changed ones in batches.
// A failed commit stops the run; batches committed before it stay committed.
func (r *Runner) Run(ctx context.Context, job Job) (Result, error) {
	var res Result
	batch := r.store.NewBatch()

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		size := batch.Len()
		if err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("%s: %w", job.Name(), err)
		}
		res.Batches++
		r.log.InfoObj("repair batch committed", "repair", map[string]any{
			"job":     job.Name(),
			"batch":   res.Batches,
			"size":    size,
			"updated": res.Updated,
		})
		batch = r.store.NewBatch()
		return nil
	}

	err := r.store.Scan(ctx, store.ScanOptions{}, func(doc domain.Document) error {
		res.Scanned++
		updates := job.Apply(doc)
		if len(updates) == 0 {
			return nil
		}
		batch.Update(doc.ID, updates)
		res.Updated++
		if batch.Len() >= r.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		r.log.ErrorObj("repair aborted", "repair_error", map[string]any{"job": job.Name(), "error": err.Error()})
		return res, err
	}
	if err := flush(); err != nil {
		r.log.ErrorObj("repair aborted", "repair_error", map[string]any{"job": job.Name(), "error": err.Error()})
		return res, err
	}

	r.log.InfoObj("repair complete", "repair", map[string]any{
		"job":     job.Name(),
		"scanned": res.Scanned,
		"updated": res.Updated,
	})
	return res, nil
}
