package runner

import (
	"context"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/holdings-engine/internal/attribution"
	"github.com/rawblock/holdings-engine/pkg/models"
)

// BatchRunner executes the attribution engine once per submitted target and
// hands each finished report to a completion callback. Inputs are fully
// independent, so jobs run concurrently up to a fixed worker bound. The
// engine itself never fetches data; every job must arrive with its
// transfers, contracts, funding sources, and balances already resolved.
type BatchRunner struct {
	workers  int
	onReport func(models.HoldingsReport) // Optional completion callback

	// Progress tracking (atomic for safe concurrent reads)
	totalJobs    atomic.Int64
	completed    atomic.Int64
	totalFlagged atomic.Int64
	isRunning    atomic.Bool
}

// BatchProgress represents the runner's current state for the API
type BatchProgress struct {
	IsRunning    bool  `json:"isRunning"`
	TotalJobs    int64 `json:"totalJobs"`
	Completed    int64 `json:"completed"`
	TotalFlagged int64 `json:"totalFlagged"` // Reports with at least one risk flag
}

func NewBatchRunner(workers int, onReport func(models.HoldingsReport)) *BatchRunner {
	if workers < 1 {
		workers = 4
	}
	return &BatchRunner{
		workers:  workers,
		onReport: onReport,
	}
}

// GetProgress returns the current batch progress (thread-safe)
func (r *BatchRunner) GetProgress() BatchProgress {
	return BatchProgress{
		IsRunning:    r.isRunning.Load(),
		TotalJobs:    r.totalJobs.Load(),
		Completed:    r.completed.Load(),
		TotalFlagged: r.totalFlagged.Load(),
	}
}

// Run processes a set of analysis inputs asynchronously. Returns false if a
// batch is already in flight.
func (r *BatchRunner) Run(ctx context.Context, jobs []models.AnalysisInput) bool {
	if !r.isRunning.CompareAndSwap(false, true) {
		log.Println("[BatchRunner] Batch already in progress, ignoring duplicate request")
		return false
	}

	r.totalJobs.Store(int64(len(jobs)))
	r.completed.Store(0)
	r.totalFlagged.Store(0)

	go func() {
		defer r.isRunning.Store(false)

		log.Printf("[BatchRunner] Starting batch: %d targets, %d workers", len(jobs), r.workers)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)

		for _, job := range jobs {
			job := job
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				report := attribution.Analyze(job)
				r.completed.Add(1)
				if len(report.RiskFlags) > 0 {
					r.totalFlagged.Add(1)
				}

				if r.onReport != nil {
					r.onReport(report)
				}

				// Log progress every 50 targets
				done := r.completed.Load()
				if done%50 == 0 {
					log.Printf("[BatchRunner] Progress: %d/%d targets | %d flagged",
						done, r.totalJobs.Load(), r.totalFlagged.Load())
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			log.Printf("[BatchRunner] Batch cancelled after %d/%d targets: %v",
				r.completed.Load(), r.totalJobs.Load(), err)
			return
		}

		log.Printf("[BatchRunner] Batch complete: %d targets analyzed, %d with risk flags",
			r.completed.Load(), r.totalFlagged.Load())
	}()
	return true
}
