// Package batch runs many cook jobs on a worker pool.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"copytopoints/internal/geo"
	"copytopoints/internal/geoio"
	"copytopoints/internal/instance"
	"copytopoints/internal/logging"
)

// Config holds the shared settings of a batch run.
type Config struct {
	Workers int
	// Progress, when positive, prints a progress line at this interval.
	Progress time.Duration
}

// Run processes all jobs. A failing job does not stop the others; a
// cancelled ctx stops scheduling new jobs, which are reported as failed.
func Run(ctx context.Context, cfg Config, jobs []Job) []Result {
	total := len(jobs)
	results := make([]Result, total)
	var processed atomic.Int64

	start := time.Now()

	done := make(chan struct{})
	if cfg.Progress > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Progress)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					p := processed.Load()
					if p > 0 {
						elapsed := time.Since(start).Seconds()
						rate := float64(p) / elapsed
						fmt.Printf("  [%d/%d] %.1f jobs/sec\n", p, total, rate)
					}
				}
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i := range jobs {
		results[i] = Result{ID: uuid.New(), Name: jobs[i].Name, Output: jobs[i].Output}
		if err := gctx.Err(); err != nil {
			results[i].Error = err.Error()
			continue
		}
		g.Go(func() error {
			processJob(gctx, jobs[i], &results[i])
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	close(done)

	return results
}

func processJob(ctx context.Context, job Job, res *Result) {
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()
	log := logging.L().With("job", res.Name, "id", res.ID)

	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return
	}
	src, err := geoio.ReadFile(job.Source)
	if err != nil {
		res.Error = err.Error()
		return
	}
	target, err := geoio.ReadFile(job.Target)
	if err != nil {
		res.Error = err.Error()
		return
	}

	params := job.Params
	params.Resolve()
	if err := params.Validate(); err != nil {
		res.Error = err.Error()
		return
	}
	p, err := params.ToInstance()
	if err != nil {
		res.Error = err.Error()
		return
	}

	out := geo.New()
	cooked, err := instance.New().Cook(out, src, target, p)
	res.Warnings = cooked.Warnings
	if err != nil {
		res.Error = err.Error()
		log.Warn("job failed", "err", err)
		return
	}
	res.Copies = cooked.Copies

	if err := os.MkdirAll(filepath.Dir(job.Output), 0755); err != nil {
		res.Error = err.Error()
		return
	}
	if err := geoio.WriteFile(job.Output, out); err != nil {
		res.Error = err.Error()
		return
	}
	res.Success = true
	log.Debug("job done", "copies", res.Copies, "elapsed", time.Since(start))
}
