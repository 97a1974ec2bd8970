package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job is a named periodic task. The running flag guarantees at most one
// in-flight run per job: if a run outlasts its interval the next tick is
// skipped, never stacked.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error

	running atomic.Bool
}

// Registry owns the background jobs and their tickers.
type Registry struct {
	jobs []*Job
	log  *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{log: log}
}

func (r *Registry) Add(name string, every time.Duration, run func(ctx context.Context) error) {
	r.jobs = append(r.jobs, &Job{Name: name, Every: every, Run: run})
}

// Start launches one goroutine per job. Each job also fires once immediately
// so a restarted worker catches up without waiting a full interval.
func (r *Registry) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	for _, job := range r.jobs {
		r.wg.Add(1)
		go func(j *Job) {
			defer r.wg.Done()

			r.log.Info("job registered",
				zap.String("job", j.Name),
				zap.Duration("every", j.Every),
			)

			r.runOnce(ctx, j)

			ticker := time.NewTicker(j.Every)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.runOnce(ctx, j)
				case <-ctx.Done():
					return
				}
			}
		}(job)
	}
}

// Stop cancels all jobs and waits for in-flight runs to finish.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Registry) runOnce(ctx context.Context, j *Job) {
	if !j.running.CompareAndSwap(false, true) {
		r.log.Warn("previous run still in progress, skipping tick", zap.String("job", j.Name))
		return
	}
	defer j.running.Store(false)

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		r.log.Error("job run failed",
			zap.String("job", j.Name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	r.log.Debug("job run finished",
		zap.String("job", j.Name),
		zap.Duration("took", time.Since(start)),
	)
}
