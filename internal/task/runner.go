package task

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is a unit of background work run on a schedule.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Run executes the job once. Errors are logged, not fatal; the job
	// runs again at the next tick.
	Run(ctx context.Context) error
}

// Runner executes a job immediately on start and then at a fixed interval
// until stopped.
type Runner struct {
	job      Job
	interval time.Duration
	logger   *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewRunner creates a Runner for the given job and interval.
func NewRunner(job Job, interval time.Duration, logger *slog.Logger) *Runner {
	if job == nil {
		panic("job cannot be nil")
	}
	if interval <= 0 {
		panic("interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		job:        job,
		interval:   interval,
		logger:     logger.With(slog.String("component", "task_runner"), slog.String("job", job.Name())),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the schedule loop. It returns immediately.
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop cancels the schedule loop and waits for an in-flight run to finish.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
}

func (r *Runner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runOnce()

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Info("task runner stopped")
			return
		case <-ticker.C:
			r.runOnce()
		}
	}
}

func (r *Runner) runOnce() {
	start := time.Now()
	r.logger.Info("job starting")

	if err := r.job.Run(r.ctx); err != nil {
		r.logger.Error("job failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return
	}

	r.logger.Info("job finished", slog.Duration("duration", time.Since(start)))
}
