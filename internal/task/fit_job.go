package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kioku-srs/kioku/internal/domain"
	"github.com/kioku-srs/kioku/internal/domain/srs"
	"github.com/kioku-srs/kioku/internal/domain/srs/optimizer"
	"github.com/kioku-srs/kioku/internal/store"
)

// Fitter trains a weight vector from review logs. *optimizer.Optimizer is
// the production implementation.
type Fitter interface {
	Fit(ctx context.Context, logs []domain.ReviewLog, previous srs.Weights) (optimizer.Result, error)
}

// FitJob retrains the scheduler's weight vector from the full review history.
// A successful fit is persisted as a new parameter version and published to
// the live scheduler in one atomic swap. Fits that cannot improve on the
// previous vector (too little data, divergence) are logged and skipped; the
// scheduler keeps running on what it has.
type FitJob struct {
	logs      store.ReviewLogStore
	params    store.ParametersStore
	scheduler srs.Service
	opt       Fitter
	logger    *slog.Logger

	now func() time.Time
}

// NewFitJob creates a FitJob. If logger is nil, a default logger will be used.
func NewFitJob(
	logs store.ReviewLogStore,
	params store.ParametersStore,
	scheduler srs.Service,
	opt Fitter,
	logger *slog.Logger,
) *FitJob {
	if logs == nil {
		panic("logs cannot be nil")
	}
	if params == nil {
		panic("params cannot be nil")
	}
	if scheduler == nil {
		panic("scheduler cannot be nil")
	}
	if opt == nil {
		panic("opt cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FitJob{
		logs:      logs,
		params:    params,
		scheduler: scheduler,
		opt:       opt,
		logger:    logger.With(slog.String("component", "fit_job")),
		now:       time.Now,
	}
}

// Name implements Job.
func (j *FitJob) Name() string { return "parameter_fit" }

// Run implements Job. It performs one full fit cycle.
func (j *FitJob) Run(ctx context.Context) error {
	previous := j.scheduler.Parameters().Weights
	if rec, err := j.params.Latest(ctx); err == nil {
		previous = rec.Weights
	} else if !errors.Is(err, store.ErrParametersNotFound) {
		return fmt.Errorf("loading previous parameters: %w", err)
	}

	history, err := j.logs.ListSince(ctx, time.Time{})
	if err != nil {
		return fmt.Errorf("loading review history: %w", err)
	}

	result, err := j.opt.Fit(ctx, history, previous)
	if err != nil {
		if errors.Is(err, optimizer.ErrInsufficientData) || errors.Is(err, optimizer.ErrDiverged) {
			j.logger.Warn("fit skipped, keeping previous parameters",
				slog.String("reason", err.Error()),
				slog.Int("review_count", result.ReviewCount))
			return nil
		}
		return fmt.Errorf("fitting parameters: %w", err)
	}

	current := j.scheduler.Parameters()
	rec := &store.ParametersRecord{
		Weights:          result.Weights,
		DesiredRetention: current.DesiredRetention,
		ReviewCount:      result.ReviewCount,
		LogLoss:          result.LogLoss,
		TrainedAt:        j.now().UTC(),
	}
	if err := j.params.Save(ctx, rec); err != nil {
		return fmt.Errorf("saving fitted parameters: %w", err)
	}

	next := current.Clone()
	next.Weights = result.Weights
	if err := j.scheduler.SetParameters(next); err != nil {
		return fmt.Errorf("publishing fitted parameters: %w", err)
	}

	j.logger.Info("fitted parameters published",
		slog.Int64("version", rec.Version),
		slog.Int("review_count", result.ReviewCount),
		slog.Float64("log_loss", result.LogLoss))
	return nil
}
