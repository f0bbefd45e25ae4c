// Package main implements the offline parameter-fitting entry point. It
// reads the accumulated review logs, fits a new weight vector starting from
// the most recent one, and stores the result as a new version. Run it from
// cron when the background job in the server is not wanted.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kioku-srs/kioku/internal/config"
	"github.com/kioku-srs/kioku/internal/domain/srs"
	"github.com/kioku-srs/kioku/internal/domain/srs/optimizer"
	"github.com/kioku-srs/kioku/internal/platform/logger"
	"github.com/kioku-srs/kioku/internal/platform/postgres"
	"github.com/kioku-srs/kioku/internal/store"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "fit and report without storing the result")
	flag.Parse()

	if err := run(*dryRun); err != nil {
		log.Fatalf("kioku-optimize: %v", err)
	}
}

func run(dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	if err := postgres.MigrateUp(db, appLogger); err != nil {
		return err
	}

	logStore := postgres.NewPostgresReviewLogStore(db, appLogger)
	paramsStore := postgres.NewPostgresParametersStore(db, appLogger)

	base := srs.DefaultParameters()
	base.DesiredRetention = cfg.Scheduler.DesiredRetention
	base.MaximumInterval = cfg.Scheduler.MaximumInterval
	if len(cfg.Scheduler.LearningSteps) > 0 {
		base.LearningSteps = cfg.Scheduler.LearningSteps
	}
	if len(cfg.Scheduler.RelearningSteps) > 0 {
		base.RelearningSteps = cfg.Scheduler.RelearningSteps
	}

	previous := base.Weights
	if rec, err := paramsStore.Latest(ctx); err == nil {
		previous = rec.Weights
		appLogger.Info("starting from stored parameters",
			slog.Int64("version", rec.Version),
			slog.Time("trained_at", rec.TrainedAt))
	} else if !errors.Is(err, store.ErrParametersNotFound) {
		return fmt.Errorf("loading previous parameters: %w", err)
	}

	history, err := logStore.ListSince(ctx, time.Time{})
	if err != nil {
		return fmt.Errorf("loading review history: %w", err)
	}
	appLogger.Info("loaded review history", slog.Int("reviews", len(history)))

	opt := optimizer.New(optimizer.Config{
		Epochs:        cfg.Optimizer.Epochs,
		MiniBatchSize: cfg.Optimizer.MiniBatchSize,
		LearningRate:  cfg.Optimizer.LearningRate,
		MaxSeqLen:     cfg.Optimizer.MaxSeqLen,
	}, base)

	result, err := opt.Fit(ctx, history, previous)
	if err != nil {
		if errors.Is(err, optimizer.ErrInsufficientData) || errors.Is(err, optimizer.ErrDiverged) {
			appLogger.Warn("fit skipped, previous parameters remain current",
				slog.String("reason", err.Error()),
				slog.Int("review_count", result.ReviewCount))
			return nil
		}
		return fmt.Errorf("fitting parameters: %w", err)
	}

	appLogger.Info("fit complete",
		slog.Int("review_count", result.ReviewCount),
		slog.Float64("log_loss", result.LogLoss))

	if dryRun {
		appLogger.Info("dry run, not storing the fitted parameters")
		return nil
	}

	rec := &store.ParametersRecord{
		Weights:          result.Weights,
		DesiredRetention: base.DesiredRetention,
		ReviewCount:      result.ReviewCount,
		LogLoss:          result.LogLoss,
		TrainedAt:        time.Now().UTC(),
	}
	if err := paramsStore.Save(ctx, rec); err != nil {
		return fmt.Errorf("saving fitted parameters: %w", err)
	}

	appLogger.Info("fitted parameters stored", slog.Int64("version", rec.Version))
	return nil
}
