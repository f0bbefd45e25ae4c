// Package main implements the entry point for the kioku server, which
// schedules vocabulary reviews with a spaced repetition algorithm and
// retrains its scheduling parameters in the background.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kioku-srs/kioku/internal/api"
	"github.com/kioku-srs/kioku/internal/config"
	"github.com/kioku-srs/kioku/internal/domain/srs"
	"github.com/kioku-srs/kioku/internal/domain/srs/optimizer"
	"github.com/kioku-srs/kioku/internal/platform/logger"
	"github.com/kioku-srs/kioku/internal/platform/postgres"
	"github.com/kioku-srs/kioku/internal/service/review"
	"github.com/kioku-srs/kioku/internal/store"
	"github.com/kioku-srs/kioku/internal/task"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("kioku-server: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)
	appLogger.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel))

	db, err := openDatabase(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := postgres.MigrateUp(db, appLogger); err != nil {
		return err
	}

	cardStore := postgres.NewPostgresCardStore(db, appLogger)
	logStore := postgres.NewPostgresReviewLogStore(db, appLogger)
	paramsStore := postgres.NewPostgresParametersStore(db, appLogger)

	params, err := loadParameters(context.Background(), cfg, paramsStore, appLogger)
	if err != nil {
		return err
	}
	scheduler, err := srs.NewService(params)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}

	reviewService := review.NewService(db, cardStore, logStore, scheduler, appLogger)

	fitter := optimizer.New(optimizer.Config{
		Epochs:        cfg.Optimizer.Epochs,
		MiniBatchSize: cfg.Optimizer.MiniBatchSize,
		LearningRate:  cfg.Optimizer.LearningRate,
		MaxSeqLen:     cfg.Optimizer.MaxSeqLen,
	}, params)
	fitRunner := task.NewRunner(
		task.NewFitJob(logStore, paramsStore, scheduler, fitter, appLogger),
		cfg.Optimizer.FitInterval,
		appLogger,
	)
	fitRunner.Start()
	defer fitRunner.Stop()

	router := api.NewRouter(api.NewReviewHandler(reviewService, appLogger))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		appLogger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openDatabase opens and verifies the connection pool.
func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// loadParameters combines the configured scheduling knobs with the most
// recently fitted weight vector, falling back to the shipped defaults when
// no fit has run yet.
func loadParameters(
	ctx context.Context,
	cfg *config.Config,
	paramsStore store.ParametersStore,
	log *slog.Logger,
) (*srs.Parameters, error) {
	params := srs.DefaultParameters()
	params.DesiredRetention = cfg.Scheduler.DesiredRetention
	params.MaximumInterval = cfg.Scheduler.MaximumInterval
	params.EnableFuzz = cfg.Scheduler.EnableFuzz
	if len(cfg.Scheduler.LearningSteps) > 0 {
		params.LearningSteps = cfg.Scheduler.LearningSteps
	}
	if len(cfg.Scheduler.RelearningSteps) > 0 {
		params.RelearningSteps = cfg.Scheduler.RelearningSteps
	}

	rec, err := paramsStore.Latest(ctx)
	if err != nil {
		if errors.Is(err, store.ErrParametersNotFound) {
			log.Info("no fitted parameters yet, using defaults")
			return params, nil
		}
		return nil, fmt.Errorf("loading fitted parameters: %w", err)
	}

	params.Weights = rec.Weights
	log.Info("loaded fitted parameters",
		slog.Int64("version", rec.Version),
		slog.Time("trained_at", rec.TrainedAt))
	return params, nil
}
