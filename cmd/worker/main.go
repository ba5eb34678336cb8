// Package main is the entry point for the condo background worker.
// It runs the daily penalty sweep and delivers outbox messages.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"condo/internal/app"
	"condo/internal/config"
	"condo/internal/core/types"
	"condo/internal/domain/charge"
	"condo/internal/infrastructure/storage/postgres"
	"condo/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Service:     "condo-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Infow("starting condo worker", "sweep_at", cfg.SweepAt.String(), "timezone", cfg.Location.String())

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer a.Close()

	worker := NewWorker(a.Sweeper, a.Relay(log), cfg, log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.RunSweeps(ctx)
	}()
	go func() {
		defer wg.Done()
		worker.RunRelay(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker schedules background jobs.
type Worker struct {
	sweeper *charge.Sweeper
	relay   *postgres.OutboxRelay
	cfg     *config.Config
	log     *logger.Logger
	now     func() time.Time
}

// NewWorker creates a worker.
func NewWorker(sweeper *charge.Sweeper, relay *postgres.OutboxRelay, cfg *config.Config, log *logger.Logger) *Worker {
	return &Worker{
		sweeper: sweeper,
		relay:   relay,
		cfg:     cfg,
		log:     log.WithComponent("worker"),
		now:     time.Now,
	}
}

// RunSweeps recomputes penalties once at startup, then once a day at the
// configured local time.
func (w *Worker) RunSweeps(ctx context.Context) {
	w.sweep(ctx)
	for {
		next := w.cfg.SweepAt.Next(w.now().In(w.cfg.Location))
		w.log.Infow("next penalty sweep scheduled", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	today := types.DateIn(w.now(), w.cfg.Location)
	res, err := w.sweeper.Run(ctx, today)
	if err != nil {
		w.log.Errorw("penalty sweep failed", "date", today.Format(types.DateLayout), "scanned", res.Scanned, "error", err)
		return
	}
	w.log.Infow("penalty sweep finished",
		"date", today.Format(types.DateLayout),
		"scanned", res.Scanned,
		"updated", res.Updated,
		"chunks", res.Chunks,
	)
}

// RunRelay polls the outbox until ctx is canceled. A full batch is followed
// immediately by the next one.
func (w *Worker) RunRelay(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.OutboxPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				stats, err := w.relay.ProcessBatch(ctx)
				if err != nil {
					w.log.Errorw("outbox relay failed", "error", err)
					break
				}
				if stats.Claimed < postgres.DefaultRelayConfig().BatchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}
