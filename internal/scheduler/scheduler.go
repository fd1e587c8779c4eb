package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"

	"weather-compare/internal/services"
	"weather-compare/pkg/logging"
)

// Scheduler periodically runs ingestion followed by retention cleanup.
// It shares the IngestionService (and its reentrancy guard) with the
// manual POST /api/fetch trigger, so overlapping runs fail fast instead
// of racing.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ingestion *services.IngestionService
	interval  time.Duration
	logger    *logging.StructuredLogger
}

// New creates a new Scheduler.
func New(ingestion *services.IngestionService, interval time.Duration, logger *logging.StructuredLogger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		ingestion: ingestion,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).Do(s.runCycle)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()

	s.logger.Info(context.Background(), "[SCHEDULER_START] Ingestion schedule active", logging.Fields{
		"interval": s.interval.String(),
	})

	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// runCycle executes one ingestion + cleanup pass. Cleanup runs after
// ingestion but an ingestion failure does not suppress it: retention must
// keep up even when the upstream is down.
func (s *Scheduler) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s.logger.Info(ctx, "[SCHEDULER_RUN] Scheduled ingestion cycle starting", logging.Fields{})

	if _, err := s.ingestion.IngestAll(ctx); err != nil {
		if errors.Is(err, services.ErrIngestionInFlight) {
			s.logger.Warn(ctx, "[SCHEDULER_SKIP] Previous run still in flight, skipping", logging.Fields{})
			return
		}
		s.logger.Error(ctx, "[SCHEDULER_INGEST_ERROR] Scheduled ingestion failed", logging.Fields{}, err)
	}

	if _, err := s.ingestion.Cleanup(ctx); err != nil {
		s.logger.Error(ctx, "[SCHEDULER_CLEANUP_ERROR] Scheduled cleanup failed", logging.Fields{}, err)
	}
}
