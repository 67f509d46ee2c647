package cron

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
	"github.com/angelmondragon/basketcase/pkg/logger"
	"github.com/angelmondragon/basketcase/pkg/metrics"
)

const defaultPollInterval = time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger       *logger.Logger
	Registry     *Registry
	Lock         Lock
	Markers      MarkerStore
	Schedule     Weekly
	Metrics      *metrics.CronJobMetrics
	PollInterval time.Duration
	Now          func() time.Time
}

// Service polls the weekly schedule and runs registered jobs once per slot.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	markers  MarkerStore
	schedule Weekly
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	markers := params.Markers
	if markers == nil {
		markers = NewMemoryMarkerStore()
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		markers:  markers,
		schedule: params.Schedule,
		metrics:  params.Metrics,
		interval: interval,
		now:      now,
	}, nil
}

// Run polls until the context is canceled. A job without a marker is baselined to the
// current slot, so starting the worker never triggers an immediate run.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.baseline(ctx); err != nil {
		s.logg.Error(ctx, "failed to baseline cron markers", err)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":     s.registry.Names(),
		"next_run": s.schedule.Next(s.now()),
	}), "cron service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

func (s *Service) baseline(ctx context.Context) error {
	slot := s.schedule.Previous(s.now())
	for _, job := range s.registry.Jobs() {
		_, ok, err := s.markers.LastRun(ctx, job.Name())
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := s.markers.MarkRun(ctx, job.Name(), slot); err != nil {
			return err
		}
	}
	return nil
}

// runCycle runs every job whose last recorded slot precedes the current one.
func (s *Service) runCycle(ctx context.Context) error {
	slot := s.schedule.Previous(s.now())
	var due []Job
	for _, job := range s.registry.Jobs() {
		last, ok, err := s.markers.LastRun(ctx, job.Name())
		if err != nil {
			return fmt.Errorf("read marker for %s: %w", job.Name(), err)
		}
		if ok && !last.Before(slot) {
			continue
		}
		due = append(due, job)
	}
	if len(due) == 0 {
		return nil
	}

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		for _, job := range due {
			s.metrics.IncSkipped(job.Name())
		}
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(s.logg.WithField(ctx, "slot", slot), "scheduled run starting")
	for _, job := range due {
		if s.runJob(ctx, job) {
			if err := s.markers.MarkRun(ctx, job.Name(), slot); err != nil {
				s.logg.Error(ctx, "failed to record cron marker", err)
			}
		}
	}
	s.logg.Info(ctx, "scheduled run complete")
	return nil
}

// runJob reports whether the slot counts as consumed. A job that lost the race to an
// on-demand run (CONFLICT) stays due and is retried on the next poll.
func (s *Service) runJob(ctx context.Context, job Job) bool {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())

	switch {
	case err == nil:
		s.logg.Info(jobCtx, "job completed")
		s.metrics.IncSuccess(job.Name())
		return true
	case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		s.logg.Warn(jobCtx, "job already running elsewhere; will retry")
		s.metrics.IncSkipped(job.Name())
		return false
	default:
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return true
	}
}
