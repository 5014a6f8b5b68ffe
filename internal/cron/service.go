package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// Job is one maintenance task run on every tick.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Leadership keeps a tick to a single worker across replicas.
type Leadership interface {
	TryLead(ctx context.Context) (bool, error)
	Resign(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Leader   Leadership
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs its jobs once at start and then every Interval, only on the
// replica that holds leadership for that tick.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	leader   Leadership
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Leader == nil {
		return nil, errors.New("leadership required")
	}
	jobs := make([]Job, 0, len(params.Jobs))
	for _, job := range params.Jobs {
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		jobs:     jobs,
		leader:   params.Leader,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.tick(ctx); err != nil {
			s.logg.Error(ctx, "cron tick failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) tick(ctx context.Context) error {
	leading, err := s.leader.TryLead(ctx)
	if err != nil {
		return err
	}
	if !leading {
		s.logg.Info(ctx, "another replica leads this tick")
		return nil
	}
	defer func() {
		if err := s.leader.Resign(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron leadership release failed", err)
		}
	}()

	failed := 0
	for _, job := range s.jobs {
		if err := s.runJob(ctx, job); err != nil {
			failed++
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"jobs": len(s.jobs), "failed": failed}), "cron tick complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		elapsed := time.Since(start)
		s.metrics.Record(job.Name(), elapsed, err)
		ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
		if err != nil {
			s.logg.Error(ctx, "cron job failed", err)
			return
		}
		s.logg.Info(ctx, "cron job completed")
	}()
	return job.Run(ctx)
}
