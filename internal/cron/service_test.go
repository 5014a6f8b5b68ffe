package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type stubLeader struct {
	follower bool
	err      error
	leads    int
	resigns  int
}

func (l *stubLeader) TryLead(context.Context) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.follower {
		return false, nil
	}
	l.leads++
	return true, nil
}

func (l *stubLeader) Resign(context.Context) error {
	l.resigns++
	return nil
}

type countingJob struct {
	name  string
	err   error
	panic bool
	runs  int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	if j.panic {
		panic("bad row")
	}
	return j.err
}

func newTestService(t *testing.T, leader Leadership, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Jobs:    jobs,
		Leader:  leader,
		Metrics: metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return svc
}

func TestTickRunsEveryJobDespiteFailures(t *testing.T) {
	ok := &countingJob{name: "cart-expiry"}
	failing := &countingJob{name: "outbox-retention", err: errors.New("boom")}
	panicking := &countingJob{name: "broken", panic: true}
	after := &countingJob{name: "after"}
	leader := &stubLeader{}
	svc := newTestService(t, leader, ok, failing, panicking, after)

	require.NoError(t, svc.tick(context.Background()))

	for _, job := range []*countingJob{ok, failing, panicking, after} {
		assert.Equal(t, 1, job.runs, job.name)
	}
	assert.Equal(t, 1, leader.resigns)
}

func TestTickSkipsWhenAnotherReplicaLeads(t *testing.T) {
	job := &countingJob{name: "cart-expiry"}
	leader := &stubLeader{follower: true}
	svc := newTestService(t, leader, job)

	require.NoError(t, svc.tick(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, leader.resigns)
}

func TestTickReportsLeaseErrors(t *testing.T) {
	svc := newTestService(t, &stubLeader{err: errors.New("redis down")}, &countingJob{name: "x"})
	assert.Error(t, svc.tick(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "cart-expiry"}
	svc := newTestService(t, &stubLeader{}, job)
	svc.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, job.runs, "the first tick runs immediately")
}

func TestNewServiceDefaults(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Leader: &stubLeader{},
		Jobs:   []Job{nil, &countingJob{name: "a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, svc.interval)
	assert.Len(t, svc.jobs, 1)

	_, err = NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})})
	assert.Error(t, err)
}
