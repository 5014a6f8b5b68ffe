package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	day = 24 * time.Hour

	defaultOutboxRetentionDays = 30
	defaultOutboxDeadAttempts  = 5
	defaultEmptyCartDays       = 14
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// purgeFunc deletes rows older than cutoff and reports how many went.
type purgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

// purgeJob is a cutoff-based cleanup run in one transaction per tick.
type purgeJob struct {
	name   string
	age    time.Duration
	logg   *logger.Logger
	db     txRunner
	purge  purgeFunc
	fields map[string]any
	now    func() time.Time
}

func newPurgeJob(name string, logg *logger.Logger, db txRunner, ageDays int, purge purgeFunc) (*purgeJob, error) {
	switch {
	case logg == nil:
		return nil, errors.New("logger required")
	case db == nil:
		return nil, errors.New("db runner required")
	case purge == nil:
		return nil, fmt.Errorf("%s: repository required", name)
	}
	return &purgeJob{
		name:   name,
		age:    time.Duration(ageDays) * day,
		logg:   logg,
		db:     db,
		purge:  purge,
		fields: map[string]any{"age_days": ageDays},
		now:    time.Now,
	}, nil
}

func (j *purgeJob) Name() string { return j.name }

func (j *purgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.age)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		deleted, err = j.purge(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}

	ctx = j.logg.WithFields(ctx, j.fields)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"job":          j.name,
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "purge complete")
	return nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// OutboxRetentionJobParams configure the outbox cleanup. Retention is in
// days; rows never published are dropped once they reach DeadAttempts.
type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Repository   outboxPurger
	Retention    int
	DeadAttempts int
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// NewOutboxRetentionJob drops published and dead outbox rows.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	var purge purgeFunc
	dead := orDefault(params.DeadAttempts, defaultOutboxDeadAttempts)
	if params.Repository != nil {
		purge = func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return params.Repository.DeletePublishedBefore(ctx, tx, cutoff, dead)
		}
	}
	job, err := newPurgeJob("outbox-retention", params.Logger, params.DB,
		orDefault(params.Retention, defaultOutboxRetentionDays), purge)
	if err != nil {
		return nil, err
	}
	job.fields["dead_attempts"] = dead
	return job, nil
}

// CartExpiryJobParams configure the empty cart cleanup. ExpiryDays counts
// from the cart's start date.
type CartExpiryJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository emptyCartPurger
	ExpiryDays int
}

type emptyCartPurger interface {
	DeleteEmptyCartsBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewCartExpiryJob drops active orders left without lines.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	var purge purgeFunc
	if params.Repository != nil {
		purge = params.Repository.DeleteEmptyCartsBefore
	}
	job, err := newPurgeJob("cart-expiry", params.Logger, params.DB,
		orDefault(params.ExpiryDays, defaultEmptyCartDays), purge)
	if err != nil {
		return nil, err
	}
	return job, nil
}
