package cron

import (
	"context"
	"fmt"

	"github.com/kiramarket/kirama-backend/pkg/logger"
)

const defaultExpiryBatch = 100

type offerSweeper interface {
	ExpireSweep(ctx context.Context, limit int) (int, error)
}

// AssignmentExpiryJobParams configure the offer expiry sweep.
type AssignmentExpiryJobParams struct {
	Logger   *logger.Logger
	Dispatch offerSweeper
	Batch    int
}

// NewAssignmentExpiryJob flips pending offers past their clock to expired.
// Lazy expiry on read already hides them; the sweep persists the state and
// emits the expiry events for couriers who never came back.
func NewAssignmentExpiryJob(params AssignmentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Dispatch == nil {
		return nil, fmt.Errorf("dispatch service required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &assignmentExpiryJob{
		logg:     params.Logger,
		dispatch: params.Dispatch,
		batch:    batch,
	}, nil
}

type assignmentExpiryJob struct {
	logg     *logger.Logger
	dispatch offerSweeper
	batch    int
}

func (j *assignmentExpiryJob) Name() string { return "assignment-expiry" }

func (j *assignmentExpiryJob) Run(ctx context.Context) error {
	expired, err := j.dispatch.ExpireSweep(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("assignment expiry sweep: %w", err)
	}
	if expired > 0 {
		logCtx := j.logg.WithField(ctx, "expired", expired)
		j.logg.Info(logCtx, "stale offers expired")
	}
	return nil
}
