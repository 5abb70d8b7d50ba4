package storage

import (
	"context"

	"pixelppo/internal/model"
)

// Store persists training runs, their per-round loss history and the latest
// parameter checkpoint of each run.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveLossHistory(ctx context.Context, runID string, history []model.RoundMetrics) error
	GetLossHistory(ctx context.Context, runID string) ([]model.RoundMetrics, bool, error)
	SaveCheckpoint(ctx context.Context, checkpoint model.Checkpoint) error
	GetCheckpoint(ctx context.Context, runID string) (model.Checkpoint, bool, error)
}
