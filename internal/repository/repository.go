package repository

import (
	"context"
	"time"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

type Filter struct {
	Limit  int
	Offset int
	Since  *time.Time
	Kind   *models.DisasterKind
	Status *models.RunStatus
}

// RunRepository archives run snapshots so history outlives the in-memory
// registry.
type RunRepository interface {
	SaveRun(ctx context.Context, v models.RunView) error
	GetRun(ctx context.Context, id string) (*models.RunView, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListRuns(ctx context.Context, opts Filter) ([]models.RunView, error)
}
