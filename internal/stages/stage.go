// Package stages holds the analysis stages run against a disaster's fetched
// data. The formulas are deliberately simple estimates.
package stages

import (
	"context"
	"math"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

// Input is what a stage sees. Boundary is only set for stages that declare
// NeedsBoundary.
type Input struct {
	Disaster models.Disaster
	Data     models.DataBundle
	Boundary *models.Feature
}

type Func func(ctx context.Context, in Input) (models.StageResult, error)

// Stage registers an analysis step with the scheduler.
type Stage struct {
	Name          string
	NeedsBoundary bool
	Run           Func
}

// Default returns the damage stage followed by the dependent stages.
func Default() []Stage {
	return []Stage{
		{Name: models.StageDamage, Run: Damage},
		{Name: models.StagePopulation, NeedsBoundary: true, Run: Population},
		{Name: models.StageRouting, NeedsBoundary: true, Run: Routing},
		{Name: models.StageResources, NeedsBoundary: true, Run: Resources},
		{Name: models.StagePrediction, Run: Prediction},
	}
}

func boundaryBox(in Input) models.BBox {
	if in.Boundary != nil {
		if b, ok := models.Bounds(*in.Boundary); ok {
			return b
		}
	}
	return models.Around(in.Disaster.Location, fallbackRadiusDeg(in.Disaster.Severity))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
