package stages

import (
	"context"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

// Used when the population layer has no tracts overlapping the boundary.
const defaultDensityPerKm2 = 3000.0

type populationEstimate struct {
	Total      float64
	Vulnerable float64
	Tracts     []string
	Method     string
}

// estimatePopulation apportions each census tract's population by the share
// of its area inside box.
func estimatePopulation(layer models.FeatureCollection, box models.BBox) populationEstimate {
	var est populationEstimate
	for _, f := range layer.Features {
		tb, ok := models.Bounds(f)
		if !ok {
			continue
		}
		overlap, ok := tb.Intersection(box)
		if !ok || tb.AreaKm2() == 0 {
			continue
		}
		share := overlap.AreaKm2() / tb.AreaKm2()
		est.Total += models.Number(f.Properties, "population") * share
		est.Vulnerable += models.Number(f.Properties, "vulnerable_pop") * share
		if id, ok := f.Properties["tract_id"].(string); ok {
			est.Tracts = append(est.Tracts, id)
		}
	}
	if len(est.Tracts) > 0 || est.Total > 0 {
		est.Method = "census_tracts"
		return est
	}

	est.Total = box.AreaKm2() * defaultDensityPerKm2
	est.Vulnerable = est.Total * 0.1
	est.Method = "density_estimate"
	return est
}

// Population counts residents and vulnerable groups inside the boundary.
func Population(ctx context.Context, in Input) (models.StageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	est := estimatePopulation(in.Data.Layer(models.ProviderPopulation), boundaryBox(in))
	total := int(est.Total)
	vulnerable := int(est.Vulnerable)

	return models.StageResult{
		"total_affected":         total,
		"evacuation_recommended": total,
		"vulnerable_population": map[string]int{
			"elderly":  vulnerable * 6 / 10,
			"children": vulnerable * 4 / 10,
		},
		"affected_tracts":   est.Tracts,
		"estimation_method": est.Method,
	}, nil
}
