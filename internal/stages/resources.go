package stages

import (
	"context"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

// Facilities within this distance of the boundary are treated as at risk.
const facilityBufferDeg = 0.02

type facility struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Capacity float64 `json:"capacity,omitempty"`
}

// Resources sizes the response from the affected population and lists
// the infrastructure near the boundary.
func Resources(ctx context.Context, in Input) (models.StageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	box := boundaryBox(in)
	est := estimatePopulation(in.Data.Layer(models.ProviderPopulation), box)

	near := box.Expand(facilityBufferDeg)
	var atRisk, responders []facility
	for _, f := range in.Data.Layer(models.ProviderInfrastructure).Features {
		loc, ok := models.PointOf(f)
		if !ok {
			continue
		}
		fac := facility{Lat: loc.Lat, Lon: loc.Lon, Capacity: models.Number(f.Properties, "capacity")}
		fac.Name, _ = f.Properties["name"].(string)
		fac.Type, _ = f.Properties["type"].(string)

		switch {
		case near.Contains(loc):
			atRisk = append(atRisk, fac)
		case fac.Type == "fire_station" || fac.Type == "hospital" || fac.Type == "emergency":
			responders = append(responders, fac)
		}
	}

	return models.StageResult{
		"required_resources": map[string]int{
			"ambulances":       max(1, int(est.Vulnerable)/100),
			"evacuation_buses": max(1, int(est.Total*0.2/50)),
			"personnel":        max(5, int(est.Total/200)),
		},
		"facilities_at_risk":   atRisk,
		"available_responders": responders,
	}, nil
}
