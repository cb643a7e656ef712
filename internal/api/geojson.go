package api

import (
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

// toGeoJSON renders runs as a point collection for map clients.
func toGeoJSON(runs []models.RunView) models.FeatureCollection {
	features := make([]models.Feature, 0, len(runs))

	for _, r := range runs {
		props := map[string]any{
			"id":         r.ID,
			"kind":       r.Disaster.Kind,
			"severity":   r.Disaster.Severity.String(),
			"status":     r.Status,
			"created_at": r.Disaster.CreatedAt,
			"updated_at": r.UpdatedAt,
		}
		if d := r.Disaster.MetadataString("description"); d != "" {
			props["description"] = d
		}
		if r.Plan != nil {
			props["summary"] = r.Plan.Summary
			props["fallback"] = r.Plan.Fallback
		}
		if r.Error != nil {
			props["error_kind"] = r.Error.Kind
		}
		features = append(features, models.PointFeature(r.Disaster.Location, props))
	}

	return models.FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
