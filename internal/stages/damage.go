package stages

import (
	"context"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

const damageConfidence = 0.92

// ThermalSeverity classifies a fire by its brightness temperature in Kelvin.
func ThermalSeverity(kelvin float64) models.Severity {
	switch {
	case kelvin > 400:
		return models.SeverityExtreme
	case kelvin > 370:
		return models.SeverityHigh
	case kelvin >= 340:
		return models.SeverityModerate
	default:
		return models.SeverityLow
	}
}

// fallbackRadiusDeg sizes the affected area when no perimeter was observed.
func fallbackRadiusDeg(s models.Severity) float64 {
	switch s {
	case models.SeverityExtreme:
		return 0.04
	case models.SeverityHigh:
		return 0.02
	case models.SeverityModerate:
		return 0.01
	default:
		return 0.005
	}
}

// Damage estimates the affected area and produces the boundary polygon the
// dependent stages consume.
func Damage(ctx context.Context, in Input) (models.StageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sat := in.Data.Satellite()
	severity := in.Disaster.Severity
	method := "declared_severity"

	var boundary models.Feature
	if sat.Perimeter != nil {
		boundary = *sat.Perimeter
		method = "satellite_perimeter"
	} else {
		boundary = models.Around(in.Disaster.Location, fallbackRadiusDeg(severity)).Polygon(nil)
	}
	if in.Disaster.Kind == models.KindWildfire && sat.ThermalIntensity > 0 {
		severity = ThermalSeverity(sat.ThermalIntensity)
	}

	box, _ := models.Bounds(boundary)
	return models.StageResult{
		models.BoundaryKey:  &boundary,
		"affected_area_km2": round(box.AreaKm2(), 3),
		"severity":          severity.String(),
		"thermal_intensity": sat.ThermalIntensity,
		"detections":        len(sat.Detections),
		"method":            method,
		"confidence":        damageConfidence,
	}, nil
}
