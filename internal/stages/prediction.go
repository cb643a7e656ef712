package stages

import (
	"context"
	"fmt"
	"math"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

const (
	baseSpreadRateKmh = 2.0
	baseConfidence    = 0.75
	confidenceDecay   = 0.05

	defaultWindKmh     = 36.0
	defaultTemperature = 20.0
	defaultHumidity    = 50.0
)

var predictionHours = []int{1, 3, 6}

// SpreadRateKmh is the weather-adjusted fire spread rate.
func SpreadRateKmh(w models.WeatherReport) float64 {
	wind, temp, humidity := w.WindSpeedKmh, w.TemperatureC, w.Humidity
	if w.Time.IsZero() && w.Conditions == "" {
		wind, temp, humidity = defaultWindKmh, defaultTemperature, defaultHumidity
	}
	windFactor := max(0.5, 1+wind/50)
	tempFactor := max(0.5, 1+(temp-20)/40)
	humidityFactor := max(0.1, 1.5-humidity/100)
	return baseSpreadRateKmh * windFactor * tempFactor * humidityFactor
}

// Prediction projects the fire outward at 1, 3 and 6 hours. Other kinds are
// reported as not modelled.
func Prediction(ctx context.Context, in Input) (models.StageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Disaster.Kind != models.KindWildfire {
		return models.StageResult{
			"status":  "not_modelled",
			"message": fmt.Sprintf("spread modelling is not available for %s", in.Disaster.Kind),
		}, nil
	}

	weather := in.Data.CurrentWeather()
	rate := SpreadRateKmh(weather)

	var currentArea float64
	if p := in.Data.Satellite().Perimeter; p != nil {
		if b, ok := models.Bounds(*p); ok {
			currentArea = b.AreaKm2()
		}
	}

	timeline := make(map[string]any, len(predictionHours))
	for _, h := range predictionHours {
		r := rate * float64(h)
		timeline[fmt.Sprintf("hour_%d", h)] = map[string]float64{
			"spread_distance_km": round(r, 2),
			"area_km2":           round(currentArea+math.Pi*r*r, 2),
			"confidence":         round(max(0, baseConfidence-float64(h)*confidenceDecay), 2),
		}
	}

	return models.StageResult{
		"current_spread_rate_kmh": round(rate, 2),
		"wind_direction_deg":      weather.WindDirection,
		"predictions":             timeline,
	}, nil
}
