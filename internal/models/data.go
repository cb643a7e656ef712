package models

import "time"

// Provider names, one per external fetch.
const (
	ProviderSatellite       = "satellite"
	ProviderWeatherCurrent  = "weather_current"
	ProviderWeatherForecast = "weather_forecast"
	ProviderPopulation      = "population"
	ProviderInfrastructure  = "infrastructure"
	ProviderRoads           = "roads"
)

// Stage names.
const (
	StageDamage     = "damage"
	StagePopulation = "population"
	StageRouting    = "routing"
	StageResources  = "resources"
	StagePrediction = "prediction"
)

// BoundaryKey is the damage stage result key holding the affected-area polygon.
const BoundaryKey = "boundary"

type FireDetection struct {
	Lat        float64 `json:"latitude"`
	Lon        float64 `json:"longitude"`
	BrightTI4  float64 `json:"bright_ti4"`
	Confidence string  `json:"confidence"`
	AcqDate    string  `json:"acq_date"`
	AcqTime    string  `json:"acq_time"`
	FRP        float64 `json:"frp"`
}

type SatelliteData struct {
	Detections       []FireDetection `json:"fire_detections"`
	Perimeter        *Feature        `json:"fire_perimeter"`
	ThermalIntensity float64         `json:"thermal_intensity"`
	Satellite        string          `json:"satellite"`
	Timestamp        string          `json:"timestamp,omitempty"`
}

type WeatherReport struct {
	Time          time.Time `json:"time"`
	TemperatureC  float64   `json:"temperature_c"`
	Humidity      float64   `json:"humidity_percent"`
	WindSpeedKmh  float64   `json:"wind_speed_kmh"`
	WindDirection float64   `json:"wind_direction_deg"`
	Conditions    string    `json:"conditions"`
}

type Forecast struct {
	Entries []WeatherReport `json:"entries"`
}

// DataBundle maps provider name to its fetched document. Providers that
// failed hold their empty value.
type DataBundle map[string]any

func (b DataBundle) Satellite() SatelliteData {
	v, _ := b[ProviderSatellite].(SatelliteData)
	return v
}

func (b DataBundle) CurrentWeather() WeatherReport {
	v, _ := b[ProviderWeatherCurrent].(WeatherReport)
	return v
}

func (b DataBundle) Forecast() Forecast {
	v, _ := b[ProviderWeatherForecast].(Forecast)
	return v
}

// Layer returns a GeoJSON layer (population, infrastructure, roads).
func (b DataBundle) Layer(name string) FeatureCollection {
	v, _ := b[name].(FeatureCollection)
	return v
}

// StageResult is the opaque output of one analysis stage.
type StageResult map[string]any

// Boundary returns the affected-area polygon from a damage result.
func (r StageResult) Boundary() (*Feature, bool) {
	switch b := r[BoundaryKey].(type) {
	case *Feature:
		return b, b != nil
	case Feature:
		return &b, true
	}
	return nil, false
}
