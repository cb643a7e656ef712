package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

// forecastSteps is two 3-hour intervals, covering the next six hours.
const forecastSteps = 2

type WeatherConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type owmObservation struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"` // m/s
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

type owmForecast struct {
	List []owmObservation `json:"list"`
}

func (o owmObservation) report() models.WeatherReport {
	r := models.WeatherReport{
		Time:          time.Unix(o.Dt, 0).UTC(),
		TemperatureC:  o.Main.Temp,
		Humidity:      o.Main.Humidity,
		WindSpeedKmh:  o.Wind.Speed * 3.6,
		WindDirection: o.Wind.Deg,
	}
	if len(o.Weather) > 0 {
		r.Conditions = o.Weather[0].Description
	}
	return r
}

type weatherClient struct {
	cfg    WeatherConfig
	client *http.Client
}

func (w *weatherClient) endpoint(path string, loc models.Location, extra url.Values) (string, error) {
	if w.cfg.APIKey == "" {
		return "", errors.New("OpenWeather key not configured")
	}
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.4f", loc.Lat))
	q.Set("lon", fmt.Sprintf("%.4f", loc.Lon))
	q.Set("appid", w.cfg.APIKey)
	q.Set("units", "metric")
	for k, v := range extra {
		q[k] = v
	}
	return strings.TrimRight(w.cfg.BaseURL, "/") + "/" + path + "?" + q.Encode(), nil
}

// CurrentWeather fetches present conditions at a location.
type CurrentWeather struct{ weatherClient }

func NewCurrentWeather(cfg WeatherConfig) *CurrentWeather {
	return &CurrentWeather{weatherClient{cfg: cfg, client: newHTTPClient(cfg.Timeout)}}
}

func (c *CurrentWeather) Name() string { return models.ProviderWeatherCurrent }
func (c *CurrentWeather) Empty() any   { return models.WeatherReport{} }

func (c *CurrentWeather) Fetch(ctx context.Context, loc models.Location) (any, error) {
	u, err := c.endpoint("weather", loc, nil)
	if err != nil {
		return nil, err
	}
	var obs owmObservation
	if err := getJSON(ctx, c.client, u, &obs); err != nil {
		return nil, err
	}
	return obs.report(), nil
}

// WeatherForecast fetches the short-range forecast at a location.
type WeatherForecast struct{ weatherClient }

func NewWeatherForecast(cfg WeatherConfig) *WeatherForecast {
	return &WeatherForecast{weatherClient{cfg: cfg, client: newHTTPClient(cfg.Timeout)}}
}

func (f *WeatherForecast) Name() string { return models.ProviderWeatherForecast }
func (f *WeatherForecast) Empty() any   { return models.Forecast{} }

func (f *WeatherForecast) Fetch(ctx context.Context, loc models.Location) (any, error) {
	u, err := f.endpoint("forecast", loc, url.Values{"cnt": {fmt.Sprint(forecastSteps)}})
	if err != nil {
		return nil, err
	}
	var resp owmForecast
	if err := getJSON(ctx, f.client, u, &resp); err != nil {
		return nil, err
	}
	out := models.Forecast{Entries: make([]models.WeatherReport, 0, len(resp.List))}
	for _, o := range resp.List {
		out.Entries = append(out.Entries, o.report())
	}
	return out, nil
}
