package main

import (
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/config"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/fallback"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/observability"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/orchestrator"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/providers"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/stages"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/synthesis"
)

func newProviders(cfg *config.Config) []orchestrator.Provider {
	p := cfg.Providers
	list := []orchestrator.Provider{
		providers.NewSatellite(providers.SatelliteConfig{
			BaseURL:  p.FIRMSURL,
			APIKey:   p.FIRMSKey,
			Days:     p.FIRMSDays,
			RadiusKm: p.RadiusKm,
			Timeout:  p.HTTPTimeout,
		}),
		providers.NewCurrentWeather(providers.WeatherConfig{
			BaseURL: p.OpenWeatherURL,
			APIKey:  p.OpenWeatherKey,
			Timeout: p.HTTPTimeout,
		}),
		providers.NewWeatherForecast(providers.WeatherConfig{
			BaseURL: p.OpenWeatherURL,
			APIKey:  p.OpenWeatherKey,
			Timeout: p.HTTPTimeout,
		}),
	}
	for _, layer := range providers.NewGeoHubLayers(providers.GeoHubConfig{BaseURL: p.GeoHubURL, Timeout: p.HTTPTimeout}) {
		list = append(list, layer)
	}
	return list
}

func newFallbackPolicy(cfg *config.Config) *fallback.Policy {
	return fallback.NewPolicy(fallback.BuiltinScenarios(), fallback.DirStore{Dir: cfg.Fallback.CacheDir})
}

// newOrchestrator builds the processing pipeline. The caller supplies the
// sink and archive, which differ between serve and one-shot runs.
func newOrchestrator(cfg *config.Config, policy *fallback.Policy, sink orchestrator.Sink, archive orchestrator.Archive, metrics *observability.Metrics, logger *slog.Logger) (*orchestrator.Orchestrator, error) {
	scheduler, err := orchestrator.NewScheduler(stages.Default(), metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("build stage scheduler: %w", err)
	}

	client := synthesis.NewOpenAIClient(synthesis.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		URL:     cfg.LLM.URL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})

	return orchestrator.New(orchestrator.Options{
		Collector:  orchestrator.NewCollector(newProviders(cfg), metrics, logger),
		Scheduler:  scheduler,
		Synth:      synthesis.NewSynthesizer(client, metrics, logger),
		Fallback:   policy,
		Sink:       sink,
		Archive:    archive,
		Clock:      clockwork.NewRealClock(),
		Metrics:    metrics,
		Logger:     logger,
		RunTimeout: cfg.Registry.RunTimeout,
		Workers:    cfg.Worker.Count,
		Buffer:     cfg.Worker.BufferSize,
	})
}

func liveProviders(cfg *config.Config) []string {
	var names []string
	if cfg.Providers.FIRMSKey != "" {
		names = append(names, "satellite")
	}
	if cfg.Providers.OpenWeatherKey != "" {
		names = append(names, "weather_current", "weather_forecast")
	}
	if cfg.Providers.GeoHubURL != "" {
		names = append(names, "population", "infrastructure", "roads")
	}
	return names
}
