package providers

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

//go:embed sample/*.geojson
var sampleLayers embed.FS

// Search radius per layer, in km.
var layerRadiusKm = map[string]float64{
	models.ProviderPopulation:     15,
	models.ProviderInfrastructure: 10,
	models.ProviderRoads:          10,
}

type GeoHubConfig struct {
	// BaseURL serves <layer>.geojson. When empty the bundled sample
	// layers for Brampton are used.
	BaseURL string
	Timeout time.Duration
}

// GeoHubLayer is one municipal GeoJSON layer, filtered to features near the
// requested location.
type GeoHubLayer struct {
	layer  string
	cfg    GeoHubConfig
	client *http.Client
}

func NewGeoHubLayer(layer string, cfg GeoHubConfig) *GeoHubLayer {
	return &GeoHubLayer{layer: layer, cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

// NewGeoHubLayers returns the population, infrastructure and roads layers.
func NewGeoHubLayers(cfg GeoHubConfig) []*GeoHubLayer {
	return []*GeoHubLayer{
		NewGeoHubLayer(models.ProviderPopulation, cfg),
		NewGeoHubLayer(models.ProviderInfrastructure, cfg),
		NewGeoHubLayer(models.ProviderRoads, cfg),
	}
}

func (g *GeoHubLayer) Name() string { return g.layer }

func (g *GeoHubLayer) Empty() any {
	return models.FeatureCollection{Type: "FeatureCollection", Features: []models.Feature{}}
}

func (g *GeoHubLayer) Fetch(ctx context.Context, loc models.Location) (any, error) {
	fc, err := g.load(ctx)
	if err != nil {
		return nil, err
	}
	radius, ok := layerRadiusKm[g.layer]
	if !ok {
		radius = 10
	}
	return filterNear(fc, loc, radius/models.KmPerDegree), nil
}

func (g *GeoHubLayer) load(ctx context.Context) (models.FeatureCollection, error) {
	var fc models.FeatureCollection
	if g.cfg.BaseURL == "" {
		raw, err := sampleLayers.ReadFile("sample/" + g.layer + ".geojson")
		if err != nil {
			return fc, fmt.Errorf("no sample data for layer %s: %w", g.layer, err)
		}
		if err := json.Unmarshal(raw, &fc); err != nil {
			return fc, fmt.Errorf("error decoding sample layer %s: %w", g.layer, err)
		}
		return fc, nil
	}

	url := strings.TrimRight(g.cfg.BaseURL, "/") + "/" + g.layer + ".geojson"
	if err := getJSON(ctx, g.client, url, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// filterNear keeps features whose bounds intersect the box around loc.
func filterNear(fc models.FeatureCollection, loc models.Location, deltaDeg float64) models.FeatureCollection {
	area := models.Around(loc, deltaDeg)
	out := models.FeatureCollection{Type: "FeatureCollection", Features: []models.Feature{}}
	for _, f := range fc.Features {
		b, ok := models.Bounds(f)
		if ok && b.Intersects(area) {
			out.Features = append(out.Features, f)
		}
	}
	return out
}
