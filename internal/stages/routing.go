package stages

import (
	"context"
	"sort"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

type SafeZone struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Capacity int     `json:"capacity"`
}

// Reception centres in the Brampton area.
var safeZones = []SafeZone{
	{Name: "Brampton Soccer Centre", Lat: 43.7150, Lon: -79.8400, Capacity: 2000},
	{Name: "CAA Centre", Lat: 43.7300, Lon: -79.7500, Capacity: 5000},
	{Name: "Chinguacousy Park", Lat: 43.7290, Lon: -79.7420, Capacity: 3000},
}

const (
	// Safe zones must sit at least this far outside the boundary, in degrees.
	dangerBufferDeg    = 0.005
	evacuationSpeedKmh = 30.0
	mobilisationMin    = 15.0
)

// Routing splits nearby roads into open and closed and picks the nearest
// safe zone outside the danger zone.
func Routing(ctx context.Context, in Input) (models.StageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	box := boundaryBox(in)
	danger := box.Expand(dangerBufferDeg)
	origin := box.Center()

	var open, closed []string
	for _, f := range in.Data.Layer(models.ProviderRoads).Features {
		name, _ := f.Properties["name"].(string)
		rb, ok := models.Bounds(f)
		if !ok || name == "" {
			continue
		}
		if rb.Intersects(box) {
			closed = append(closed, name)
		} else {
			open = append(open, name)
		}
	}

	type candidate struct {
		SafeZone
		DistanceKm float64 `json:"distance_km"`
	}
	var zones []candidate
	for _, z := range safeZones {
		loc := models.Location{Lat: z.Lat, Lon: z.Lon}
		if danger.Contains(loc) {
			continue
		}
		zones = append(zones, candidate{SafeZone: z, DistanceKm: round(models.DistanceKm(origin, loc), 2)})
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].DistanceKm < zones[j].DistanceKm })

	result := models.StageResult{
		"origin":       origin,
		"safe_zones":   zones,
		"open_roads":   open,
		"closed_roads": closed,
	}
	if len(zones) > 0 {
		result["primary_route"] = zones[0]
		result["alternate_routes"] = zones[1:]
		result["estimated_evacuation_time_minutes"] = round(mobilisationMin+zones[0].DistanceKm/evacuationSpeedKmh*60, 1)
	}
	return result, nil
}
