package models

import (
	"encoding/json"
	"math"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Geometry coordinates follow GeoJSON ordering: [lon, lat].
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

func PointFeature(loc Location, props map[string]any) Feature {
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: []float64{loc.Lon, loc.Lat},
		},
		Properties: props,
	}
}

// BBox is an axis-aligned lat/lon rectangle.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

func (b BBox) Contains(loc Location) bool {
	return loc.Lat >= b.MinLat && loc.Lat <= b.MaxLat &&
		loc.Lon >= b.MinLon && loc.Lon <= b.MaxLon
}

func (b BBox) Center() Location {
	return Location{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// Polygon returns the closed ring for the box as a GeoJSON polygon feature.
func (b BBox) Polygon(props map[string]any) Feature {
	ring := [][]float64{
		{b.MinLon, b.MinLat},
		{b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat},
		{b.MinLon, b.MaxLat},
		{b.MinLon, b.MinLat},
	}
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Polygon",
			Coordinates: [][][]float64{ring},
		},
		Properties: props,
	}
}

// PointOf extracts a location from a Point feature. The second result is
// false for other geometry types.
func PointOf(f Feature) (Location, bool) {
	if f.Geometry.Type != "Point" {
		return Location{}, false
	}
	switch c := f.Geometry.Coordinates.(type) {
	case []float64:
		if len(c) >= 2 {
			return Location{Lon: c[0], Lat: c[1]}, true
		}
	case []any:
		if len(c) >= 2 {
			lon, ok1 := c[0].(float64)
			lat, ok2 := c[1].(float64)
			if ok1 && ok2 {
				return Location{Lon: lon, Lat: lat}, true
			}
		}
	}
	return Location{}, false
}

// Bounds returns the bounding box of every coordinate in the feature's
// geometry. The second result is false when the geometry has no coordinates.
func Bounds(f Feature) (BBox, bool) {
	b := BBox{MinLat: 91, MinLon: 181, MaxLat: -91, MaxLon: -181}
	found := false
	walkPositions(f.Geometry.Coordinates, func(lon, lat float64) {
		found = true
		b.MinLat = min(b.MinLat, lat)
		b.MaxLat = max(b.MaxLat, lat)
		b.MinLon = min(b.MinLon, lon)
		b.MaxLon = max(b.MaxLon, lon)
	})
	return b, found
}

// walkPositions visits every [lon, lat] position in a coordinates value,
// whether it was built in Go or decoded from JSON.
func walkPositions(coords any, visit func(lon, lat float64)) {
	switch c := coords.(type) {
	case []float64:
		if len(c) >= 2 {
			visit(c[0], c[1])
		}
	case [][]float64:
		for _, p := range c {
			walkPositions(p, visit)
		}
	case [][][]float64:
		for _, ring := range c {
			walkPositions(ring, visit)
		}
	case []any:
		if len(c) >= 2 {
			lon, ok1 := c[0].(float64)
			lat, ok2 := c[1].(float64)
			if ok1 && ok2 {
				visit(lon, lat)
				return
			}
		}
		for _, inner := range c {
			walkPositions(inner, visit)
		}
	}
}

// Intersects reports whether two boxes overlap.
func (b BBox) Intersects(o BBox) bool {
	return b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat &&
		b.MinLon <= o.MaxLon && o.MinLon <= b.MaxLon
}

// Around returns the square box of the given half-width in degrees.
func Around(loc Location, deltaDeg float64) BBox {
	return BBox{
		MinLat: loc.Lat - deltaDeg,
		MinLon: loc.Lon - deltaDeg,
		MaxLat: loc.Lat + deltaDeg,
		MaxLon: loc.Lon + deltaDeg,
	}
}

// KmPerDegree is the rough conversion used for all distance approximations.
const KmPerDegree = 111.0

// AreaKm2 approximates the box area, scaling longitude by latitude.
func (b BBox) AreaKm2() float64 {
	mid := (b.MinLat + b.MaxLat) / 2 * math.Pi / 180
	h := (b.MaxLat - b.MinLat) * KmPerDegree
	w := (b.MaxLon - b.MinLon) * KmPerDegree * math.Cos(mid)
	return math.Abs(h * w)
}

// Intersection returns the overlap of two boxes.
func (b BBox) Intersection(o BBox) (BBox, bool) {
	if !b.Intersects(o) {
		return BBox{}, false
	}
	return BBox{
		MinLat: max(b.MinLat, o.MinLat),
		MinLon: max(b.MinLon, o.MinLon),
		MaxLat: min(b.MaxLat, o.MaxLat),
		MaxLon: min(b.MaxLon, o.MaxLon),
	}, true
}

// Expand grows the box by deltaDeg on every side.
func (b BBox) Expand(deltaDeg float64) BBox {
	return BBox{
		MinLat: b.MinLat - deltaDeg,
		MinLon: b.MinLon - deltaDeg,
		MaxLat: b.MaxLat + deltaDeg,
		MaxLon: b.MaxLon + deltaDeg,
	}
}

// DistanceKm is the equirectangular distance between two points.
func DistanceKm(a, b Location) float64 {
	mid := (a.Lat + b.Lat) / 2 * math.Pi / 180
	dx := (b.Lon - a.Lon) * math.Cos(mid)
	dy := b.Lat - a.Lat
	return math.Sqrt(dx*dx+dy*dy) * KmPerDegree
}

// Number reads a numeric property, accepting any JSON or Go numeric form.
func Number(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}
