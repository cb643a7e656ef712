package providers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

// DefaultThermalIntensity is reported when no fire is detected, in Kelvin.
const DefaultThermalIntensity = 300.0

const firmsSource = "VIIRS_SNPP_NRT"

type SatelliteConfig struct {
	BaseURL  string
	APIKey   string
	Days     int
	RadiusKm float64
	Timeout  time.Duration
}

// Satellite queries NASA FIRMS for active fire detections around a location.
type Satellite struct {
	cfg    SatelliteConfig
	client *http.Client
}

func NewSatellite(cfg SatelliteConfig) *Satellite {
	if cfg.Days < 1 {
		cfg.Days = 1
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = 50
	}
	return &Satellite{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func (s *Satellite) Name() string { return models.ProviderSatellite }

func (s *Satellite) Empty() any {
	return models.SatelliteData{ThermalIntensity: DefaultThermalIntensity, Satellite: "VIIRS"}
}

func (s *Satellite) Fetch(ctx context.Context, loc models.Location) (any, error) {
	if s.cfg.APIKey == "" {
		return nil, errors.New("FIRMS key not configured")
	}

	box := models.Around(loc, s.cfg.RadiusKm/models.KmPerDegree)
	url := fmt.Sprintf("%s/%s/%s/%s/%d",
		strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.APIKey, firmsSource, formatBBox(box), s.cfg.Days)

	resp, err := get(ctx, s.client, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	detections, err := parseFIRMS(resp.Body)
	if err != nil {
		return nil, err
	}
	return buildSatelliteData(detections), nil
}

// formatBBox renders west,south,east,north as FIRMS expects.
func formatBBox(b models.BBox) string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// parseFIRMS reads the FIRMS area CSV. Rows with unparseable coordinates or
// brightness are skipped.
func parseFIRMS(r io.Reader) ([]models.FireDetection, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading FIRMS header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"latitude", "longitude", "bright_ti4"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("FIRMS response missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var out []models.FireDetection
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			slog.Debug("skipping malformed FIRMS row", "line", perr.Line, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error reading FIRMS rows: %w", err)
		}
		lat, err1 := strconv.ParseFloat(field(row, "latitude"), 64)
		lon, err2 := strconv.ParseFloat(field(row, "longitude"), 64)
		bright, err3 := strconv.ParseFloat(field(row, "bright_ti4"), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		frp, _ := strconv.ParseFloat(field(row, "frp"), 64)
		out = append(out, models.FireDetection{
			Lat:        lat,
			Lon:        lon,
			BrightTI4:  bright,
			Confidence: field(row, "confidence"),
			AcqDate:    field(row, "acq_date"),
			AcqTime:    field(row, "acq_time"),
			FRP:        frp,
		})
	}
	return out, nil
}

func buildSatelliteData(detections []models.FireDetection) models.SatelliteData {
	data := models.SatelliteData{
		Detections:       detections,
		ThermalIntensity: DefaultThermalIntensity,
		Satellite:        "VIIRS",
	}
	if len(detections) == 0 {
		return data
	}

	data.ThermalIntensity = detections[0].BrightTI4
	data.Timestamp = detections[0].AcqDate

	box := models.BBox{
		MinLat: detections[0].Lat, MaxLat: detections[0].Lat,
		MinLon: detections[0].Lon, MaxLon: detections[0].Lon,
	}
	for _, d := range detections[1:] {
		box.MinLat = min(box.MinLat, d.Lat)
		box.MaxLat = max(box.MaxLat, d.Lat)
		box.MinLon = min(box.MinLon, d.Lon)
		box.MaxLon = max(box.MaxLon, d.Lon)
	}
	perimeter := box.Polygon(map[string]any{"detections": len(detections)})
	data.Perimeter = &perimeter
	return data
}
