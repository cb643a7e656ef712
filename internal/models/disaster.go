package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type DisasterKind string

const (
	KindWildfire   DisasterKind = "wildfire"
	KindFlood      DisasterKind = "flood"
	KindEarthquake DisasterKind = "earthquake"
	KindCyclone    DisasterKind = "cyclone"
	KindTsunami    DisasterKind = "tsunami"
	KindVolcano    DisasterKind = "volcano"
	KindDrought    DisasterKind = "drought"
)

var knownKinds = map[DisasterKind]bool{
	KindWildfire:   true,
	KindFlood:      true,
	KindEarthquake: true,
	KindCyclone:    true,
	KindTsunami:    true,
	KindVolcano:    true,
	KindDrought:    true,
}

func ParseDisasterKind(s string) (DisasterKind, error) {
	k := DisasterKind(strings.ToLower(strings.TrimSpace(s)))
	if !knownKinds[k] {
		return "", fmt.Errorf("unknown disaster kind %q", s)
	}
	return k, nil
}

// Severity is ordered: Low < Moderate < High < Extreme.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityModerate
	SeverityHigh
	SeverityExtreme
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityModerate:
		return "moderate"
	case SeverityHigh:
		return "high"
	case SeverityExtreme:
		return "extreme"
	default:
		return "unknown"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "moderate", "medium":
		return SeverityModerate, nil
	case "high":
		return SeverityHigh, nil
	case "extreme", "critical":
		return SeverityExtreme, nil
	default:
		return SeverityUnknown, fmt.Errorf("unknown severity %q", s)
	}
}

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (l Location) Validate() error {
	if math.IsNaN(l.Lat) || l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", l.Lat)
	}
	if math.IsNaN(l.Lon) || l.Lon < -180 || l.Lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", l.Lon)
	}
	return nil
}

type RunStatus string

const (
	StatusCreated         RunStatus = "created"
	StatusFetchingData    RunStatus = "fetching_data"
	StatusRunningStages   RunStatus = "running_stages"
	StatusSynthesizing    RunStatus = "synthesizing"
	StatusComplete        RunStatus = "complete"
	StatusFallbackApplied RunStatus = "fallback_applied"
	StatusFailed          RunStatus = "failed"
)

var statusOrder = map[RunStatus]int{
	StatusCreated:         0,
	StatusFetchingData:    1,
	StatusRunningStages:   2,
	StatusSynthesizing:    3,
	StatusComplete:        4,
	StatusFallbackApplied: 4,
	StatusFailed:          4,
}

func (s RunStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFallbackApplied || s == StatusFailed
}

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle monotonic.
func (s RunStatus) CanAdvanceTo(next RunStatus) bool {
	if s.Terminal() {
		return false
	}
	return statusOrder[next] > statusOrder[s]
}

// Disaster is the caller-facing description of a run's subject.
type Disaster struct {
	Kind      DisasterKind   `json:"kind"`
	Location  Location       `json:"location"`
	Severity  Severity       `json:"severity"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// MetadataString returns metadata[key] when it is a string.
func (d Disaster) MetadataString(key string) string {
	if d.Metadata == nil {
		return ""
	}
	s, _ := d.Metadata[key].(string)
	return s
}

type ErrorView struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
}

// RunView is a read-only snapshot of a run.
type RunView struct {
	ID        string     `json:"id"`
	Disaster  Disaster   `json:"disaster"`
	Status    RunStatus  `json:"status"`
	Plan      *Plan      `json:"plan"`
	Error     *ErrorView `json:"error"`
	UpdatedAt time.Time  `json:"updated_at"`
}
