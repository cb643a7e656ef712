package fallback

import (
	_ "embed"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

//go:embed scenarios.yaml
var builtinScenarios []byte

// Scenario is a historical incident with a cached response plan.
type Scenario struct {
	ID           string              `yaml:"id" json:"id"`
	Kind         models.DisasterKind `yaml:"kind" json:"kind"`
	Description  string              `yaml:"description" json:"description"`
	Location     models.Location     `yaml:"location" json:"location"`
	ToleranceDeg float64             `yaml:"tolerance_deg" json:"tolerance_deg"`
	Keywords     []string            `yaml:"keywords" json:"keywords"`
	Artifact     string              `yaml:"artifact" json:"artifact"`
}

type catalogFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// ParseCatalog decodes a scenario catalog document.
func ParseCatalog(raw []byte) ([]Scenario, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("error decoding scenario catalog: %w", err)
	}
	seen := make(map[string]bool, len(f.Scenarios))
	for i, s := range f.Scenarios {
		if s.ID == "" || s.Artifact == "" {
			return nil, fmt.Errorf("scenario %d: id and artifact are required", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate scenario %q", s.ID)
		}
		seen[s.ID] = true
		if s.ToleranceDeg <= 0 {
			f.Scenarios[i].ToleranceDeg = 0.001
		}
	}
	return f.Scenarios, nil
}

// BuiltinScenarios returns the scenarios shipped with the binary.
func BuiltinScenarios() []Scenario {
	s, err := ParseCatalog(builtinScenarios)
	if err != nil {
		panic(err)
	}
	return s
}

// Matches reports whether d refers to this scenario. The kind must agree,
// and then either the scenario id, a description keyword, or the location
// within tolerance identifies it.
func (s Scenario) Matches(d models.Disaster) bool {
	if d.Kind != s.Kind {
		return false
	}
	if d.MetadataString("scenario") == s.ID {
		return true
	}
	if desc := strings.ToLower(d.MetadataString("description")); desc != "" {
		for _, kw := range s.Keywords {
			if strings.Contains(desc, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return math.Abs(d.Location.Lat-s.Location.Lat) < s.ToleranceDeg &&
		math.Abs(d.Location.Lon-s.Location.Lon) < s.ToleranceDeg
}
