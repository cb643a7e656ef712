// Package fallback decides when a failed run may be answered with a cached
// backtest plan and loads that plan.
package fallback

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

type Policy struct {
	scenarios []Scenario
	store     Store
}

func NewPolicy(scenarios []Scenario, store Store) *Policy {
	return &Policy{scenarios: scenarios, store: store}
}

func (p *Policy) Scenarios() []Scenario {
	return p.scenarios
}

func (p *Policy) scenario(id string) (Scenario, bool) {
	for _, s := range p.scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// Eligible returns the first scenario d matches whose artifact is present.
// It touches nothing but file metadata.
func (p *Policy) Eligible(d models.Disaster) (string, bool) {
	for _, s := range p.scenarios {
		if s.Matches(d) && p.store.Exists(s.Artifact) {
			return s.ID, true
		}
	}
	return "", false
}

// Cached reports whether the artifact for scenario s is present.
func (p *Policy) Cached(s Scenario) bool {
	return p.store.Exists(s.Artifact)
}

// Load reads and decodes a scenario's cached plan. Artifacts may be a bare
// plan or wrapped as {"plan": {...}}.
func (p *Policy) Load(scenarioID string) (*models.Plan, error) {
	s, ok := p.scenario(scenarioID)
	if !ok {
		return nil, models.NewError(models.ErrFallbackUnavailable, nil, "fallback failed: unknown scenario %q", scenarioID)
	}

	raw, err := p.store.Read(s.Artifact)
	if err != nil {
		return nil, models.NewError(models.ErrFallbackUnavailable, err, "fallback failed: cached plan for %s could not be read", scenarioID)
	}

	plan, err := decodePlan(raw)
	if err != nil {
		return nil, models.NewError(models.ErrFallbackUnavailable, err, "fallback failed: cached plan for %s is invalid", scenarioID)
	}

	plan.Fallback = true
	plan.Source = models.SourceCache
	plan.ScenarioID = scenarioID
	return plan, nil
}

func decodePlan(raw []byte) (*models.Plan, error) {
	var wrapper struct {
		Plan json.RawMessage `json:"plan"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, err
	}
	body := raw
	if len(wrapper.Plan) > 0 && !bytes.Equal(wrapper.Plan, []byte("null")) {
		body = wrapper.Plan
	}

	var plan models.Plan
	if err := json.Unmarshal(body, &plan); err != nil {
		return nil, err
	}
	if plan.Summary == "" {
		return nil, errors.New("plan has no executive_summary")
	}
	return &plan, nil
}
