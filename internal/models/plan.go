package models

import "time"

// Language codes for the communication templates of a plan.
const (
	LangEnglish = "en"
	LangPunjabi = "pa"
	LangHindi   = "hi"
)

type PlanSource string

const (
	SourceLive  PlanSource = "live"
	SourceCache PlanSource = "cache"
)

// Plan is the synthesized emergency response plan. Field names follow the
// cached backtest artifacts so a cached plan decodes directly into it.
type Plan struct {
	RunID       string            `json:"disaster_id,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
	Summary     string            `json:"executive_summary"`
	Overview    string            `json:"situation_overview"`
	Templates   map[string]string `json:"communication_templates"`

	AffectedAreas       StageResult `json:"affected_areas,omitempty"`
	PopulationImpact    StageResult `json:"population_impact,omitempty"`
	EvacuationPlan      StageResult `json:"evacuation_plan,omitempty"`
	ResourceDeployment  StageResult `json:"resource_deployment,omitempty"`
	TimelinePredictions StageResult `json:"timeline_predictions,omitempty"`

	Fallback   bool       `json:"fallback"`
	Source     PlanSource `json:"source"`
	ScenarioID string     `json:"scenario_id,omitempty"`
}

// AttachStageResults copies the analysis sections into the plan.
func (p *Plan) AttachStageResults(results map[string]StageResult) {
	p.AffectedAreas = results[StageDamage]
	p.PopulationImpact = results[StagePopulation]
	p.EvacuationPlan = results[StageRouting]
	p.ResourceDeployment = results[StageResources]
	p.TimelinePredictions = results[StagePrediction]
}
