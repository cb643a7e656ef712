// Package synthesis turns stage results into a response plan through a
// hosted language model.
package synthesis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/observability"
)

type Synthesizer struct {
	client  Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewSynthesizer(client Client, metrics *observability.Metrics, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{client: client, metrics: metrics, logger: logger}
}

// Synthesize builds the prompt, calls the model and parses its answer. Any
// failure is returned as a SynthesisError. Missing sections are not errors.
func (s *Synthesizer) Synthesize(ctx context.Context, d models.Disaster, results map[string]models.StageResult) (*models.Plan, error) {
	prompt, err := BuildPrompt(d, results)
	if err != nil {
		return nil, models.NewError(models.ErrSynthesis, err, "synthesis failed: could not build prompt")
	}

	start := time.Now()
	text, err := s.client.CompleteChat(ctx, prompt)
	if s.metrics != nil {
		s.metrics.SynthesisDuration.Observe(time.Since(start).Seconds())
	}
	switch {
	case errors.Is(err, ErrCredentialMissing):
		return nil, models.NewError(models.ErrSynthesis, err, "synthesis failed: LLM credential")
	case err != nil:
		return nil, models.NewError(models.ErrSynthesis, err, "synthesis failed: LLM request")
	}

	sections := ParseSections(text)
	if sections.Found == 0 {
		return nil, models.NewError(models.ErrSynthesis, nil, "synthesis failed: response contained no plan sections")
	}
	if sections.Found < 5 {
		s.logger.Warn("LLM response missing sections", "found", sections.Found)
	}

	plan := &models.Plan{
		Summary:   sections.Summary,
		Overview:  sections.Overview,
		Templates: sections.Templates,
		Source:    models.SourceLive,
	}
	plan.AttachStageResults(results)
	return plan, nil
}
