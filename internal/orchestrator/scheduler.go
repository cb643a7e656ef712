package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/observability"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/stages"
)

var errNoBoundary = errors.New("damage stage produced no boundary")

// Scheduler runs the damage stage, then every other stage concurrently.
type Scheduler struct {
	damage    stages.Stage
	dependent []stages.Stage
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewScheduler requires exactly one stage named damage and unique names.
func NewScheduler(list []stages.Stage, metrics *observability.Metrics, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{metrics: metrics, logger: logger}

	seen := make(map[string]bool, len(list))
	foundDamage := false
	for _, st := range list {
		if st.Name == "" || st.Run == nil {
			return nil, fmt.Errorf("stage %q is missing a name or function", st.Name)
		}
		if seen[st.Name] {
			return nil, fmt.Errorf("duplicate stage %q", st.Name)
		}
		seen[st.Name] = true

		if st.Name == models.StageDamage {
			s.damage = st
			foundDamage = true
			continue
		}
		s.dependent = append(s.dependent, st)
	}
	if !foundDamage {
		return nil, fmt.Errorf("no %q stage registered", models.StageDamage)
	}
	return s, nil
}

// Run returns every stage's result, or the first stage error. Partial result
// sets are never returned.
func (s *Scheduler) Run(ctx context.Context, d models.Disaster, data models.DataBundle) (map[string]models.StageResult, error) {
	damage, err := s.runStage(ctx, s.damage, stages.Input{Disaster: d, Data: data})
	if err != nil {
		return nil, err
	}
	boundary, hasBoundary := damage.Boundary()
	if !hasBoundary {
		for _, st := range s.dependent {
			if st.NeedsBoundary {
				return nil, models.StageError(s.damage.Name, errNoBoundary)
			}
		}
	}

	results := make(map[string]models.StageResult, len(s.dependent)+1)
	results[s.damage.Name] = damage

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range s.dependent {
		st := st
		in := stages.Input{Disaster: d, Data: data}
		if st.NeedsBoundary {
			in.Boundary = boundary
		}
		g.Go(func() error {
			res, err := s.runStage(gctx, st, in)
			if err != nil {
				return err
			}
			mu.Lock()
			results[st.Name] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runStage turns errors and panics into a StageExecutionError naming st.
func (s *Scheduler) runStage(ctx context.Context, st stages.Stage, in stages.Input) (res models.StageResult, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
		if s.metrics != nil {
			s.metrics.StageDuration.WithLabelValues(st.Name).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			if s.metrics != nil {
				s.metrics.StageFailures.WithLabelValues(st.Name).Inc()
			}
			s.logger.Error("stage failed", "stage", st.Name, "error", err)
			err = models.StageError(st.Name, err)
		}
	}()

	res, err = st.Run(ctx, in)
	if err == nil && res == nil {
		res = models.StageResult{}
	}
	return res, err
}
