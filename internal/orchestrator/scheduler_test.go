package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/stages"
)

// stageRecorder wraps stage functions and records call order.
type stageRecorder struct {
	seq atomic.Int64

	mu       sync.Mutex
	started  map[string]int64
	finished map[string]int64
	calls    map[string]int
	inputs   map[string]stages.Input
}

func newStageRecorder() *stageRecorder {
	return &stageRecorder{
		started:  make(map[string]int64),
		finished: make(map[string]int64),
		calls:    make(map[string]int),
		inputs:   make(map[string]stages.Input),
	}
}

func (rec *stageRecorder) stage(name string, needsBoundary bool, fn stages.Func) stages.Stage {
	return stages.Stage{
		Name:          name,
		NeedsBoundary: needsBoundary,
		Run: func(ctx context.Context, in stages.Input) (models.StageResult, error) {
			rec.mu.Lock()
			rec.started[name] = rec.seq.Add(1)
			rec.calls[name]++
			rec.inputs[name] = in
			rec.mu.Unlock()

			defer func() {
				rec.mu.Lock()
				rec.finished[name] = rec.seq.Add(1)
				rec.mu.Unlock()
			}()
			return fn(ctx, in)
		},
	}
}

func (rec *stageRecorder) totalCalls() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	n := 0
	for _, c := range rec.calls {
		n += c
	}
	return n
}

func (rec *stageRecorder) callsOf(name string) int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.calls[name]
}

func testBoundary() *models.Feature {
	f := models.Around(models.Location{Lat: 43.7315, Lon: -79.8620}, 0.01).Polygon(map[string]any{"source": "test"})
	return &f
}

func damageStage(boundary *models.Feature) stages.Func {
	return func(ctx context.Context, in stages.Input) (models.StageResult, error) {
		return models.StageResult{models.BoundaryKey: boundary, "affected_area_km2": 4.9}, nil
	}
}

func okStage(name string) stages.Func {
	return func(ctx context.Context, in stages.Input) (models.StageResult, error) {
		return models.StageResult{"stage": name}, nil
	}
}

func failingStage(err error) stages.Func {
	return func(ctx context.Context, in stages.Input) (models.StageResult, error) {
		return nil, err
	}
}

// standardStages mirrors the production layout: damage, three
// boundary-dependent stages and prediction.
func standardStages(rec *stageRecorder, overrides map[string]stages.Func) []stages.Stage {
	fn := func(name string, def stages.Func) stages.Func {
		if f, ok := overrides[name]; ok {
			return f
		}
		return def
	}
	return []stages.Stage{
		rec.stage(models.StageDamage, false, fn(models.StageDamage, damageStage(testBoundary()))),
		rec.stage(models.StagePopulation, true, fn(models.StagePopulation, okStage(models.StagePopulation))),
		rec.stage(models.StageRouting, true, fn(models.StageRouting, okStage(models.StageRouting))),
		rec.stage(models.StageResources, true, fn(models.StageResources, okStage(models.StageResources))),
		rec.stage(models.StagePrediction, false, fn(models.StagePrediction, okStage(models.StagePrediction))),
	}
}

func TestNewScheduler_Validation(t *testing.T) {
	_, err := NewScheduler([]stages.Stage{{Name: "population", Run: okStage("population")}}, nil, nil)
	assert.ErrorContains(t, err, "damage")

	_, err = NewScheduler([]stages.Stage{
		{Name: "damage", Run: okStage("damage")},
		{Name: "damage", Run: okStage("damage")},
	}, nil, nil)
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewScheduler([]stages.Stage{{Name: "damage"}}, nil, nil)
	assert.Error(t, err)
}

func TestScheduler_ResultsAssembledByName(t *testing.T) {
	rec := newStageRecorder()
	s, err := NewScheduler(standardStages(rec, nil), nil, nil)
	require.NoError(t, err)

	results, err := s.Run(context.Background(), models.Disaster{Kind: models.KindWildfire}, models.DataBundle{})
	require.NoError(t, err)

	require.Len(t, results, 5)
	for _, name := range []string{models.StagePopulation, models.StageRouting, models.StageResources, models.StagePrediction} {
		assert.Equal(t, name, results[name]["stage"])
		assert.Less(t, rec.finished[models.StageDamage], rec.started[name], "damage must finish before %s starts", name)
	}
}

func TestScheduler_BoundaryPassedToDependents(t *testing.T) {
	boundary := testBoundary()
	rec := newStageRecorder()
	s, err := NewScheduler(standardStages(rec, map[string]stages.Func{
		models.StageDamage: damageStage(boundary),
	}), nil, nil)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), models.Disaster{}, models.DataBundle{})
	require.NoError(t, err)

	for _, name := range []string{models.StagePopulation, models.StageRouting, models.StageResources} {
		got := rec.inputs[name].Boundary
		require.NotNil(t, got, name)
		assert.Same(t, boundary, got)
		assert.Equal(t, *boundary, *got)
	}
	assert.Nil(t, rec.inputs[models.StagePrediction].Boundary)
}

func TestScheduler_StageErrorNamesStage(t *testing.T) {
	rec := newStageRecorder()
	cause := errors.New("routing graph missing")
	s, err := NewScheduler(standardStages(rec, map[string]stages.Func{
		models.StageRouting: failingStage(cause),
	}), nil, nil)
	require.NoError(t, err)

	results, err := s.Run(context.Background(), models.Disaster{}, models.DataBundle{})
	require.Error(t, err)
	assert.Nil(t, results)

	var e *models.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, models.ErrStageExecution, e.Kind)
	assert.Equal(t, models.StageRouting, e.Stage)
	assert.ErrorIs(t, err, cause)
}

func TestScheduler_PanicBecomesStageError(t *testing.T) {
	rec := newStageRecorder()
	s, err := NewScheduler(standardStages(rec, map[string]stages.Func{
		models.StagePopulation: func(ctx context.Context, in stages.Input) (models.StageResult, error) {
			var m map[string]int
			m["boom"] = 1
			return nil, nil
		},
	}), nil, nil)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), models.Disaster{}, models.DataBundle{})
	var e *models.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, models.StagePopulation, e.Stage)
	assert.Contains(t, err.Error(), "panic")
}

func TestScheduler_DamageFailureSkipsOthers(t *testing.T) {
	rec := newStageRecorder()
	s, err := NewScheduler(standardStages(rec, map[string]stages.Func{
		models.StageDamage: failingStage(errors.New("no imagery")),
	}), nil, nil)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), models.Disaster{}, models.DataBundle{})
	var e *models.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, models.StageDamage, e.Stage)
	assert.Equal(t, 1, rec.totalCalls())
}

func TestScheduler_MissingBoundary(t *testing.T) {
	rec := newStageRecorder()
	s, err := NewScheduler(standardStages(rec, map[string]stages.Func{
		models.StageDamage: okStage(models.StageDamage),
	}), nil, nil)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), models.Disaster{}, models.DataBundle{})
	assert.ErrorIs(t, err, errNoBoundary)
	assert.Equal(t, 1, rec.totalCalls())
}

func TestScheduler_ExtraStageNeedsNoSchedulerChange(t *testing.T) {
	rec := newStageRecorder()
	list := append(standardStages(rec, nil), rec.stage("shelters", true, okStage("shelters")))
	s, err := NewScheduler(list, nil, nil)
	require.NoError(t, err)

	results, err := s.Run(context.Background(), models.Disaster{}, models.DataBundle{})
	require.NoError(t, err)
	assert.Equal(t, "shelters", results["shelters"]["stage"])
	assert.NotNil(t, rec.inputs["shelters"].Boundary)
}
