// Package orchestrator owns disaster runs: it registers them, drives each
// one through data collection, analysis and synthesis, and settles every run
// in a terminal state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/logging"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/observability"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/worker"
)

// Progress fractions reported after each phase.
const (
	fractionData      = 0.3
	fractionAnalysis  = 0.7
	fractionSynthesis = 0.95
)

const archiveTimeout = 5 * time.Second

var (
	ErrNotStarted = errors.New("orchestrator is not started")
	ErrBusy       = errors.New("processing queue is full")
)

type Synthesizer interface {
	Synthesize(ctx context.Context, d models.Disaster, results map[string]models.StageResult) (*models.Plan, error)
}

// FallbackPolicy decides whether a failed run may be answered from cache.
// Eligible must not perform network I/O.
type FallbackPolicy interface {
	Eligible(d models.Disaster) (string, bool)
	Load(scenarioID string) (*models.Plan, error)
}

// Sink receives run events. Publish must not block.
type Sink interface {
	Publish(ev models.Event)
}

// Archive persists terminal runs.
type Archive interface {
	SaveRun(ctx context.Context, v models.RunView) error
}

type Options struct {
	Collector *Collector
	Scheduler *Scheduler
	Synth     Synthesizer
	Fallback  FallbackPolicy
	Sink      Sink
	Archive   Archive
	Clock     clockwork.Clock
	Metrics   *observability.Metrics
	Logger    *slog.Logger

	// RunTimeout bounds one run; zero means no limit.
	RunTimeout time.Duration
	Workers    int
	Buffer     int
}

type Orchestrator struct {
	collector *Collector
	scheduler *Scheduler
	synth     Synthesizer
	fallback  FallbackPolicy
	sink      Sink
	archive   Archive
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger

	runTimeout time.Duration
	workers    int
	buffer     int

	mu   sync.RWMutex
	runs map[string]*run

	poolMu  sync.RWMutex
	pool    *worker.WorkerPool
	baseCtx context.Context
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Collector == nil || opts.Scheduler == nil || opts.Synth == nil {
		return nil, errors.New("orchestrator needs a collector, a scheduler and a synthesizer")
	}
	o := &Orchestrator{
		collector:  opts.Collector,
		scheduler:  opts.Scheduler,
		synth:      opts.Synth,
		fallback:   opts.Fallback,
		sink:       opts.Sink,
		archive:    opts.Archive,
		clock:      opts.Clock,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		runTimeout: opts.RunTimeout,
		workers:    max(opts.Workers, 1),
		buffer:     max(opts.Buffer, 0),
		runs:       make(map[string]*run),
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.sink == nil {
		o.sink = discardSink{}
	}
	return o, nil
}

type discardSink struct{}

func (discardSink) Publish(models.Event) {}

// Start launches the worker pool used by Submit. Runs submitted later are
// cancelled when ctx is.
func (o *Orchestrator) Start(ctx context.Context) {
	o.poolMu.Lock()
	defer o.poolMu.Unlock()
	if o.pool != nil {
		return
	}
	o.baseCtx = ctx
	o.pool = worker.NewWorkerPool(o.workers, o.buffer, o.processJob)
	o.pool.Start(ctx)
	o.logger.Info("orchestrator started", "workers", o.workers, "buffer", o.buffer)
}

// Stop waits for every accepted run to reach a terminal state.
func (o *Orchestrator) Stop() {
	o.poolMu.RLock()
	pool := o.pool
	o.poolMu.RUnlock()
	if pool == nil {
		return
	}
	pool.Stop()
	o.logger.Info("orchestrator stopped")
}

// Create validates its input and registers a run in the Created state. No
// work is started.
func (o *Orchestrator) Create(kind string, loc models.Location, severity string, metadata map[string]any) (string, error) {
	k, err := models.ParseDisasterKind(kind)
	if err != nil {
		return "", models.NewError(models.ErrInvalidInput, err, "invalid disaster kind")
	}
	sev, err := models.ParseSeverity(severity)
	if err != nil {
		return "", models.NewError(models.ErrInvalidInput, err, "invalid severity")
	}
	if err := loc.Validate(); err != nil {
		return "", models.NewError(models.ErrInvalidInput, err, "invalid location")
	}

	now := o.clock.Now()
	meta := make(map[string]any, len(metadata))
	for key, v := range metadata {
		meta[key] = v
	}
	r := &run{
		disaster: models.Disaster{
			Kind:      k,
			Location:  loc,
			Severity:  sev,
			Metadata:  meta,
			CreatedAt: now,
		},
		status:    models.StatusCreated,
		updatedAt: now,
	}

	o.mu.Lock()
	for {
		r.id = newRunID(k, now)
		if _, taken := o.runs[r.id]; !taken {
			break
		}
	}
	o.runs[r.id] = r
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.RunsCreated.Inc()
	}
	o.logger.Info("run created", "run_id", r.id, "kind", k, "severity", sev.String())
	return r.id, nil
}

func newRunID(kind models.DisasterKind, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s", kind, at.UTC().Format("20060102-150405"), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (o *Orchestrator) lookup(id string) (*run, error) {
	o.mu.RLock()
	r, ok := o.runs[id]
	o.mu.RUnlock()
	if !ok {
		return nil, models.NewError(models.ErrNotFound, nil, "run %q not found", id)
	}
	return r, nil
}

// Status returns a snapshot of the run. It never waits on processing.
func (o *Orchestrator) Status(id string) (models.RunView, error) {
	r, err := o.lookup(id)
	if err != nil {
		return models.RunView{}, err
	}
	return r.view(), nil
}

// Runs returns snapshots of every registered run, newest first.
func (o *Orchestrator) Runs() []models.RunView {
	o.mu.RLock()
	views := make([]models.RunView, 0, len(o.runs))
	for _, r := range o.runs {
		views = append(views, r.view())
	}
	o.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool {
		return views[i].Disaster.CreatedAt.After(views[j].Disaster.CreatedAt)
	})
	return views
}

// claim reserves a run for one process call. Only a run still in Created
// that nobody has claimed can be processed.
func (o *Orchestrator) claim(parent context.Context, id string) (*run, context.Context, context.CancelFunc, error) {
	r, err := o.lookup(id)
	if err != nil {
		return nil, nil, nil, err
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if o.runTimeout > 0 {
		ctx, cancel = context.WithTimeout(parent, o.runTimeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	if !r.claim(cancel) {
		cancel()
		return nil, nil, nil, models.NewError(models.ErrConflictingOperation, nil,
			"run %q is already being processed or has been processed", id)
	}
	return r, ctx, cancel, nil
}

// Process drives the run to a terminal state before returning. The outcome is
// read through Status or the sink; the returned error only reports NotFound
// or ConflictingOperation.
func (o *Orchestrator) Process(ctx context.Context, id string) error {
	r, runCtx, cancel, err := o.claim(ctx, id)
	if err != nil {
		return err
	}
	defer cancel()
	o.execute(runCtx, r)
	return nil
}

type runJob struct {
	run    *run
	ctx    context.Context
	cancel context.CancelFunc
}

// Submit claims the run and queues it on the worker pool.
func (o *Orchestrator) Submit(id string) error {
	o.poolMu.RLock()
	pool, base := o.pool, o.baseCtx
	o.poolMu.RUnlock()
	if pool == nil {
		return ErrNotStarted
	}

	r, ctx, cancel, err := o.claim(base, id)
	if err != nil {
		return err
	}
	if err := pool.Submit(runJob{run: r, ctx: ctx, cancel: cancel}); err != nil {
		cancel()
		r.release()
		if errors.Is(err, worker.ErrQueueFull) {
			return ErrBusy
		}
		return fmt.Errorf("queueing run %s: %w", id, err)
	}
	return nil
}

func (o *Orchestrator) processJob(_ context.Context, job worker.Job) {
	j, ok := job.(runJob)
	if !ok {
		o.logger.Error("unexpected job type", "job", fmt.Sprintf("%T", job))
		return
	}
	defer j.cancel()
	o.execute(j.ctx, j.run)
}

// Cancel signals an in-flight run to stop. The run still settles in a
// terminal state, which may be FallbackApplied.
func (o *Orchestrator) Cancel(id string) error {
	r, err := o.lookup(id)
	if err != nil {
		return err
	}
	if !r.requestCancel() {
		return models.NewError(models.ErrConflictingOperation, nil, "run %q is not in flight", id)
	}
	o.logger.Info("run cancellation requested", "run_id", id)
	return nil
}

// GeoJSON returns the run's location and, once analysed, its damage boundary.
func (o *Orchestrator) GeoJSON(id string) (models.FeatureCollection, error) {
	r, err := o.lookup(id)
	if err != nil {
		return models.FeatureCollection{}, err
	}
	v := r.view()
	fc := models.FeatureCollection{
		Type: "FeatureCollection",
		Features: []models.Feature{
			models.PointFeature(v.Disaster.Location, map[string]any{
				"id":       v.ID,
				"kind":     string(v.Disaster.Kind),
				"severity": v.Disaster.Severity.String(),
				"status":   string(v.Status),
			}),
		},
	}
	if b, ok := r.boundary(); ok {
		f := *b
		props := make(map[string]any, len(b.Properties)+1)
		for k, val := range b.Properties {
			props[k] = val
		}
		props["role"] = "damage_boundary"
		f.Properties = props
		fc.Features = append(fc.Features, f)
	}
	return fc, nil
}

// Evict drops terminal runs last updated more than ttl ago.
func (o *Orchestrator) Evict(ttl time.Duration) int {
	cutoff := o.clock.Now().Add(-ttl)

	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for id, r := range o.runs {
		if r.expired(cutoff) {
			delete(o.runs, id)
			n++
		}
	}
	return n
}

func (o *Orchestrator) execute(ctx context.Context, r *run) {
	logger := logging.ForRun(o.logger, r.id)
	if o.metrics != nil {
		o.metrics.RunsInFlight.Inc()
		defer o.metrics.RunsInFlight.Dec()
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("run panicked", "panic", rec)
			o.fail(r, models.NewError(models.ErrStageExecution, fmt.Errorf("panic: %v", rec), "run crashed"), logger)
		}
	}()

	start := o.clock.Now()
	plan, err := o.pipeline(ctx, r, logger)
	switch {
	case err == nil:
		o.settle(r, models.StatusComplete, plan, nil, logger)
	case errors.Is(err, errNoLiveData):
		o.fail(r, err, logger)
	default:
		o.tryFallback(r, err, logger)
	}
	logger.Info("run finished", "status", r.view().Status, "duration", o.clock.Since(start))
}

func (o *Orchestrator) pipeline(ctx context.Context, r *run, logger *slog.Logger) (*models.Plan, error) {
	d := r.disaster

	o.advance(r, models.StatusFetchingData)
	collected, err := await(ctx, models.ErrDataUnavailable, "processing abandoned during data collection", func() (collection, error) {
		data, failed, err := o.collector.FetchAll(ctx, d.Location)
		return collection{data: data, failed: failed}, err
	})
	if err != nil {
		return nil, err
	}
	r.setData(collected.data)
	succeeded := len(collected.data) - len(collected.failed)
	msg := fmt.Sprintf("Fetched data from %d of %d providers", succeeded, len(collected.data))
	if len(collected.failed) > 0 {
		msg += fmt.Sprintf(" (unavailable: %s)", strings.Join(collected.failed, ", "))
	}
	o.progress(r, fractionData, models.PhaseData, msg)

	o.advance(r, models.StatusRunningStages)
	results, err := await(ctx, models.ErrStageExecution, "analysis stages abandoned", func() (map[string]models.StageResult, error) {
		return o.scheduler.Run(ctx, d, collected.data)
	})
	if err != nil {
		return nil, err
	}
	r.setResults(results)
	o.progress(r, fractionAnalysis, models.PhaseAnalysis, fmt.Sprintf("Completed %d analysis stages", len(results)))

	o.advance(r, models.StatusSynthesizing)
	plan, err := await(ctx, models.ErrSynthesis, "synthesis failed: request abandoned", func() (*models.Plan, error) {
		return o.synth.Synthesize(ctx, d, results)
	})
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, models.NewError(models.ErrSynthesis, nil, "synthesis failed: no plan returned")
	}
	o.progress(r, fractionSynthesis, models.PhaseSynthesis, "Response plan generated")
	logger.Debug("plan synthesized", "summary_len", len(plan.Summary))
	return plan, nil
}

type collection struct {
	data   models.DataBundle
	failed []string
}

// await runs fn but stops waiting when ctx is done, so a collaborator that
// ignores cancellation cannot keep the run out of a terminal state. Panics in
// fn become errors of the given kind.
func await[T any](ctx context.Context, kind models.ErrorKind, message string, fn func() (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: models.NewError(kind, fmt.Errorf("panic: %v", rec), "%s", message)}
			}
		}()
		v, err := fn()
		done <- outcome{v: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && models.KindOf(out.err) == "" {
			out.err = models.NewError(kind, out.err, "%s", message)
		}
		return out.v, out.err
	case <-ctx.Done():
		var zero T
		return zero, models.NewError(kind, ctx.Err(), "%s", message)
	}
}

func (o *Orchestrator) tryFallback(r *run, cause error, logger *slog.Logger) {
	logger.Warn("live processing failed", "error", cause, "kind", models.KindOf(cause))
	if o.fallback == nil {
		o.fail(r, cause, logger)
		return
	}
	scenarioID, ok := o.fallback.Eligible(r.disaster)
	if !ok {
		o.fail(r, cause, logger)
		return
	}

	plan, err := o.fallback.Load(scenarioID)
	if err != nil {
		logger.Error("fallback failed", "scenario", scenarioID, "error", err)
		o.fail(r, err, logger)
		return
	}
	plan.Fallback = true
	plan.Source = models.SourceCache
	plan.ScenarioID = scenarioID
	logger.Info("fallback plan applied", "scenario", scenarioID)
	o.settle(r, models.StatusFallbackApplied, plan, nil, logger)
}

func (o *Orchestrator) fail(r *run, err error, logger *slog.Logger) {
	o.settle(r, models.StatusFailed, nil, err, logger)
}

// settle records the terminal state, archives it and publishes exactly one
// terminal event.
func (o *Orchestrator) settle(r *run, status models.RunStatus, plan *models.Plan, err error, logger *slog.Logger) {
	now := o.clock.Now()
	if plan != nil {
		plan.RunID = r.id
		if plan.GeneratedAt.IsZero() {
			plan.GeneratedAt = now
		}
	}
	if !r.finish(status, plan, err, now) {
		return
	}
	if o.metrics != nil {
		o.metrics.RunsFinished.WithLabelValues(string(status)).Inc()
	}

	view := r.view()
	if o.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		if err := o.archive.SaveRun(ctx, view); err != nil {
			logger.Error("error archiving run", "error", err)
		}
		cancel()
	}

	ev := models.Event{RunID: r.id, At: now}
	if status == models.StatusFailed {
		ev.Type = models.EventFailed
		ev.ErrorKind = view.Error.Kind
		ev.Message = view.Error.Message
	} else {
		ev.Type = models.EventComplete
		ev.Plan = plan
		ev.Fallback = status == models.StatusFallbackApplied
	}
	o.sink.Publish(ev)
}

func (o *Orchestrator) advance(r *run, next models.RunStatus) {
	r.advance(next, o.clock.Now())
}

func (o *Orchestrator) progress(r *run, fraction float64, phase, message string) {
	o.sink.Publish(models.Event{
		Type:     models.EventProgress,
		RunID:    r.id,
		At:       o.clock.Now(),
		Fraction: fraction,
		Phase:    phase,
		Message:  message,
	})
}
