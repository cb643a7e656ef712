package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

// run is one disaster run in the registry. Only the goroutine that claimed
// it mutates it; mu keeps Status snapshots consistent.
type run struct {
	id       string
	disaster models.Disaster

	mu        sync.RWMutex
	status    models.RunStatus
	claimed   bool
	cancel    context.CancelFunc
	data      models.DataBundle
	results   map[string]models.StageResult
	plan      *models.Plan
	err       error
	updatedAt time.Time
}

func (r *run) view() models.RunView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return models.RunView{
		ID:        r.id,
		Disaster:  r.disaster,
		Status:    r.status,
		Plan:      r.plan,
		Error:     models.ViewOf(r.err),
		UpdatedAt: r.updatedAt,
	}
}

// claim marks the run as owned by one process call.
func (r *run) claim(cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimed || r.status != models.StatusCreated {
		return false
	}
	r.claimed = true
	r.cancel = cancel
	return true
}

// release undoes a claim whose work never started.
func (r *run) release() {
	r.mu.Lock()
	r.claimed = false
	r.cancel = nil
	r.mu.Unlock()
}

func (r *run) advance(next models.RunStatus, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.CanAdvanceTo(next) {
		return false
	}
	r.status = next
	r.updatedAt = now
	return true
}

func (r *run) setData(data models.DataBundle) {
	r.mu.Lock()
	r.data = data
	r.mu.Unlock()
}

func (r *run) setResults(results map[string]models.StageResult) {
	r.mu.Lock()
	r.results = results
	r.mu.Unlock()
}

// finish stores exactly one of plan or err and moves to a terminal status.
func (r *run) finish(status models.RunStatus, plan *models.Plan, err error, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.CanAdvanceTo(status) {
		return false
	}
	r.status = status
	r.plan = plan
	r.err = err
	r.updatedAt = now
	r.cancel = nil
	return true
}

func (r *run) requestCancel() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cancel == nil || r.status.Terminal() {
		return false
	}
	r.cancel()
	return true
}

func (r *run) boundary() (*models.Feature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.results == nil {
		return nil, false
	}
	return r.results[models.StageDamage].Boundary()
}

func (r *run) expired(cutoff time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status.Terminal() && r.updatedAt.Before(cutoff)
}
