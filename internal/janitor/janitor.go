// Package janitor periodically drops finished runs from the registry.
package janitor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Evicter removes terminal runs older than ttl and reports how many.
type Evicter interface {
	Evict(ttl time.Duration) int
}

type Janitor struct {
	cron   *cron.Cron
	target Evicter
	ttl    time.Duration
	logger *slog.Logger
}

// New schedules sweeps with a cron spec such as "@every 10m" or "*/5 * * * *".
func New(target Evicter, ttl time.Duration, schedule string, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		cron:   cron.New(),
		target: target,
		ttl:    ttl,
		logger: logger,
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.Sweep() }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Janitor) Sweep() int {
	n := j.target.Evict(j.ttl)
	if n > 0 {
		j.logger.Info("evicted finished runs", "count", n, "ttl", j.ttl)
	}
	return n
}

func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("janitor started", "ttl", j.ttl)
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("janitor stopped")
}
