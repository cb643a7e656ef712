package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/observability"
)

// errNoLiveData marks a fetch where every provider answered with an error.
// Only this outcome skips the fallback check.
var errNoLiveData = errors.New("all providers failed")

// Provider is one external data source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc models.Location) (any, error)
	// Empty is substituted when Fetch fails.
	Empty() any
}

// Collector fetches from every provider at once. A failing provider only
// loses its own contribution.
type Collector struct {
	providers []Provider
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func NewCollector(providers []Provider, metrics *observability.Metrics, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{providers: providers, metrics: metrics, logger: logger}
}

type fetchResult struct {
	value any
	err   error
}

// FetchAll returns the bundle and the names of providers that failed. It
// fails with DataUnavailable only when no provider succeeded.
func (c *Collector) FetchAll(ctx context.Context, loc models.Location) (models.DataBundle, []string, error) {
	results := make([]fetchResult, len(c.providers))

	// Goroutines record into their own slot and never return an error, so
	// one provider failing does not affect the others.
	var g errgroup.Group
	for i, p := range c.providers {
		i, p := i, p
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = fetchResult{err: fmt.Errorf("provider panicked: %v", r)}
				}
			}()
			v, err := p.Fetch(ctx, loc)
			results[i] = fetchResult{value: v, err: err}
			return nil
		})
	}
	g.Wait()

	bundle := make(models.DataBundle, len(c.providers))
	var failed []string
	for i, p := range c.providers {
		r := results[i]
		if r.err != nil {
			c.logger.Warn("provider fetch failed", "provider", p.Name(), "error", r.err)
			c.observe(p.Name(), "error")
			failed = append(failed, p.Name())
			bundle[p.Name()] = p.Empty()
			continue
		}
		c.observe(p.Name(), "success")
		bundle[p.Name()] = r.value
	}

	if len(failed) == len(c.providers) {
		if err := ctx.Err(); err != nil {
			return nil, failed, models.NewError(models.ErrDataUnavailable, err, "processing abandoned during data collection")
		}
		return nil, failed, models.NewError(models.ErrDataUnavailable, errNoLiveData,
			"no live data could be obtained: all %d providers failed", len(c.providers))
	}
	return bundle, failed, nil
}

func (c *Collector) observe(provider, outcome string) {
	if c.metrics != nil {
		c.metrics.ProviderFetches.WithLabelValues(provider, outcome).Inc()
	}
}
