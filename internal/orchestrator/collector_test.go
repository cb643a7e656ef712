package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/observability"
)

type stubProvider struct {
	name  string
	value any
	err   error
	delay time.Duration
	panic bool
	// block, when set, is waited on without watching ctx.
	block chan struct{}
	calls atomic.Int32
}

func (p *stubProvider) Name() string { return p.name }
func (p *stubProvider) Empty() any   { return "empty:" + p.name }

func (p *stubProvider) Fetch(ctx context.Context, loc models.Location) (any, error) {
	p.calls.Add(1)
	if p.panic {
		panic("provider exploded")
	}
	if p.block != nil {
		<-p.block
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.value, p.err
}

func healthy(name string) *stubProvider {
	return &stubProvider{name: name, value: "data:" + name}
}

func broken(name string) *stubProvider {
	return &stubProvider{name: name, err: errors.New(name + " is down")}
}

func asProviders(ps ...*stubProvider) []Provider {
	out := make([]Provider, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

func TestCollector_PartialFailureSubstitutesEmpty(t *testing.T) {
	c := NewCollector(asProviders(healthy("satellite"), broken("weather_current"), healthy("roads")), observability.NewMetricsForTesting(), nil)

	bundle, failed, err := c.FetchAll(context.Background(), models.Location{Lat: 43.7, Lon: -79.8})
	require.NoError(t, err)

	assert.Equal(t, []string{"weather_current"}, failed)
	assert.Equal(t, "data:satellite", bundle["satellite"])
	assert.Equal(t, "empty:weather_current", bundle["weather_current"])
	assert.Equal(t, "data:roads", bundle["roads"])
}

func TestCollector_PanickingProviderIsIsolated(t *testing.T) {
	bad := &stubProvider{name: "population", panic: true}
	c := NewCollector(asProviders(healthy("satellite"), bad), nil, nil)

	bundle, failed, err := c.FetchAll(context.Background(), models.Location{})
	require.NoError(t, err)
	assert.Equal(t, []string{"population"}, failed)
	assert.Equal(t, "empty:population", bundle["population"])
}

func TestCollector_AllFailIsDataUnavailable(t *testing.T) {
	c := NewCollector(asProviders(broken("a"), broken("b")), nil, nil)

	bundle, failed, err := c.FetchAll(context.Background(), models.Location{})
	require.Error(t, err)
	assert.Nil(t, bundle)
	assert.ElementsMatch(t, []string{"a", "b"}, failed)
	assert.True(t, models.IsKind(err, models.ErrDataUnavailable))
	assert.Contains(t, err.Error(), "no live data could be obtained")
	assert.ErrorIs(t, err, errNoLiveData)
}

func TestCollector_CancelledFetchIsNotReportedAsNoData(t *testing.T) {
	slow := []*stubProvider{
		{name: "a", value: 1, delay: time.Second},
		{name: "b", value: 2, delay: time.Second},
	}
	c := NewCollector(asProviders(slow...), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.FetchAll(ctx, models.Location{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, errNoLiveData)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "processing abandoned during data collection")
}

func TestCollector_FetchesConcurrently(t *testing.T) {
	slow := []*stubProvider{
		{name: "a", value: 1, delay: 100 * time.Millisecond},
		{name: "b", value: 2, delay: 100 * time.Millisecond},
		{name: "c", value: 3, delay: 100 * time.Millisecond},
	}
	c := NewCollector(asProviders(slow...), nil, nil)

	start := time.Now()
	bundle, _, err := c.FetchAll(context.Background(), models.Location{})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Len(t, bundle, 3)
}
