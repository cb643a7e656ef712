package janitor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRegistry struct {
	mu    sync.Mutex
	ttls  []time.Duration
	evict int
}

func (f *fakeRegistry) Evict(ttl time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls = append(f.ttls, ttl)
	return f.evict
}

func (f *fakeRegistry) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ttls)
}

func TestJanitor_Sweep(t *testing.T) {
	reg := &fakeRegistry{evict: 3}
	j, err := New(reg, 24*time.Hour, "@every 10m", nil)
	require.NoError(t, err)

	assert.Equal(t, 3, j.Sweep())
	assert.Equal(t, []time.Duration{24 * time.Hour}, reg.ttls)
}

func TestJanitor_InvalidSchedule(t *testing.T) {
	_, err := New(&fakeRegistry{}, time.Hour, "every ten minutes", nil)
	assert.ErrorContains(t, err, "invalid sweep schedule")
}

func TestJanitor_RunsOnSchedule(t *testing.T) {
	reg := &fakeRegistry{}
	j, err := New(reg, time.Hour, "@every 1s", nil)
	require.NoError(t, err)

	j.Start()
	require.Eventually(t, func() bool { return reg.calls() > 0 }, 3*time.Second, 50*time.Millisecond)
	j.Stop()
}
