package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func progress(runID string, fraction float64) models.Event {
	return models.Event{Type: models.EventProgress, RunID: runID, Fraction: fraction, Phase: models.PhaseData}
}

func TestBroadcaster_SubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster(0, nil)

	id, ch := b.Subscribe("run-1")
	assert.Equal(t, 1, b.SubscriberCount("run-1"))
	assert.Equal(t, 1, b.RoomCount())

	b.Unsubscribe("run-1", id)
	assert.Zero(t, b.SubscriberCount("run-1"))
	assert.Zero(t, b.RoomCount(), "empty rooms are removed")

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")

	b.Unsubscribe("run-1", id)
}

func TestBroadcaster_EventsAreScopedToRoom(t *testing.T) {
	b := NewBroadcaster(4, nil)

	idA, chA := b.Subscribe("run-a")
	defer b.Unsubscribe("run-a", idA)
	idB, chB := b.Subscribe("run-b")
	defer b.Unsubscribe("run-b", idB)

	b.Publish(progress("run-a", 0.3))

	select {
	case ev := <-chA:
		assert.Equal(t, "run-a", ev.RunID)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	select {
	case ev := <-chB:
		t.Fatalf("run-b received an event for %s", ev.RunID)
	default:
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	b := NewBroadcaster(2, metrics)

	id, ch := b.Subscribe("run-1")
	defer b.Unsubscribe("run-1", id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			b.Publish(progress("run-1", float64(i)/10))
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	assert.Len(t, ch, 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.EventsDropped))
}

func TestBroadcaster_ConcurrentSubscribePublish(t *testing.T) {
	b := NewBroadcaster(0, nil)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id, ch := b.Subscribe("run-1")
			go func() {
				for range ch {
				}
			}()
			time.Sleep(2 * time.Millisecond)
			b.Unsubscribe("run-1", id)
		}()
		go func(n int) {
			defer wg.Done()
			b.Publish(progress("run-1", float64(n)/100))
		}(i)
	}
	wg.Wait()

	assert.Zero(t, b.SubscriberCount("run-1"))
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster(0, nil)
	var channels []chan models.Event
	for _, run := range []string{"a", "a", "b"} {
		_, ch := b.Subscribe(run)
		channels = append(channels, ch)
	}

	b.Close()

	assert.Zero(t, b.RoomCount())
	for i, ch := range channels {
		_, ok := <-ch
		assert.False(t, ok, "channel %d should be closed", i)
	}
}

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Publish(ev models.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func TestFanout(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Fanout{a, b}.Publish(progress("run-1", 0.3))

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

type fakeRuns map[string]models.RunView

func (f fakeRuns) Status(id string) (models.RunView, error) {
	v, ok := f[id]
	if !ok {
		return models.RunView{}, models.NewError(models.ErrNotFound, nil, "run %q not found", id)
	}
	return v, nil
}

func roomServer(t *testing.T, b *Broadcaster, runs StatusReader) *httptest.Server {
	t.Helper()
	h := NewRoomHandler(b, runs, []string{"*"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, strings.TrimPrefix(r.URL.Path, "/ws/"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, runID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + runID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRoomHandler_StreamsUntilTerminal(t *testing.T) {
	b := NewBroadcaster(0, nil)
	runs := fakeRuns{"run-1": {ID: "run-1", Status: models.StatusFetchingData}}
	srv := roomServer(t, b, runs)
	conn := dial(t, srv, "run-1")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snap Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, models.StatusFetchingData, snap.Run.Status)

	require.Eventually(t, func() bool { return b.SubscriberCount("run-1") == 1 }, time.Second, 5*time.Millisecond)
	b.Publish(progress("run-1", 0.3))
	b.Publish(models.Event{Type: models.EventComplete, RunID: "run-1", Plan: &models.Plan{Summary: "done"}})

	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventProgress, ev.Type)
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventComplete, ev.Type)
	assert.Equal(t, "done", ev.Plan.Summary)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	require.Eventually(t, func() bool { return b.SubscriberCount("run-1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestRoomHandler_FinishedRunGetsSnapshotOnly(t *testing.T) {
	b := NewBroadcaster(0, nil)
	runs := fakeRuns{"run-1": {ID: "run-1", Status: models.StatusComplete, Plan: &models.Plan{Summary: "s"}}}
	conn := dial(t, roomServer(t, b, runs), "run-1")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snap Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, models.StatusComplete, snap.Run.Status)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestRoomHandler_UnknownRun(t *testing.T) {
	srv := roomServer(t, NewBroadcaster(0, nil), fakeRuns{})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/missing"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestRoomHandler_ClientLeaving(t *testing.T) {
	b := NewBroadcaster(0, nil)
	runs := fakeRuns{"run-1": {ID: "run-1", Status: models.StatusRunningStages}}
	conn := dial(t, roomServer(t, b, runs), "run-1")

	var snap Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	require.Eventually(t, func() bool { return b.SubscriberCount("run-1") == 1 }, time.Second, 5*time.Millisecond)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	require.Eventually(t, func() bool { return b.SubscriberCount("run-1") == 0 }, time.Second, 5*time.Millisecond)
}
