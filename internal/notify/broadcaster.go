// Package notify delivers run events to listeners subscribed to a run.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/observability"
)

const defaultBuffer = 64

// Broadcaster keeps one room of subscribers per run id. Publishing never
// blocks; a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	rooms   map[string]map[uint64]chan models.Event
	nextID  atomic.Uint64
	buffer  int
	metrics *observability.Metrics
	mu      sync.RWMutex
}

func NewBroadcaster(buffer int, metrics *observability.Metrics) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broadcaster{
		rooms:   make(map[string]map[uint64]chan models.Event),
		buffer:  buffer,
		metrics: metrics,
	}
}

func (b *Broadcaster) Subscribe(runID string) (uint64, chan models.Event) {
	id := b.nextID.Add(1)
	ch := make(chan models.Event, b.buffer)

	b.mu.Lock()
	room, ok := b.rooms[runID]
	if !ok {
		room = make(map[uint64]chan models.Event)
		b.rooms[runID] = room
	}
	room[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(runID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room, ok := b.rooms[runID]
	if !ok {
		return
	}
	if ch, ok := room[id]; ok {
		close(ch)
		delete(room, id)
	}
	if len(room) == 0 {
		delete(b.rooms, runID)
	}
}

func (b *Broadcaster) Publish(ev models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.rooms[ev.RunID] {
		select {
		case ch <- ev:
		default:
			if b.metrics != nil {
				b.metrics.EventsDropped.Inc()
			}
		}
	}
}

// SubscriberCount returns the listeners in one room.
func (b *Broadcaster) SubscriberCount(runID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[runID])
}

func (b *Broadcaster) RoomCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms)
}

// Close closes every subscriber channel so listeners exit.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for runID, room := range b.rooms {
		for id, ch := range room {
			close(ch)
			delete(room, id)
		}
		delete(b.rooms, runID)
	}
}
