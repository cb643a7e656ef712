package notify

import "github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"

type Publisher interface {
	Publish(ev models.Event)
}

// Fanout publishes every event to each publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ev models.Event) {
	for _, p := range f {
		p.Publish(ev)
	}
}
