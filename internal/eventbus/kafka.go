package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/observability"
)

const (
	kafkaQueueSize    = 256
	kafkaWriteTimeout = 10 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaSink writes events to a topic keyed by run id, so all events of a run
// land on one partition in order. Publish only enqueues; a background
// goroutine does the writes.
type KafkaSink struct {
	writer  messageWriter
	queue   chan models.Event
	metrics *observability.Metrics
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewKafkaSink(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger) *KafkaSink {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
	}
	return newKafkaSink(w, metrics, logger)
}

func newKafkaSink(w messageWriter, metrics *observability.Metrics, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &KafkaSink{
		writer:  w,
		queue:   make(chan models.Event, kafkaQueueSize),
		metrics: metrics,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *KafkaSink) Publish(ev models.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- ev:
	default:
		if s.metrics != nil {
			s.metrics.EventsDropped.Inc()
		}
		s.logger.Warn("kafka queue full, dropping event", "run_id", ev.RunID, "type", ev.Type)
	}
}

func (s *KafkaSink) run() {
	defer close(s.done)
	for ev := range s.queue {
		msg, err := toMessage(ev)
		if err != nil {
			s.logger.Error("error encoding event", "run_id", ev.RunID, "error", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), kafkaWriteTimeout)
		if err := s.writer.WriteMessages(ctx, msg); err != nil {
			s.logger.Warn("kafka write failed", "run_id", ev.RunID, "type", ev.Type, "error", err)
		}
		cancel()
	}
}

// Close flushes queued events and closes the writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.writer.Close()
}

func toMessage(ev models.Event) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.RunID),
		Value: data,
		Time:  ev.At,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}, nil
}
