// Package eventbus mirrors run events onto external message brokers.
package eventbus

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

const subjectPrefix = "disasters"

// natsPublisher is the part of *nats.Conn the sink uses.
type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each event on disasters.<run_id>.<event type>, so
// listeners can subscribe to one run with disasters.<run_id>.>.
type NATSSink struct {
	conn   natsPublisher
	logger *slog.Logger
}

func NewNATSSink(conn *nats.Conn, logger *slog.Logger) *NATSSink {
	return newNATSSink(conn, logger)
}

func newNATSSink(conn natsPublisher, logger *slog.Logger) *NATSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{conn: conn, logger: logger}
}

// Subject returns the subject an event is published on.
func Subject(ev models.Event) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, ev.RunID, ev.Type)
}

// Publish hands the event to the client's outbound buffer and returns.
func (s *NATSSink) Publish(ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("error encoding event", "run_id", ev.RunID, "error", err)
		return
	}
	if err := s.conn.Publish(Subject(ev), data); err != nil {
		s.logger.Warn("nats publish failed", "run_id", ev.RunID, "type", ev.Type, "error", err)
	}
}

// Connect dials NATS with reconnects enabled for the lifetime of the process.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("rapidresponse"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}
