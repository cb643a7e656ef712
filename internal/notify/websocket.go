package notify

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
	maxReadSize  = 1024
)

// StatusReader looks up a run snapshot.
type StatusReader interface {
	Status(id string) (models.RunView, error)
}

// Snapshot is the first message sent after joining a room.
type Snapshot struct {
	Type  string         `json:"type"`
	RunID string         `json:"run_id"`
	Run   models.RunView `json:"run"`
}

// RoomHandler upgrades a request to a WebSocket joined to one run's room.
type RoomHandler struct {
	broadcaster *Broadcaster
	runs        StatusReader
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewRoomHandler accepts connections from allowedOrigins; "*" allows any.
func NewRoomHandler(b *Broadcaster, runs StatusReader, allowedOrigins []string, logger *slog.Logger) *RoomHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomHandler{
		broadcaster: b,
		runs:        runs,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Serve blocks until the client leaves, the run finishes or the broadcaster
// closes.
func (h *RoomHandler) Serve(w http.ResponseWriter, r *http.Request, runID string) {
	if _, err := h.runs.Status(runID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "run_id", runID, "error", err)
		return
	}
	defer conn.Close()

	// Subscribe before the snapshot so no event between the two is lost.
	subID, events := h.broadcaster.Subscribe(runID)
	defer h.broadcaster.Unsubscribe(runID, subID)
	h.logger.Info("client joined run room", "run_id", runID, "subscriber_id", subID)

	view, err := h.runs.Status(runID)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(Snapshot{Type: "snapshot", RunID: runID, Run: view}); err != nil {
		return
	}
	if view.Status.Terminal() {
		closeNormally(conn)
		return
	}

	left := make(chan struct{})
	go h.readPump(conn, left)
	h.writePump(conn, events, left)
	conn.Close()
	<-left
	h.logger.Info("client left run room", "run_id", runID, "subscriber_id", subID)
}

// readPump discards client messages and signals when the client goes away.
func (h *RoomHandler) readPump(conn *websocket.Conn, left chan<- struct{}) {
	defer close(left)

	conn.SetReadLimit(maxReadSize)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func (h *RoomHandler) writePump(conn *websocket.Conn, events <-chan models.Event, left <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-left:
			return
		case ev, ok := <-events:
			if !ok {
				closeNormally(conn)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Warn("websocket write failed", "run_id", ev.RunID, "error", err)
				return
			}
			if ev.Terminal() {
				closeNormally(conn)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
