// Package viewer streams PII detections from Kafka to browsers over
// WebSocket.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"speech-pii-redaction-service/internal/observability/logging"
)

// Detection is one detections-topic message as shown to viewers.
type Detection struct {
	Key        string          `json:"key"`
	Partition  int             `json:"partition"`
	Offset     int64           `json:"offset"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Result     json.RawMessage `json:"result"`
}

// Hub fans detections out to connected WebSocket clients.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHub creates a hub that accepts any origin.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logging.WithComponent("viewer"),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast writes d to every client and drops clients that fail.
func (h *Hub) Broadcast(d Detection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(d); err != nil {
			h.logger.Debug().Err(err).Msg("Dropping viewer client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ServeWS upgrades the request and registers the connection until the
// client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info().Int("clients", n).Msg("Viewer connected")

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
		h.logger.Info().Int("clients", len(h.clients)).Msg("Viewer disconnected")
	}
}

// messageReader is the part of *kafka.Reader Consume uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// NewReader reads topic from the given lookback. No consumer group is used,
// so every viewer sees every detection.
func NewReader(ctx context.Context, brokers []string, topic string, lookback time.Duration) *kafka.Reader {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	if lookback > 0 {
		_ = r.SetOffsetAt(ctx, time.Now().Add(-lookback))
	}
	return r
}

// Consume forwards messages from r to the hub until ctx ends. Messages that
// are not JSON are skipped.
func (h *Hub) Consume(ctx context.Context, r messageReader) error {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if !json.Valid(msg.Value) {
			h.logger.Warn().Int64("offset", msg.Offset).Msg("Skipping non-JSON detection")
			continue
		}
		h.Broadcast(Detection{
			Key:        string(msg.Key),
			Partition:  msg.Partition,
			Offset:     msg.Offset,
			ReceivedAt: time.Now().UTC(),
			Result:     json.RawMessage(msg.Value),
		})
	}
}

// Page is a minimal live view of the detections feed.
const Page = `<!doctype html>
<html><head><meta charset="utf-8"><title>PII detections</title>
<style>body{font-family:monospace;margin:2em}li{margin:.5em 0}</style></head>
<body><h1>PII detections</h1><ul id="feed"></ul>
<script>
const feed = document.getElementById("feed");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (e) => {
  const d = JSON.parse(e.data);
  const li = document.createElement("li");
  li.textContent = d.receivedAt + "  " + d.key + "  " + (d.result.audioUri || "") + "  " + ((d.result.piiOccurrences || []).length) + " occurrence(s)";
  feed.prepend(li);
};
</script></body></html>
`
