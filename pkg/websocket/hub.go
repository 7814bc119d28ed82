package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/zap"
)

// Hub streams execution progress events to connected WebSocket subscribers.
type Hub struct {
	upgrader websocket.Upgrader
	config   Config
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	clients  map[*subscriber]struct{}
}

// Config holds hub configuration.
type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBufferSize int
	Logger         *zap.Logger
}

type subscriber struct {
	conn        *websocket.Conn
	send        chan []byte
	executionID string // empty subscribes to every execution
	done        chan struct{}
	closeOnce   sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// New creates a new progress hub.
func New(cfg Config) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 2 * cfg.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		config:  cfg,
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the request and registers a subscriber.
// The optional execution_id query parameter restricts the stream to one execution.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.ctx.Done():
		http.Error(w, "hub closed", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket-upgrade-failed", zap.Error(err))
		return
	}

	sub := &subscriber{
		conn:        conn,
		send:        make(chan []byte, h.config.SendBufferSize),
		executionID: r.URL.Query().Get("execution_id"),
		done:        make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[sub] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	ActiveConnections.Set(float64(count))

	h.logger.Info("progress-subscriber-connected",
		zap.String("remote-addr", r.RemoteAddr),
		zap.String("execution-id", sub.executionID),
		zap.Int("subscribers", count))

	h.wg.Add(2)
	go h.writeLoop(sub)
	go h.readLoop(sub)
}

// Publish fans an event out to every matching subscriber without blocking.
func (h *Hub) Publish(event types.ExecutionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("progress-event-marshal-failed", zap.Error(err))
		return
	}

	EventsPublishedTotal.WithLabelValues(event.Stage).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.clients {
		if sub.executionID != "" && sub.executionID != event.ExecutionID {
			continue
		}

		select {
		case sub.send <- payload:
		default:
			MessagesDroppedTotal.WithLabelValues("subscriber_slow").Inc()
			h.logger.Debug("progress-event-dropped",
				zap.String("execution-id", event.ExecutionID),
				zap.String("stage", event.Stage))
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.clients[sub]
	delete(h.clients, sub)
	count := len(h.clients)
	h.mu.Unlock()

	sub.close()

	if ok {
		ActiveConnections.Set(float64(count))
		h.logger.Debug("progress-subscriber-disconnected", zap.Int("subscribers", count))
	}
}

// writeLoop drains the subscriber queue and keeps the connection alive with pings.
func (h *Hub) writeLoop(sub *subscriber) {
	defer h.wg.Done()
	defer h.remove(sub)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			deadline := time.Now().Add(h.config.WriteTimeout)
			_ = sub.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
			return
		case <-sub.done:
			return
		case payload := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			err := sub.conn.WriteMessage(websocket.TextMessage, payload)
			if err != nil {
				h.logger.Debug("progress-write-error", zap.Error(err))
				return
			}
			MessagesSentTotal.Inc()
		case <-ticker.C:
			err := sub.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.config.WriteTimeout))
			if err != nil {
				h.logger.Debug("progress-ping-error", zap.Error(err))
				return
			}
		}
	}
}

// readLoop discards client frames and detects disconnects.
func (h *Hub) readLoop(sub *subscriber) {
	defer h.wg.Done()
	defer h.remove(sub)

	_ = sub.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	})

	for {
		_, _, err := sub.conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

// Close disconnects every subscriber and waits for their loops to exit.
func (h *Hub) Close() error {
	h.logger.Info("closing-progress-hub")

	h.cancel()

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.clients))
	for sub := range h.clients {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		// unblock readLoop
		_ = sub.conn.SetReadDeadline(time.Now())
	}

	h.wg.Wait()

	ActiveConnections.Set(0)

	h.logger.Info("progress-hub-closed")

	return nil
}
