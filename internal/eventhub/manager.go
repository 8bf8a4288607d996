// Package eventhub fans lifecycle events from the Redis channel out to
// connected admin and worker websockets.
package eventhub

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"cleancity/backend/internal/metrics"
	"cleancity/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Hub owns the set of connected clients. All mutation happens on the Run goroutine.
type Hub struct {
	clients map[Client]struct{}
	count   atomic.Int64

	RegisterCh   chan Client
	UnregisterCh chan Client
	eventsCh     chan models.ComplaintEvent
	done         chan struct{}

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:      make(map[Client]struct{}),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		eventsCh:     make(chan models.ComplaintEvent, 64),
		done:         make(chan struct{}),
		logger:       logger,
	}
}

// Run processes registrations and events until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			h.drop(c)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.RegisterCh:
			h.clients[c] = struct{}{}
			h.setCount()
			h.logger.Info("Event subscriber connected",
				zap.String("user_id", c.GetUserID()), zap.String("role", string(c.GetRole())))
		case c := <-h.UnregisterCh:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case ev := <-h.eventsCh:
			h.broadcast(ev)
		}
	}
}

// Register hands a client to the hub. It returns false once the hub stopped.
func (h *Hub) Register(c Client) bool {
	select {
	case h.RegisterCh <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client; safe to call after the hub stopped.
func (h *Hub) Unregister(c Client) {
	select {
	case h.UnregisterCh <- c:
	case <-h.done:
	}
}

// Publish delivers an event to matching local subscribers.
func (h *Hub) Publish(ev models.ComplaintEvent) {
	select {
	case h.eventsCh <- ev:
	case <-h.done:
	}
}

// Count is the number of connected subscribers.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

// Listen feeds events from a Redis subscription into the hub until the channel
// closes or ctx ends.
func (h *Hub) Listen(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev models.ComplaintEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.logger.Warn("Discarding malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			h.Publish(ev)
		}
	}
}

func (h *Hub) broadcast(ev models.ComplaintEvent) {
	for c := range h.clients {
		if !routes(c, ev) {
			continue
		}
		select {
		case c.GetSendChannel() <- ev:
		default:
			h.logger.Warn("Dropping slow event subscriber", zap.String("user_id", c.GetUserID()))
			h.drop(c)
		}
	}
}

// routes reports whether c should see ev: admins see everything, workers
// only events about complaints assigned to them.
func routes(c Client, ev models.ComplaintEvent) bool {
	switch c.GetRole() {
	case models.RoleAdmin:
		return true
	case models.RoleWorker:
		return ev.AssignedTo != "" && ev.AssignedTo == c.GetUserID()
	default:
		return false
	}
}

func (h *Hub) drop(c Client) {
	delete(h.clients, c)
	close(c.GetSendChannel())
	h.setCount()
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.EventSubscribers.Set(float64(len(h.clients)))
}
