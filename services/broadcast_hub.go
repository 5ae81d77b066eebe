package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"signage-server/models"
)

// Broadcast errors
var (
	ErrClientNotFound   = errors.New("client not found")
	ErrClientBufferFull = errors.New("client buffer full")
)

// clientBufferSize is the per-connection outbound queue. A peer that
// falls this far behind is considered dead and dropped.
const clientBufferSize = 256

// Client is one live stream connection subscribed to broadcasts. It
// exists only while the underlying connection is open; the stream
// handler unsubscribes it on the way out.
type Client struct {
	ID          string
	DisplayID   string
	ConnectedAt time.Time
	Send        chan []byte
}

type outbound struct {
	displayID string // empty targets every client
	event     models.Event
}

// Hub fans out events to all open stream connections. Publishing never
// blocks the caller: events are queued to a single dispatch goroutine,
// which preserves publish order, and each peer send is attempted
// independently so a slow or dead peer cannot stall the rest.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*Client
	byDisplay map[string]map[string]*Client

	events chan outbound
	done   chan struct{}
	exited chan struct{}

	shutdownOnce sync.Once
}

// NewHub creates a hub and starts its dispatch goroutine.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]*Client),
		byDisplay: make(map[string]map[string]*Client),
		events:    make(chan outbound, clientBufferSize),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}
	go h.dispatch()
	return h
}

// Subscribe registers a new stream connection for a display and returns
// its subscription handle. Multiple connections may share a display id
// transiently during reconnects.
func (h *Hub) Subscribe(displayID string) *Client {
	client := &Client{
		ID:          uuid.New().String(),
		DisplayID:   displayID,
		ConnectedAt: time.Now(),
		Send:        make(chan []byte, clientBufferSize),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	if h.byDisplay[displayID] == nil {
		h.byDisplay[displayID] = make(map[string]*Client)
	}
	h.byDisplay[displayID][client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()

	slog.Info("Stream client subscribed",
		"displayID", displayID,
		"clientID", client.ID,
		"totalClients", total)
	return client
}

// Unsubscribe removes a client and closes its send queue. Idempotent;
// safe to call from a deferred cleanup and from the dispatch path.
func (h *Hub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(clientID)
}

// removeLocked drops a client from both indexes. Caller holds h.mu.
func (h *Hub) removeLocked(clientID string) {
	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	close(client.Send)
	delete(h.clients, clientID)

	if displayClients, ok := h.byDisplay[client.DisplayID]; ok {
		delete(displayClients, clientID)
		if len(displayClients) == 0 {
			delete(h.byDisplay, client.DisplayID)
		}
	}

	slog.Info("Stream client unsubscribed",
		"displayID", client.DisplayID,
		"clientID", clientID,
		"remainingClients", len(h.clients))
}

// Publish queues an event for delivery to every subscribed client.
func (h *Hub) Publish(eventType string, payload interface{}) {
	h.enqueue(outbound{event: models.Event{
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}})
}

// PublishTo queues an event for the subset of clients matching a
// display id.
func (h *Hub) PublishTo(displayID, eventType string, payload interface{}) {
	h.enqueue(outbound{displayID: displayID, event: models.Event{
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}})
}

// enqueue hands an event to the dispatcher without ever blocking the
// publishing request path. A full queue drops the event; the roster and
// settings flows re-derive state from snapshots, so a dropped
// intermediate event is recovered by the next one.
func (h *Hub) enqueue(ev outbound) {
	select {
	case h.events <- ev:
	case <-h.done:
	default:
		slog.Warn("Broadcast queue full, dropping event", "type", ev.event.Type)
	}
}

// dispatch delivers queued events one at a time, preserving publish order.
func (h *Hub) dispatch() {
	defer close(h.exited)
	for {
		select {
		case ev := <-h.events:
			h.fanOut(ev)
		case <-h.done:
			return
		}
	}
}

// fanOut sends one event to its recipients. A peer whose buffer is full
// is unsubscribed; other peers are unaffected.
func (h *Hub) fanOut(ev outbound) {
	data, err := json.Marshal(ev.event)
	if err != nil {
		slog.Error("Failed to marshal broadcast event", "type", ev.event.Type, "error", err)
		return
	}

	var stuck []string

	h.mu.RLock()
	recipients := h.clients
	if ev.displayID != "" {
		displayClients := h.byDisplay[ev.displayID]
		recipients = displayClients
	}
	for id, client := range recipients {
		select {
		case client.Send <- data:
		default:
			stuck = append(stuck, id)
		}
	}
	h.mu.RUnlock()

	if len(stuck) == 0 {
		return
	}

	h.mu.Lock()
	for _, id := range stuck {
		slog.Warn("Dropping stalled stream client", "clientID", id, "type", ev.event.Type)
		h.removeLocked(id)
	}
	h.mu.Unlock()
}

// SendToClient queues raw data for a single client. Used for direct
// replies on a connection's own stream, outside the broadcast path.
func (h *Hub) SendToClient(clientID string, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	select {
	case client.Send <- data:
		return nil
	default:
		return ErrClientBufferFull
	}
}

// ClientCount returns the number of open stream connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ConnectionsFor returns the number of open connections for a display.
func (h *Hub) ConnectionsFor(displayID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byDisplay[displayID])
}

// Shutdown broadcasts a server_shutdown event to every client, stops
// the dispatcher, and closes all subscriptions. Safe to call once the
// process is going down; later publishes become no-ops.
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.fanOut(outbound{event: models.Event{
			Type:      models.EventServerShutdown,
			Timestamp: time.Now().Unix(),
		}})

		close(h.done)
		<-h.exited

		h.mu.Lock()
		for id := range h.clients {
			h.removeLocked(id)
		}
		h.mu.Unlock()

		slog.Info("Broadcast hub shut down")
	})
}
