package handlers

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"signage-server/models"
	"signage-server/services"
)

const (
	streamWriteWait = 10 * time.Second
	streamReadLimit = 4 * 1024
	streamPongSlack = 10 * time.Second
)

// streamMessage is an inbound frame from a display over its stream
// connection. Displays may heartbeat in-band instead of using the HTTP
// endpoint.
type streamMessage struct {
	Type             string `json:"type"`
	CurrentPage      string `json:"currentPage,omitempty"`
	ScreenResolution string `json:"screenResolution,omitempty"`
}

// StreamUpgrade guards the stream endpoint and captures request-scoped
// values the WebSocket handler needs after the upgrade.
func (a *App) StreamUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("client_ip", c.IP())
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleStream owns one display stream connection for its lifetime.
// On open it registers the display as online, subscribes it to the
// broadcast hub, and sends the initial snapshot; it then pumps events
// until the client disconnects, a write fails, or the server shuts
// down. Unsubscription is deferred, never left to a callback.
func (a *App) HandleStream(c *websocket.Conn) {
	ip, _ := c.Locals("client_ip").(string)

	display, _ := a.Registry.RegisterOrUpdate(c.Query("displayId"), services.HeartbeatMeta{
		Name:             c.Query("name"),
		IPAddress:        ip,
		ScreenResolution: c.Query("resolution"),
	})

	client := a.Hub.Subscribe(display.ID)
	defer func() {
		a.Hub.Unsubscribe(client.ID)
		// The stream path flips the display offline as soon as its last
		// connection closes; the heartbeat path is reaped on timeout.
		if a.Hub.ConnectionsFor(display.ID) == 0 {
			a.Registry.MarkOffline(display.ID)
		}
	}()

	if err := a.sendInitial(c, display.ID); err != nil {
		slog.Error("Failed to send initial snapshot", "displayID", display.ID, "error", err)
		c.Close()
		return
	}

	go a.streamWriter(c, client)
	a.streamReader(c, client, display.ID)
}

// sendInitial writes the snapshot event a display renders from until
// the first update arrives.
func (a *App) sendInitial(c *websocket.Conn, displayID string) error {
	initial := models.InitialEvent{
		Type:      models.EventInitial,
		DisplayID: displayID,
		Settings:  a.Settings.Get(),
		Alert:     a.Alerts.Active(),
		Timestamp: time.Now().Unix(),
	}

	data, err := json.Marshal(initial)
	if err != nil {
		return err
	}

	c.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return c.WriteMessage(websocket.TextMessage, data)
}

// streamWriter forwards queued broadcast events to the peer and sends
// liveness pings on a fixed interval so proxies keep the connection
// open and dead peers surface promptly.
func (a *App) streamWriter(c *websocket.Conn, client *services.Client) {
	ticker := time.NewTicker(a.Config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			c.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				// Unsubscribed or hub shut down
				c.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Info("Stream write failed", "displayID", client.DisplayID, "error", err)
				return
			}

		case <-ticker.C:
			c.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// streamReader consumes inbound frames. Displays may send in-band
// heartbeats with their current page; anything else is ignored after a
// log line.
func (a *App) streamReader(c *websocket.Conn, client *services.Client, displayID string) {
	defer c.Close()

	pongWait := 2*a.Config.PingInterval + streamPongSlack

	c.SetReadLimit(streamReadLimit)
	c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Info("Stream read error", "displayID", displayID, "error", err)
			}
			return
		}
		c.SetReadDeadline(time.Now().Add(pongWait))

		var msg streamMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Warn("Malformed stream message", "displayID", displayID, "error", err)
			continue
		}

		switch msg.Type {
		case "heartbeat":
			a.Registry.RegisterOrUpdate(displayID, services.HeartbeatMeta{
				CurrentPage:      msg.CurrentPage,
				ScreenResolution: msg.ScreenResolution,
			})

		case "ping":
			if data, err := json.Marshal(map[string]string{"type": "pong"}); err == nil {
				a.Hub.SendToClient(client.ID, data)
			}

		default:
			slog.Warn("Unknown stream message type", "type", msg.Type, "displayID", displayID)
		}
	}
}
