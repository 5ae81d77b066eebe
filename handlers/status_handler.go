package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Health is a liveness probe.
func (a *App) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "signage-server",
	})
}

// Status exposes operational counts for monitoring. Read-only and
// unauthenticated.
func (a *App) Status(c *fiber.Ctx) error {
	online, offline := a.Registry.Counts()

	return c.JSON(fiber.Map{
		"success":          true,
		"connectedClients": a.Hub.ClientCount(),
		"activeSessions":   a.Sessions.Count(),
		"displaysOnline":   online,
		"displaysOffline":  offline,
		"uptimeSeconds":    int(time.Since(a.StartedAt).Seconds()),
	})
}
