package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"signage-server/models"
	"signage-server/services"
)

type HeartbeatRequest struct {
	DisplayID        string `json:"displayId"`
	Name             string `json:"name,omitempty"`
	Location         string `json:"location,omitempty"`
	CurrentPage      string `json:"currentPage,omitempty"`
	ScreenResolution string `json:"screenResolution,omitempty"`
}

// Heartbeat is the periodic liveness ping from a display. Intentionally
// unauthenticated: displays must be able to self-register without
// credentials. An unknown id creates a fresh record, which also covers
// a heartbeat racing an admin delete.
func (a *App) Heartbeat(c *fiber.Ctx) error {
	var req HeartbeatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_error",
			"message": "Invalid heartbeat payload",
		})
	}

	display, created := a.Registry.RegisterOrUpdate(req.DisplayID, services.HeartbeatMeta{
		Name:             req.Name,
		Location:         req.Location,
		IPAddress:        c.IP(),
		ScreenResolution: req.ScreenResolution,
		CurrentPage:      req.CurrentPage,
	})

	return c.JSON(fiber.Map{
		"success":    true,
		"displayId":  display.ID,
		"registered": created,
	})
}

// ListDisplays returns the sorted roster: online first, then name.
func (a *App) ListDisplays(c *fiber.Ctx) error {
	online, offline := a.Registry.Counts()
	return c.JSON(fiber.Map{
		"success":  true,
		"displays": a.Registry.Summarize(),
		"online":   online,
		"offline":  offline,
	})
}

type DisplayEditRequest struct {
	Name     *string   `json:"name"`
	Location *string   `json:"location"`
	Tags     *[]string `json:"tags"`
}

// UpdateDisplay applies an explicit admin edit to display metadata.
func (a *App) UpdateDisplay(c *fiber.Ctx) error {
	id := c.Params("id")

	var req DisplayEditRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_error",
			"message": "Invalid request body",
		})
	}

	display, ok := a.Registry.UpdateMeta(id, services.DisplayEdit{
		Name:     req.Name,
		Location: req.Location,
		Tags:     req.Tags,
	})
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "Unknown display id",
		})
	}

	a.Audit.Record("admin", "display_update", id, c.IP())
	return c.JSON(fiber.Map{
		"success": true,
		"display": display,
	})
}

// DeleteDisplay removes one display. Displays are only ever deleted by
// explicit admin action.
func (a *App) DeleteDisplay(c *fiber.Ctx) error {
	id := c.Params("id")

	if !a.Registry.Delete(id) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "Unknown display id",
		})
	}

	a.Audit.Record("admin", "display_delete", id, c.IP())
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Display deleted",
	})
}

// DeleteOfflineDisplays removes every offline display in one atomic
// step.
func (a *App) DeleteOfflineDisplays(c *fiber.Ctx) error {
	removed := a.Registry.DeleteOffline()

	a.Audit.Record("admin", "display_delete_offline", fmt.Sprintf("removed=%d", removed), c.IP())
	return c.JSON(fiber.Map{
		"success": true,
		"removed": removed,
	})
}

type CommandRequest struct {
	Command string                 `json:"command"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// SendCommand pushes a command event to a single display's open stream
// connections.
func (a *App) SendCommand(c *fiber.Ctx) error {
	id := c.Params("id")

	var req CommandRequest
	if err := c.BodyParser(&req); err != nil || req.Command == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_error",
			"message": "Command is required",
		})
	}

	if _, ok := a.Registry.Get(id); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "Unknown display id",
		})
	}

	a.Hub.PublishTo(id, models.EventCommand, fiber.Map{
		"command": req.Command,
		"payload": req.Payload,
	})

	a.Audit.Record("admin", "display_command", fmt.Sprintf("%s: %s", id, req.Command), c.IP())
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Command sent",
	})
}
