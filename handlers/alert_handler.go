package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"signage-server/models"
)

type AlertRequest struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
}

// RaiseAlert activates an emergency alert and pushes it to every
// display. The active alert is also included in the initial snapshot
// for displays that connect later.
func (a *App) RaiseAlert(c *fiber.Ctx) error {
	var req AlertRequest
	if err := c.BodyParser(&req); err != nil || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_error",
			"message": "Alert message is required",
		})
	}

	alert := a.Alerts.Raise(req.Message, req.Level)
	a.Hub.Publish(models.EventEmergencyAlert, alert)

	a.Audit.Record("admin", "alert_raise", req.Message, c.IP())
	return c.JSON(fiber.Map{
		"success": true,
		"alert":   alert,
	})
}

// CancelAlert clears the active alert and notifies every display.
// Idempotent.
func (a *App) CancelAlert(c *fiber.Ctx) error {
	cancelled := a.Alerts.Cancel()
	a.Hub.Publish(models.EventEmergencyCancel, nil)

	a.Audit.Record("admin", "alert_cancel", "", c.IP())
	return c.JSON(fiber.Map{
		"success":   true,
		"cancelled": cancelled,
	})
}

// UpdateDismissal pushes an updated dismissal roster to every display.
// The payload is opaque to the core; the roster editor owns its shape.
func (a *App) UpdateDismissal(c *fiber.Ctx) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(c.Body(), &payload); err != nil || payload == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_error",
			"message": "Dismissal payload must be a JSON object",
		})
	}

	a.Hub.Publish(models.EventDismissalUpdate, payload)

	a.Audit.Record("admin", "dismissal_update", "", c.IP())
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Dismissal update sent",
	})
}

// ClearDismissal tells every display to clear its dismissal view.
func (a *App) ClearDismissal(c *fiber.Ctx) error {
	a.Hub.Publish(models.EventDismissalClear, nil)

	a.Audit.Record("admin", "dismissal_clear", "", c.IP())
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Dismissal cleared",
	})
}
