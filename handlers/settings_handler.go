package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"signage-server/models"
)

// GetSettings returns the current configuration document.
func (a *App) GetSettings(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":  true,
		"settings": a.Settings.Get(),
	})
}

// UpdateSettings replaces the configuration document, schedules a
// coalesced persistence write, and pushes a settings_update event to
// every connected display.
func (a *App) UpdateSettings(c *fiber.Ctx) error {
	var settings models.Settings
	if err := json.Unmarshal(c.Body(), &settings); err != nil || settings == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_error",
			"message": "Settings must be a JSON object",
		})
	}

	a.Settings.Replace(settings)
	a.SettingsFlusher.Schedule()
	a.Hub.Publish(models.EventSettingsUpdate, settings)

	a.Audit.Record("admin", "settings_update", "", c.IP())
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Settings updated",
	})
}
