package handlers

import (
	"time"

	"signage-server/config"
	"signage-server/services"
)

// App bundles the core components the HTTP and stream handlers operate
// on. Everything stateful lives behind the services; handlers only
// translate requests and responses.
type App struct {
	Config   *config.Config
	Sessions *services.SessionStore
	CSRF     *services.CSRFManager
	Registry *services.DisplayRegistry
	Hub      *services.Hub
	Settings *services.SettingsStore
	Alerts   *services.AlertState
	Audit    *services.AuditLogger

	SettingsFlusher *services.Flusher

	StartedAt time.Time
}
