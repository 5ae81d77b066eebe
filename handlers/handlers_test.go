package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"signage-server/config"
	"signage-server/middleware"
	"signage-server/models"
	"signage-server/services"
)

// newTestApp wires a fiber app with the same route layout as main,
// backed by in-memory services and a no-op persistence flusher.
func newTestApp(t *testing.T) (*fiber.App, *App) {
	t.Helper()

	cfg := &config.Config{
		AdminPassword:    "test-admin-secret",
		APIKey:           "test-api-key",
		HeartbeatTimeout: time.Minute,
		SessionTTL:       time.Hour,
		CSRFTTL:          time.Hour,
		PingInterval:     30 * time.Second,
	}

	sessions := services.NewSessionStore(cfg.SessionTTL)
	csrf := services.NewCSRFManager(cfg.CSRFTTL)
	t.Cleanup(csrf.Close)

	hub := services.NewHub()
	t.Cleanup(hub.Shutdown)

	registry := services.NewDisplayRegistry(cfg.HeartbeatTimeout)
	registry.SetHooks(func() {
		hub.Publish(models.EventDisplaysUpdate, registry.Summarize())
	}, func() {})

	app := &App{
		Config:   cfg,
		Sessions: sessions,
		CSRF:     csrf,
		Registry: registry,
		Hub:      hub,
		Settings: services.NewSettingsStore(),
		Alerts:   services.NewAlertState(),
		Audit:    &services.AuditLogger{},
		SettingsFlusher: services.NewFlusher("settings", time.Hour, func(context.Context) error {
			return nil
		}),
		StartedAt: time.Now(),
	}

	srv := fiber.New()
	requireAuth := middleware.RequireAuth(sessions, cfg.APIKey)
	requireCSRF := middleware.RequireCSRF(csrf)

	auth := srv.Group("/auth")
	auth.Post("/login", app.Login)
	auth.Post("/logout", app.Logout)
	auth.Get("/check", requireAuth, app.CheckSession)

	srv.Get("/health", app.Health)

	api := srv.Group("/api")
	api.Get("/status", app.Status)
	api.Post("/heartbeat", app.Heartbeat)

	displays := api.Group("/displays", requireAuth, requireCSRF)
	displays.Get("/", app.ListDisplays)
	displays.Delete("/offline", app.DeleteOfflineDisplays)
	displays.Put("/:id", app.UpdateDisplay)
	displays.Delete("/:id", app.DeleteDisplay)
	displays.Post("/:id/command", app.SendCommand)

	settingsGroup := api.Group("/settings", requireAuth, requireCSRF)
	settingsGroup.Get("/", app.GetSettings)
	settingsGroup.Put("/", app.UpdateSettings)

	api.Post("/alert", requireAuth, requireCSRF, app.RaiseAlert)
	api.Delete("/alert", requireAuth, requireCSRF, app.CancelAlert)
	api.Post("/dismissal", requireAuth, requireCSRF, app.UpdateDismissal)
	api.Delete("/dismissal", requireAuth, requireCSRF, app.ClearDismissal)

	return srv, app
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

// loginAs performs a real login and returns the session and CSRF tokens.
func loginAs(t *testing.T, srv *fiber.App) (sessionToken, csrfToken string) {
	t.Helper()

	resp, err := srv.Test(jsonRequest("POST", "/auth/login", map[string]string{
		"password": "test-admin-secret",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	sessionToken, _ = body["token"].(string)
	csrfToken, _ = body["csrfToken"].(string)
	require.NotEmpty(t, sessionToken)
	require.NotEmpty(t, csrfToken)
	return sessionToken, csrfToken
}

func asAdmin(req *http.Request, sessionToken, csrfToken string) *http.Request {
	req.Header.Set(services.SessionHeaderName, sessionToken)
	req.Header.Set(services.CSRFHeaderName, csrfToken)
	return req
}

// recvEvent reads one decoded broadcast event from a subscribed client.
func recvEvent(t *testing.T, client *services.Client) models.Event {
	t.Helper()
	select {
	case data, ok := <-client.Send:
		require.True(t, ok, "send channel closed")
		var ev models.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.Event{}
	}
}
