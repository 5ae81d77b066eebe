package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"signage-server/models"
	"signage-server/services"
)

func TestGetSettings(t *testing.T) {
	srv, app := newTestApp(t)
	app.Settings.Seed(models.Settings{"theme": "dark"})
	token, _ := loginAs(t, srv)

	req := httptest.NewRequest("GET", "/api/settings/", nil)
	req.Header.Set(services.SessionHeaderName, token)
	resp, err := srv.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	settings, _ := body["settings"].(map[string]interface{})
	require.Equal(t, "dark", settings["theme"])
}

func TestUpdateSettingsBroadcastsAndPersists(t *testing.T) {
	srv, app := newTestApp(t)
	token, csrf := loginAs(t, srv)
	client := app.Hub.Subscribe("d1")

	resp, err := srv.Test(asAdmin(jsonRequest("PUT", "/api/settings/", map[string]interface{}{
		"theme":           "light",
		"rotationSeconds": 15,
	}), token, csrf))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// in-memory store replaced
	require.Equal(t, "light", app.Settings.Get()["theme"])

	// persistence write scheduled, not yet executed
	require.True(t, app.SettingsFlusher.Pending())

	// connected displays are notified
	ev := recvEvent(t, client)
	require.Equal(t, models.EventSettingsUpdate, ev.Type)
	payload, _ := ev.Payload.(map[string]interface{})
	require.Equal(t, "light", payload["theme"])
}

func TestUpdateSettingsRejectsNonObject(t *testing.T) {
	srv, _ := newTestApp(t)
	token, csrf := loginAs(t, srv)

	for _, raw := range []string{"null", `"a string"`, "[1,2]", "{broken"} {
		req := httptest.NewRequest("PUT", "/api/settings/", strings.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		resp, err := srv.Test(asAdmin(req, token, csrf))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "payload %s", raw)
	}
}

func TestUpdateSettingsWithoutCSRFIsForbidden(t *testing.T) {
	srv, _ := newTestApp(t)
	token, _ := loginAs(t, srv)

	req := jsonRequest("PUT", "/api/settings/", map[string]interface{}{"theme": "x"})
	req.Header.Set(services.SessionHeaderName, token)
	resp, err := srv.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAlertLifecycle(t *testing.T) {
	srv, app := newTestApp(t)
	token, csrf := loginAs(t, srv)
	client := app.Hub.Subscribe("d1")

	resp, err := srv.Test(asAdmin(jsonRequest("POST", "/api/alert", map[string]string{
		"message": "Evacuate via the north exit",
	}), token, csrf))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	active := app.Alerts.Active()
	require.NotNil(t, active)
	require.Equal(t, "critical", active.Level)

	ev := recvEvent(t, client)
	require.Equal(t, models.EventEmergencyAlert, ev.Type)

	resp, err = srv.Test(asAdmin(jsonRequest("DELETE", "/api/alert", nil), token, csrf))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Nil(t, app.Alerts.Active())

	ev = recvEvent(t, client)
	require.Equal(t, models.EventEmergencyCancel, ev.Type)

	// cancelling again succeeds but reports nothing was active
	resp, err = srv.Test(asAdmin(jsonRequest("DELETE", "/api/alert", nil), token, csrf))
	require.NoError(t, err)
	body := decodeBody(t, resp)
	require.Equal(t, false, body["cancelled"])
}

func TestRaiseAlertRequiresMessage(t *testing.T) {
	srv, _ := newTestApp(t)
	token, csrf := loginAs(t, srv)

	resp, err := srv.Test(asAdmin(jsonRequest("POST", "/api/alert", map[string]string{}), token, csrf))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDismissalBroadcast(t *testing.T) {
	srv, app := newTestApp(t)
	token, csrf := loginAs(t, srv)
	client := app.Hub.Subscribe("d1")

	resp, err := srv.Test(asAdmin(jsonRequest("POST", "/api/dismissal", map[string]interface{}{
		"grades": []string{"3A", "4B"},
	}), token, csrf))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	ev := recvEvent(t, client)
	require.Equal(t, models.EventDismissalUpdate, ev.Type)
	var grades []interface{}
	if payload, ok := ev.Payload.(map[string]interface{}); ok {
		grades, _ = payload["grades"].([]interface{})
	}
	require.Len(t, grades, 2)

	resp, err = srv.Test(asAdmin(jsonRequest("DELETE", "/api/dismissal", nil), token, csrf))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	ev = recvEvent(t, client)
	require.Equal(t, models.EventDismissalClear, ev.Type)
}

func TestEventEnvelopeShape(t *testing.T) {
	_, app := newTestApp(t)
	client := app.Hub.Subscribe("d1")

	app.Hub.Publish(models.EventSettingsUpdate, models.Settings{"k": "v"})

	data := <-client.Send
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &envelope))
	require.Contains(t, envelope, "type")
	require.Contains(t, envelope, "timestamp")
	require.Contains(t, envelope, "payload")
}
