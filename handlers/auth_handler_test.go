package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"signage-server/services"
)

func TestLoginIssuesSessionAndCSRFToken(t *testing.T) {
	srv, app := newTestApp(t)

	resp, err := srv.Test(jsonRequest("POST", "/auth/login", map[string]string{
		"password": "test-admin-secret",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, true, body["success"])
	token, _ := body["token"].(string)
	csrfToken, _ := body["csrfToken"].(string)
	require.Len(t, token, 64)
	require.Len(t, csrfToken, 64)
	require.NotEmpty(t, body["expiresAt"])

	require.NotNil(t, app.Sessions.Validate(token))

	// a session cookie is set alongside the header token
	var cookie string
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			cookie = c.Value
		}
	}
	require.Equal(t, token, cookie)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv, app := newTestApp(t)

	resp, err := srv.Test(jsonRequest("POST", "/auth/login", map[string]string{
		"password": "nope",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 0, app.Sessions.Count())
}

func TestLoginRejectsMissingPassword(t *testing.T) {
	srv, _ := newTestApp(t)

	resp, err := srv.Test(jsonRequest("POST", "/auth/login", map[string]string{}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = srv.Test(httptest.NewRequest("POST", "/auth/login", strings.NewReader("{not json")))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	srv, app := newTestApp(t)
	token, _ := loginAs(t, srv)

	req := jsonRequest("POST", "/auth/logout", nil)
	req.Header.Set(services.SessionHeaderName, token)
	resp, err := srv.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Nil(t, app.Sessions.Validate(token))

	// logging out again is a no-op, not an error
	req = jsonRequest("POST", "/auth/logout", nil)
	req.Header.Set(services.SessionHeaderName, token)
	resp, err = srv.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCheckSession(t *testing.T) {
	srv, _ := newTestApp(t)
	token, _ := loginAs(t, srv)

	req := httptest.NewRequest("GET", "/auth/check", nil)
	req.Header.Set(services.SessionHeaderName, token)
	resp, err := srv.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = srv.Test(httptest.NewRequest("GET", "/auth/check", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
