package middleware

import (
	"crypto/subtle"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"signage-server/services"
)

const (
	APIKeyHeaderName  = "X-API-Key"
	SessionCookieName = "session"

	// Locals keys set for downstream handlers
	LocalAuthMethod   = "auth_method"
	LocalSessionToken = "session_token"

	AuthMethodSession = "session"
	AuthMethodAPIKey  = "api_key"
)

// RequireAuth admits requests carrying a valid session token (header or
// cookie) or the configured static API key. Displays never pass through
// here; their endpoints are intentionally unauthenticated.
func RequireAuth(sessions *services.SessionStore, apiKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if supplied := c.Get(APIKeyHeaderName); supplied != "" && apiKey != "" {
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(apiKey)) == 1 {
				c.Locals(LocalAuthMethod, AuthMethodAPIKey)
				return c.Next()
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "auth_required",
				"message": "Invalid API key",
			})
		}

		token := c.Get(services.SessionHeaderName)
		if token == "" {
			token = c.Cookies(SessionCookieName)
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "auth_required",
				"message": "Authentication required",
			})
		}

		session := sessions.Validate(token)
		if session == nil {
			slog.Info("Rejected stale session", "token", services.TokenPrefix(token))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "auth_required",
				"message": "Invalid or expired session",
			})
		}

		sessions.Touch(token)
		c.Locals(LocalAuthMethod, AuthMethodSession)
		c.Locals(LocalSessionToken, token)
		return c.Next()
	}
}

// RequireCSRF verifies the per-session CSRF token on state-changing
// verbs. Requests authenticated by the static API key carry no
// browser-held session and bypass the check.
func RequireCSRF(csrf *services.CSRFManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		if c.Locals(LocalAuthMethod) != AuthMethodSession {
			return c.Next()
		}

		sessionToken, _ := c.Locals(LocalSessionToken).(string)
		if !csrf.Verify(sessionToken, c.Get(services.CSRFHeaderName)) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "CSRF token missing or invalid",
			})
		}
		return c.Next()
	}
}
