package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"signage-server/middleware"
	"signage-server/services"
)

type LoginRequest struct {
	Password string `json:"password"`
}

// Login verifies the admin credential and issues a session plus its
// CSRF token. The credential check is constant-time; failures are
// logged without the supplied secret.
func (a *App) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_error",
			"message": "Invalid request body",
		})
	}

	if req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_error",
			"message": "Password is required",
		})
	}

	if !services.VerifyAdminSecret(a.Config.AdminPassword, req.Password) {
		slog.Info("Invalid admin login attempt", "ip", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "auth_required",
			"message": "Invalid credentials",
		})
	}

	session, err := a.Sessions.Create(c.IP())
	if err != nil {
		slog.Error("Failed to create session", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal",
			"message": "Failed to create session",
		})
	}

	csrfToken, err := a.CSRF.Issue(session.Token)
	if err != nil {
		a.Sessions.Logout(session.Token)
		slog.Error("Failed to issue CSRF token", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal",
			"message": "Failed to create session",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.Token,
		Expires:  session.CreatedAt.Add(a.Config.SessionTTL),
		HTTPOnly: true,
		SameSite: "Lax",
		Path:     "/",
	})

	a.Audit.Record("admin", "login", "", c.IP())

	return c.JSON(fiber.Map{
		"success":   true,
		"token":     session.Token,
		"csrfToken": csrfToken,
		"expiresAt": session.CreatedAt.Add(a.Config.SessionTTL).Format(time.RFC3339),
	})
}

// Logout destroys the session. Idempotent: unknown or already-removed
// tokens still get a success response.
func (a *App) Logout(c *fiber.Ctx) error {
	token := c.Get(services.SessionHeaderName)
	if token == "" {
		token = c.Cookies(middleware.SessionCookieName)
	}

	if token != "" {
		a.Sessions.Logout(token)
		a.CSRF.Revoke(token)
		a.Audit.Record("admin", "logout", "", c.IP())
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Path:     "/",
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out",
	})
}

// CheckSession reports whether the caller is authenticated. Runs behind
// RequireAuth, so reaching it means yes.
func (a *App) CheckSession(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":       true,
		"authenticated": true,
		"authMethod":    c.Locals(middleware.LocalAuthMethod),
	})
}
