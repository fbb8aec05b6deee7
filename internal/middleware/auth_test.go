package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/closo/backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roleGuardApp(guard fiber.Handler, role models.UserRole) *fiber.App {
	app := fiber.New()
	app.Get("/guarded", func(c *fiber.Ctx) error {
		c.Locals("role", role)
		return c.Next()
	}, guard, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestModeratorOrAdmin(t *testing.T) {
	cases := []struct {
		name string
		role models.UserRole
		want int
	}{
		{"member blocked", models.UserRoleMember, fiber.StatusForbidden},
		{"moderator allowed", models.UserRoleModerator, fiber.StatusOK},
		{"admin allowed", models.UserRoleAdmin, fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := roleGuardApp(ModeratorOrAdmin(), tc.role)
			resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestAdminOnlyBlocksModerator(t *testing.T) {
	app := roleGuardApp(AdminOnly(), models.UserRoleModerator)
	resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestIsPlatformAdmin(t *testing.T) {
	check := func(role models.UserRole) bool {
		var admin bool
		app := fiber.New()
		app.Get("/check", func(c *fiber.Ctx) error {
			c.Locals("role", role)
			admin = IsPlatformAdmin(c)
			return c.SendStatus(fiber.StatusOK)
		})
		resp, err := app.Test(httptest.NewRequest("GET", "/check", nil))
		require.NoError(t, err)
		resp.Body.Close()
		return admin
	}

	assert.False(t, check(models.UserRoleMember))
	assert.False(t, check(models.UserRoleModerator))
	assert.True(t, check(models.UserRoleAdmin))
}
