package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockpilot/management-api/internal/auth"
	"github.com/dockpilot/management-api/internal/models"
)

func newAuthTestApp(t *testing.T, tokens *auth.TokenService) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mw := NewAuthMiddleware(tokens, logger)

	app := fiber.New()
	app.Get("/whoami", mw.Authenticate(), func(c *fiber.Ctx) error {
		identity, ok := GetIdentity(c)
		require.True(t, ok)
		return c.JSON(identity)
	})
	app.Get("/admin-only", mw.Authenticate(), mw.RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	return app
}

func TestAuthenticateValidToken(t *testing.T) {
	tokens := auth.NewTokenService([]byte("secret"), time.Hour)
	app := newAuthTestApp(t, tokens)

	token, err := tokens.Issue("alice", models.RoleUser)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthenticateRejections(t *testing.T) {
	tokens := auth.NewTokenService([]byte("secret"), time.Hour)
	app := newAuthTestApp(t, tokens)

	otherToken, err := auth.NewTokenService([]byte("other-secret"), time.Hour).Issue("alice", models.RoleUser)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Token abc"},
		{"empty token", "Bearer "},
		{"not a jwt", "Bearer garbage"},
		{"wrong key", "Bearer " + otherToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := auth.NewTokenService([]byte("secret"), time.Hour)
	app := newAuthTestApp(t, tokens)

	cases := []struct {
		role string
		want int
	}{
		{models.RoleAdmin, fiber.StatusOK},
		{models.RoleUser, fiber.StatusForbidden},
		{"Admin", fiber.StatusForbidden}, // exact match, case matters
		{"administrator", fiber.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			token, err := tokens.Issue("someone", tc.role)
			require.NoError(t, err)

			req := httptest.NewRequest("GET", "/admin-only", nil)
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cb := NewCircuitBreaker("test", logger)
	failing := func() error { return assert.AnError }

	for i := 0; i < 5; i++ {
		_ = cb.Execute(nil, failing)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(nil, func() error { return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
}
