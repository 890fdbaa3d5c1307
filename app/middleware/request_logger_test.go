package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	log, hook := test.NewNullLogger()

	app := fiber.New()
	app.Use(RequestLogger(log, func(c fiber.Ctx) bool { return c.Path() == "/api/v1/health" }))
	app.Get("/r/:partner", func(c fiber.Ctx) error {
		return c.Redirect().Status(fiber.StatusFound).To("https://vendor.example.net/hop")
	})
	app.Get("/missing", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/r/XYZ", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "/r/:partner", entry.Data["route"])
	assert.Equal(t, fiber.StatusFound, entry.Data["status"])
	assert.Equal(t, "https://vendor.example.net/hop", entry.Data["location"])

	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	hook.Reset()
	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	assert.Empty(t, hook.AllEntries())
}

func TestRouteLabel_Unmatched(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/no/such/route", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
