package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOriginApp(cfg OriginReflectConfig) *fiber.App {
	app := fiber.New()
	app.Use(OriginReflect(cfg))
	app.Post("/impression", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func TestOriginReflect(t *testing.T) {
	tests := []struct {
		name        string
		cfg         OriginReflectConfig
		headers     map[string]string
		wantOrigin  string
		credentials bool
	}{
		{
			name:        "origin header is echoed",
			headers:     map[string]string{fiber.HeaderOrigin: "https://publisher.example.org"},
			wantOrigin:  "https://publisher.example.org",
			credentials: true,
		},
		{
			name:        "referer scheme and host when origin is absent",
			headers:     map[string]string{fiber.HeaderReferer: "https://blog.example.org:8443/posts/1?x=y"},
			wantOrigin:  "https://blog.example.org:8443",
			credentials: true,
		},
		{
			name: "null origin falls back to referer",
			headers: map[string]string{
				fiber.HeaderOrigin:  "null",
				fiber.HeaderReferer: "http://news.example.org/a",
			},
			wantOrigin:  "http://news.example.org",
			credentials: true,
		},
		{
			name:    "no origin signal",
			headers: map[string]string{},
		},
		{
			name:        "allowlisted origin",
			cfg:         OriginReflectConfig{AllowedOrigins: []string{"https://Publisher.example.org/"}},
			headers:     map[string]string{fiber.HeaderOrigin: "https://publisher.example.org"},
			wantOrigin:  "https://publisher.example.org",
			credentials: true,
		},
		{
			name:    "origin outside allowlist",
			cfg:     OriginReflectConfig{AllowedOrigins: []string{"https://publisher.example.org"}},
			headers: map[string]string{fiber.HeaderOrigin: "https://evil.example.com"},
		},
		{
			name:        "wildcard allowlist",
			cfg:         OriginReflectConfig{AllowedOrigins: []string{"*"}},
			headers:     map[string]string{fiber.HeaderOrigin: "https://any.example.com"},
			wantOrigin:  "https://any.example.com",
			credentials: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newOriginApp(tt.cfg)
			req := httptest.NewRequest(http.MethodPost, "/impression", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
			assert.Equal(t, tt.wantOrigin, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
			if tt.credentials {
				assert.Equal(t, "true", resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))
			} else {
				assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))
			}
			assert.Contains(t, resp.Header.Get(fiber.HeaderVary), fiber.HeaderOrigin)
		})
	}
}

func TestOriginReflect_Preflight(t *testing.T) {
	app := newOriginApp(OriginReflectConfig{MaxAge: 600})

	req := httptest.NewRequest(http.MethodOptions, "/impression", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://publisher.example.org")
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodPost)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://publisher.example.org", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "POST, OPTIONS", resp.Header.Get(fiber.HeaderAccessControlAllowMethods))
	assert.Equal(t, "Content-Type, Accept", resp.Header.Get(fiber.HeaderAccessControlAllowHeaders))
	assert.Equal(t, "600", resp.Header.Get(fiber.HeaderAccessControlMaxAge))
}
