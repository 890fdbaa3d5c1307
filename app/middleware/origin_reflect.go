package middleware

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// OriginReflectConfig controls which browser origins are echoed back
type OriginReflectConfig struct {
	// AllowedOrigins limits reflection to these origins ("scheme://host[:port]").
	// Empty or containing "*" reflects any origin.
	AllowedOrigins []string
	// MaxAge is sent on preflight responses when positive
	MaxAge int
}

// OriginReflect echoes the caller's origin so cross-site embeds can call the
// tracking endpoints with credentials. The origin comes from the Origin header,
// or from the Referer's scheme and host when Origin is absent. OPTIONS preflights
// are answered here with 204.
func OriginReflect(cfg OriginReflectConfig) fiber.Handler {
	allowAll := len(cfg.AllowedOrigins) == 0
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
			continue
		}
		allowed[strings.ToLower(strings.TrimSuffix(o, "/"))] = struct{}{}
	}

	return func(c fiber.Ctx) error {
		c.Vary(fiber.HeaderOrigin)

		origin := requestOrigin(c)
		if origin != "" {
			_, ok := allowed[strings.ToLower(origin)]
			if allowAll || ok {
				c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
				c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
			}
		}

		if c.Method() == fiber.MethodOptions {
			c.Set(fiber.HeaderAccessControlAllowMethods, "POST, OPTIONS")
			c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type, Accept")
			if cfg.MaxAge > 0 {
				c.Set(fiber.HeaderAccessControlMaxAge, strconv.Itoa(cfg.MaxAge))
			}
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

func requestOrigin(c fiber.Ctx) string {
	if origin := strings.TrimSpace(c.Get(fiber.HeaderOrigin)); origin != "" && origin != "null" {
		return origin
	}
	referer := strings.TrimSpace(c.Get(fiber.HeaderReferer))
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
