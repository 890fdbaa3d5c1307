// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/amirphl/hopgate/app/dto"
	"github.com/amirphl/hopgate/app/handlers"
	"github.com/amirphl/hopgate/app/middleware"
	"github.com/amirphl/hopgate/config"
	"github.com/amirphl/hopgate/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown() error
	GetApp() *fiber.App
}

// Handlers groups the endpoint handlers the router mounts
type Handlers struct {
	Redirect   handlers.RedirectHandlerInterface
	Impression handlers.ImpressionHandlerInterface
	Health     *handlers.HealthHandler
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	cfg      *config.ProductionConfig
	log      logrus.FieldLogger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, cfg *config.ProductionConfig, log logrus.FieldLogger) Router {
	fiberCfg := fiber.Config{
		AppName:      "hopgate",
		ServerHeader: "hopgate",
		ErrorHandler: errorHandler(log),
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	}
	if len(cfg.Server.TrustedProxies) > 0 {
		fiberCfg.TrustProxy = true
		fiberCfg.TrustProxyConfig = fiber.TrustProxyConfig{Proxies: cfg.Server.TrustedProxies}
	}

	return &FiberRouter{
		app:      fiber.New(fiberCfg),
		handlers: h,
		cfg:      cfg,
		log:      log,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	originPolicy := middleware.OriginReflect(middleware.OriginReflectConfig{
		AllowedOrigins: r.cfg.Security.AllowedOrigins,
		MaxAge:         r.cfg.Security.CORSMaxAge,
	})

	// Click redirects; partner and offer may also arrive as query parameters
	redirects := r.app.Group("/r", originPolicy)
	redirects.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.RedirectRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		LimitReached: func(c fiber.Ctx) error {
			return handlers.ErrorResponse(c, fiber.StatusTooManyRequests, "Too many requests", "RATE_LIMIT_EXCEEDED", nil)
		},
	}))
	redirects.Get("/", r.handlers.Redirect.Redirect)
	redirects.Get("/:partner", r.handlers.Redirect.Redirect)
	redirects.Get("/:partner/:offer", r.handlers.Redirect.Redirect)

	// Impression pixel
	impressions := r.app.Group("/impression", originPolicy)
	impressions.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.ImpressionRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		LimitReached: func(c fiber.Ctx) error {
			return handlers.ErrorResponse(c, fiber.StatusTooManyRequests, "Too many requests", "RATE_LIMIT_EXCEEDED", nil)
		},
	}))
	impressions.Post("/", r.handlers.Impression.Record)

	api := r.app.Group("/api/v1")
	api.Get("/health", r.handlers.Health.Health)

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Not found handler
	r.app.Use(r.notFoundHandler)
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: fiber.HeaderXRequestID,
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Recovery middleware with structured panic logging
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.log.WithFields(logrus.Fields{
				"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
				"event":      "panic",
				"error":      e,
				"path":       c.Path(),
				"method":     c.Method(),
				"ip":         c.IP(),
			}).Error("panic recovered")
		},
	}))

	r.app.Use(middleware.Metrics())

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(middleware.RequestLogger(r.log, func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health" || c.Path() == r.cfg.Metrics.Path
		}))
	}

	// Security headers; the pixel and redirects are embedded cross-site
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000, // 1 year
		ReferrerPolicy:            "no-referrer-when-downgrade",
		CrossOriginResourcePolicy: "cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.log.WithField("address", address).Info("starting server")
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting connections and waits for in-flight requests
func (r *FiberRouter) Shutdown() error {
	return r.app.ShutdownWithTimeout(r.cfg.Server.ShutdownTimeout)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
			},
		},
	})
}

// errorHandler renders errors that escaped the handlers
func errorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "An internal server error occurred"
		errCode := "INTERNAL_ERROR"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
			errCode = "HTTP_ERROR"
		}

		requestID := c.GetRespHeader(fiber.HeaderXRequestID)
		if code >= fiber.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{"status": code, "request_id": requestID}).Error("unhandled error")
		}

		return c.Status(code).JSON(dto.APIResponse{
			Success: false,
			Message: message,
			Error: dto.ErrorDetail{
				Code: errCode,
				Details: fiber.Map{
					"timestamp":  utils.UTCNow().Unix(),
					"request_id": requestID,
				},
			},
		})
	}
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
