package server

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	redisstore "github.com/gofiber/storage/redis/v3"
	"github.com/gofiber/template/html/v3"
	"github.com/redis/go-redis/v9"

	"carealert/internal/config"
)

// Server wraps the Fiber app and configuration.
type Server struct {
	App     *fiber.App
	Cfg     *config.Config
	storage *redisstore.Storage
}

// New creates a new server with middleware configured. When REDIS_URL is set
// the rate limiter counts requests in Redis so every replica shares a budget.
func New(cfg *config.Config) *Server {
	// Setup template engine
	engine := html.New("./views", ".html")
	engine.Reload(cfg.IsDev())

	app := fiber.New(fiber.Config{
		Views:        engine,
		ViewsLayout:  "layouts/main",
		ErrorHandler: errorHandler(cfg),
	})

	app.Use(recover.New())
	app.Use(logger.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins(cfg),
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))

	s := &Server{App: app, Cfg: cfg}

	if cfg.RedisURL != "" {
		s.storage = redisstore.New(redisstore.Config{URL: cfg.RedisURL})
	}

	if cfg.RateLimitPerMinute > 0 {
		limiterCfg := limiter.Config{
			Max:        cfg.RateLimitPerMinute,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c fiber.Ctx) string {
				return c.IP()
			},
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/healthz" || c.Path() == "/metrics"
			},
			LimitReached: func(c fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"status": "error",
					"error":  "rate limit exceeded, try again later",
				})
			},
		}
		if s.storage != nil {
			limiterCfg.Storage = s.storage
		}
		app.Use(limiter.New(limiterCfg))
	}

	return s
}

// allowedOrigins lists CORS_ORIGINS, falling back to BASE_URL. An empty list
// allows any origin.
func allowedOrigins(cfg *config.Config) []string {
	raw := cfg.BaseURL
	if cfg.CORSOrigins != "" {
		raw = cfg.CORSOrigins
	}

	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// errorHandler answers API paths with the JSON envelope and everything else
// with the error page.
func errorHandler(cfg *config.Config) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		} else {
			slog.Error("unhandled request error", "method", c.Method(), "path", c.Path(), "error", err)
		}

		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Status(code).JSON(fiber.Map{
				"status": "error",
				"error":  message,
			})
		}

		return c.Status(code).Render("error", fiber.Map{
			"Title":     "Error",
			"Message":   message,
			"SiteTitle": cfg.SiteTitle,
		})
	}
}

// Redis returns the client behind the shared limiter storage, or nil when
// Redis is not configured.
func (s *Server) Redis() redis.UniversalClient {
	if s.storage == nil {
		return nil
	}
	return s.storage.Conn()
}

// Start starts the server on the configured address.
func (s *Server) Start() error {
	return s.App.Listen(s.Cfg.ServerAddr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown gracefully shuts down the server and releases the Redis storage.
func (s *Server) Shutdown() error {
	err := s.App.Shutdown()
	if s.storage != nil {
		if cerr := s.storage.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
