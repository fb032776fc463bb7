package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/i474232898/weather-reorder/internal/logger"
)

// AppName is reported by /health and the fiber config.
const AppName = "weather-reorder"

// Options tune the fiber app.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// AccessLog enables fiber's request logging middleware.
	AccessLog bool
}

// NewApp builds the fiber app with the JSON error handler, global
// middleware and every route registered.
func NewApp(deps Deps, l *logger.Logger, opts Options) *fiber.App {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}

	app := fiber.New(fiber.Config{
		AppName:               AppName,
		DisableStartupMessage: true,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		ErrorHandler:          errorHandler(l),
	})

	if opts.AccessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": AppName,
		})
	})

	RegisterRoutes(app, deps)
	return app
}

// errorHandler renders every error as {"error": true, "message": ...}.
// Errors that are not *fiber.Error are logged and reported as 500.
func errorHandler(l *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			l.Error(err, map[string]any{"path": c.Path(), "method": c.Method()})
		}

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": message,
		})
	}
}
