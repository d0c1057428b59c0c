// Package httpapi is the HTTP framing adapter over the tool dispatcher.
// Grounded on api/main.go's fiber app construction and middleware
// ordering (recover -> logger -> cors) and on handlers_/handlers.go's
// ErrorHandler shape; middleware_/auth.go's ClerkAuth is replaced by a
// single shared-secret header check, since cross-request authorization
// beyond a static credential is out of scope.
package httpapi

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"tagcompliance/internal/dispatcher"
	"tagcompliance/internal/guardrails"
)

// New builds the fiber app exposing the tool surface over HTTP. Every
// route shares the one Dispatcher instance passed in; the app never
// constructs its own guard state. bounds gates the transport boundary
// (body size, header size/count, path/query length) before a request
// ever reaches the dispatcher's own argument validation.
func New(d *dispatcher.Dispatcher, sharedSecret string, bounds guardrails.Bounds) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    int(bounds.MaxBodySizeBytes),
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Session-ID, X-Correlation-ID, X-Shared-Secret",
	}))
	app.Use(boundsMiddleware(bounds))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	tools := app.Group("/tools")
	tools.Use(sharedSecretAuth(sharedSecret))
	tools.Post("/:name", toolHandler(d))

	return app
}

// boundsMiddleware rejects requests whose path, query string, or headers
// exceed bounds before any handler runs, per spec.md §4.10. A zero limit
// disables that particular check.
func boundsMiddleware(bounds guardrails.Bounds) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if bounds.MaxPathLength > 0 && len(c.Path()) > bounds.MaxPathLength {
			return c.Status(fiber.StatusRequestURITooLong).JSON(fiber.Map{"error": "path exceeds maximum length"})
		}
		if bounds.MaxQueryStringLength > 0 && len(c.Request().URI().QueryString()) > bounds.MaxQueryStringLength {
			return c.Status(fiber.StatusRequestURITooLong).JSON(fiber.Map{"error": "query string exceeds maximum length"})
		}

		headerCount := 0
		var rejectErr error
		c.Request().Header.VisitAll(func(key, value []byte) {
			if rejectErr != nil {
				return
			}
			headerCount++
			name, val := string(key), string(value)
			if guardrails.IsDangerousHeader(name) {
				rejectErr = fmt.Errorf("header %q is not permitted", name)
				return
			}
			if err := guardrails.ValidateHeaderValue(val); err != nil {
				rejectErr = err
				return
			}
			if bounds.MaxHeaderSizeBytes > 0 && int64(len(key)+len(value)) > bounds.MaxHeaderSizeBytes {
				rejectErr = fmt.Errorf("header %q exceeds maximum size", name)
			}
		})
		if rejectErr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": rejectErr.Error()})
		}
		if bounds.MaxHeaderCount > 0 && headerCount > bounds.MaxHeaderCount {
			return c.Status(fiber.StatusRequestHeaderFieldsTooLarge).JSON(fiber.Map{"error": "too many headers"})
		}

		return c.Next()
	}
}

// sharedSecretAuth rejects requests missing or mismatching the
// configured shared secret. An empty secret disables the check, matching
// config.Config's "defaults off" convention for every new guard.
func sharedSecretAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		if c.Get("X-Shared-Secret") != secret {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or invalid shared secret",
			})
		}
		return c.Next()
	}
}

type toolRequest struct {
	Arguments map[string]interface{} `json:"arguments"`
}

func toolHandler(d *dispatcher.Dispatcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		toolName := c.Params("name")

		var req toolRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid request body",
				})
			}
		}
		if req.Arguments == nil {
			req.Arguments = map[string]interface{}{}
		}

		sessionID := c.Get("X-Session-ID")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		correlationID := c.Get("X-Correlation-ID")

		resp := d.Dispatch(c.Context(), sessionID, toolName, req.Arguments, correlationID)

		status := fiber.StatusOK
		if resp.Status == "rejected" {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(resp)
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
