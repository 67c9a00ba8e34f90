package web

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/observability"
	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

type errorPage struct {
	Title   string
	Status  int
	Code    string
	Message string
}

// RegisterMiddlewares attaches request timeout, error pages and request logging.
func RegisterMiddlewares(app *fiber.App, renderer *Renderer, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(renderer, logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorHandlingMiddleware renders errors as HTML pages, or as the JSON error
// envelope for clients that ask for JSON.
func errorHandlingMiddleware(renderer *Renderer, logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}
			domainErr := apperrors.ToDomainError(err)
			metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
			if domainErr.HTTPStatus >= 500 {
				logger.Error("request failed", zap.Error(domainErr))
			}

			if wantsJSON(c) {
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
				return
			}

			if renderErr := renderer.Render(c, domainErr.HTTPStatus, "error", errorPage{
				Title:   "Error",
				Status:  domainErr.HTTPStatus,
				Code:    domainErr.Code,
				Message: domainErr.Message,
			}); renderErr != nil {
				logger.Error("render error page", zap.Error(renderErr))
				_ = c.Status(domainErr.HTTPStatus).SendString(domainErr.Message)
			}
			err = nil
		}()
		return c.Next()
	}
}

func wantsJSON(c *fiber.Ctx) bool {
	return strings.HasSuffix(c.Path(), "/summary") || c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}
