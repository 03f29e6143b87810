package http

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/itsm-sla/internal/observability"
	apperrors "github.com/spec-kit/itsm-sla/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(observability.RequestLogger(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := apperrors.ToDomainError(err)
				if metrics != nil {
					metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
				}
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				logFailure(logger, c, domainErr)
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

// logFailure picks the level by error kind. Rejected timer and assignment
// transitions are worth a warning; other client errors stay at debug.
func logFailure(logger *zap.Logger, c *fiber.Ctx, domainErr *apperrors.DomainError) {
	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("code", domainErr.Code),
	}
	switch {
	case domainErr.HTTPStatus >= 500:
		logger.Error("request failed", append(fields, zap.Error(domainErr))...)
	case domainErr.Code == apperrors.CodeInvalidState, domainErr.Code == apperrors.CodeConflict:
		if actor := c.Get("X-Actor-ID"); actor != "" {
			fields = append(fields, zap.String("actor_id", actor))
		}
		logger.Warn("request rejected", append(fields, zap.Any("details", domainErr.Details))...)
	default:
		logger.Debug("request invalid", append(fields, zap.String("message", domainErr.Message))...)
	}
}
