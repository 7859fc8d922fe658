package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/observability"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares. The request logger runs
// outermost so it sees the status written by the error handler.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
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
				observability.LoggerFromContext(c, logger).Error("panic recovered",
					zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := toDomainError(err)
				metrics.RecordError(c.Route().Path, c.Method(), domainErr.Code)
				if domainErr.HTTPStatus >= http.StatusInternalServerError {
					observability.LoggerFromContext(c, logger).Error("request failed", zap.Error(domainErr))
				}
				err = c.Status(domainErr.HTTPStatus).JSON(dto.ErrorEnvelope{Error: dto.ErrorBody{
					Code:    domainErr.Code,
					Message: domainErr.Message,
					Details: domainErr.Details,
				}})
			}
		}()
		return c.Next()
	}
}

// toDomainError also translates fiber's own errors such as unmatched routes.
func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := apperrors.CodeInternal
		switch fiberErr.Code {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			code = apperrors.CodeValidation
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			code = apperrors.CodeNotFound
		case http.StatusUnauthorized:
			code = apperrors.CodeUnauthorized
		case http.StatusForbidden:
			code = apperrors.CodeForbidden
		case http.StatusConflict:
			code = apperrors.CodeConflict
		}
		return apperrors.NewDomainError(code, fiberErr.Message, fiberErr.Code, nil)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewDomainError(apperrors.CodeInternal, "request timed out", http.StatusGatewayTimeout, nil)
	}
	return apperrors.ToDomainError(err)
}
