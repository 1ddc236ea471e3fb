package serverutils

import (
	"context"
	"errors"

	"learnlink-be/pkg/aggregate"
	"learnlink-be/pkg/lifecycle"

	"github.com/gofiber/fiber/v2"
)

// statusCoder is implemented by errors that know their HTTP status.
type statusCoder interface {
	StatusCode() int
}

// ErrorHandlerMiddleware renders any error a handler returns as a BaseResponse.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code, message := StatusOf(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

// StatusOf maps an error to its response status and message.
func StatusOf(err error) (int, string) {
	var (
		fiberErr *fiber.Error
		valErr   *ValidationError
		coded    statusCoder
	)

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	case errors.As(err, &valErr):
		return fiber.StatusBadRequest, valErr.Error()
	case errors.Is(err, lifecycle.ErrInFlight):
		return fiber.StatusConflict, "The same action is already in progress"
	case errors.Is(err, aggregate.ErrUnknownSection):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, aggregate.ErrClosed):
		return fiber.StatusGone, "Session closed"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "Upstream timed out"
	case errors.As(err, &coded):
		return coded.StatusCode(), err.Error()
	default:
		return fiber.StatusInternalServerError, err.Error()
	}
}
