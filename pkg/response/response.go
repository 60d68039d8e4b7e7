package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/vocalsmith/api/internal/apperr"
)

// Error codes not covered by apperr kinds
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"
	CodeJobFailed       = "JOB_FAILED"
	CodeServiceError    = "SERVICE_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Hint    string      `json:"hint,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

// PipelineError maps a classified pipeline error onto the HTTP surface,
// keeping the error kind as the response code so clients can branch on it.
func PipelineError(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	if kind == "" {
		return ServiceError(c, err.Error())
	}

	status := fiber.StatusInternalServerError
	switch kind {
	case apperr.KindDecode, apperr.KindEmptyInput, apperr.KindMissingInput:
		status = fiber.StatusBadRequest
	case apperr.KindSynthesis:
		status = fiber.StatusBadGateway
	}

	hint := ""
	var e *apperr.Error
	if errors.As(err, &e) {
		hint = e.Hint
	}

	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    string(kind),
			Message: err.Error(),
			Hint:    hint,
		},
	})
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
