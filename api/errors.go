package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/shelf/pkg/errs"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string   `json:"error"`
	Kind  errs.Kind `json:"kind,omitempty"`
}

var kindStatus = map[errs.Kind]int{
	errs.KindConfiguration:   fiber.StatusInternalServerError,
	errs.KindExtraction:      fiber.StatusUnprocessableEntity,
	errs.KindEmptyContent:    fiber.StatusUnprocessableEntity,
	errs.KindDuplicate:       fiber.StatusConflict,
	errs.KindAdapterContract: fiber.StatusBadGateway,
	errs.KindPersistence:     fiber.StatusInternalServerError,
	errs.KindNotFound:        fiber.StatusNotFound,
	errs.KindExternalService: fiber.StatusBadGateway,
	errs.KindUpload:          fiber.StatusBadRequest,
	errs.KindInvalidRequest:  fiber.StatusBadRequest,
	errs.KindUnknown:         fiber.StatusInternalServerError,
}

// statusFor maps an error to an HTTP status. Deadline errors win over the
// kind so clients can tell a timeout from a provider failure.
func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusGatewayTimeout
	}
	if status, ok := kindStatus[errs.KindOf(err)]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// writeError logs err with its cause and responds with the public message.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	kind := errs.KindOf(err)

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"kind", kind,
			"error", err,
		)
	} else {
		s.logger.Debug("request rejected", "path", c.Path(), "kind", kind, "error", err)
	}

	return c.Status(status).JSON(ErrorResponse{Error: errs.PublicMessage(err), Kind: kind})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: message, Kind: errs.KindInvalidRequest})
}

// fiberErrorHandler renders errors fiber raises itself, such as unknown
// routes and oversized bodies.
func fiberErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(ErrorResponse{Error: message})
}
