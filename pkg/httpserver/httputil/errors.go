package httputil

import (
	"net/http"

	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/gofiber/fiber/v2"
)

const kindInvalidRequest = "invalid_request"

// WriteError standardizes JSON error responses that are not workflow failures.
func WriteError(c *fiber.Ctx, status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
		if msg == "" {
			msg = "unknown error"
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"kind":  kindInvalidRequest,
	})
}

// WriteFailure renders err with its diagnostic and kind. Errors that are not
// a *model.Failure are reported as internal.
func WriteFailure(c *fiber.Ctx, err error) error {
	f, ok := model.AsFailure(err)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
			"kind":  "internal",
		})
	}
	return c.Status(StatusForFailure(f)).JSON(fiber.Map{
		"error": f.Diagnostic(),
		"kind":  f.Kind,
	})
}

func StatusForFailure(f *model.Failure) int {
	if f.RateLimited() {
		return fiber.StatusTooManyRequests
	}
	switch f.Kind {
	case model.KindCredential:
		return fiber.StatusUnauthorized
	case model.KindNoModels, model.KindProviderUnavailable:
		return fiber.StatusServiceUnavailable
	case model.KindTranscription, model.KindAnalysis:
		return fiber.StatusBadGateway
	case model.KindPrecondition:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
