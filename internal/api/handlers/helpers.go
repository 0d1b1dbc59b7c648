package handlers

import (
	"errors"

	"github.com/crosspost-io/crosspost/internal/scheduler"
	"github.com/crosspost-io/crosspost/internal/upload"
	"github.com/gofiber/fiber/v2"
)

// uploadErrorStatus maps upload errors onto the HTTP statuses callers
// are documented to expect: 404 unknown session, 409 incomplete, 410
// expired.
func uploadErrorStatus(err error) int {
	var incomplete *upload.IncompleteError
	var rangeErr *upload.ChunkRangeError
	var validation *upload.ValidationError

	switch {
	case errors.Is(err, upload.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, upload.ErrSessionExpired):
		return fiber.StatusGone
	case errors.As(err, &incomplete), errors.Is(err, upload.ErrSessionClosed):
		return fiber.StatusConflict
	case errors.Is(err, upload.ErrInvalidToken):
		return fiber.StatusForbidden
	case errors.As(err, &rangeErr), errors.As(err, &validation), errors.Is(err, upload.ErrChecksumMismatch):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func scheduleErrorStatus(err error) int {
	var validation *scheduler.ValidationError
	if errors.As(err, &validation) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}
