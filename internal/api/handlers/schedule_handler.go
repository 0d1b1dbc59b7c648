package handlers

import (
	"log/slog"
	"time"

	"github.com/crosspost-io/crosspost/internal/models"
	"github.com/crosspost-io/crosspost/internal/repository"
	"github.com/crosspost-io/crosspost/internal/scheduler"
	"github.com/crosspost-io/crosspost/internal/transfer"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type ScheduleHandler struct {
	s        *scheduler.Scheduler
	repo     repository.ContentRepository
	validate *validator.Validate
}

func NewScheduleHandler(s *scheduler.Scheduler, repo repository.ContentRepository) *ScheduleHandler {
	return &ScheduleHandler{s: s, repo: repo, validate: validator.New()}
}

func (h *ScheduleHandler) CreateSchedule(c *fiber.Ctx) error {
	var sc transfer.ScheduleCreation
	if err := c.BodyParser(&sc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := h.validate.Struct(&sc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	scheduledTime, err := parseScheduledTime(sc.ScheduledTime)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scheduled time format",
		})
	}
	if !scheduledTime.After(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Scheduled time must be in the future",
		})
	}

	content, err := h.s.Schedule(c.Context(), sc.Platform, sc.Message, scheduledTime, models.ContentMetadata{
		HasMedia:    sc.HasMedia,
		MediaPath:   sc.MediaPath,
		MediaType:   sc.MediaType,
		AccountName: sc.AccountName,
	})
	if err != nil {
		return c.Status(scheduleErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(content)
}

func (h *ScheduleHandler) ListSchedules(c *fiber.Ctx) error {
	contents, err := h.repo.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list scheduled contents",
		})
	}

	return c.Status(fiber.StatusOK).JSON(contents)
}

func (h *ScheduleHandler) CancelSchedule(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid schedule id",
		})
	}

	cancelled, err := h.s.Cancel(c.Context(), int64(id))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to cancel schedule",
		})
	}
	if !cancelled {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No active schedule with this id",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"cancelled": true,
	})
}

// parseScheduledTime accepts RFC 3339 or the shorter picker format the
// frontend sends.
func parseScheduledTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04", value)
}
