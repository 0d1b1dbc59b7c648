package handlers

import (
	"io"
	"log/slog"
	"strconv"

	"github.com/crosspost-io/crosspost/internal/transfer"
	"github.com/crosspost-io/crosspost/internal/upload"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type UploadHandler struct {
	um       *upload.Manager
	validate *validator.Validate
}

func NewUploadHandler(um *upload.Manager) *UploadHandler {
	return &UploadHandler{um: um, validate: validator.New()}
}

// UploadMedia is the single-request path for files at or below the
// chunking threshold.
func (h *UploadHandler) UploadMedia(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file provided",
		})
	}

	if h.um.UseChunked(fileHeader.Size) {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "File exceeds the single-request limit; use the chunked upload protocol",
		})
	}

	f, err := fileHeader.Open()
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to read file",
		})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to read file",
		})
	}

	result, err := h.um.SimpleUpload(c.Context(), fileHeader.Filename, data)
	if err != nil {
		return c.Status(uploadErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *UploadHandler) InitUpload(c *fiber.Ctx) error {
	var in transfer.UploadInit
	if err := c.BodyParser(&in); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := h.validate.Struct(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	result, err := h.um.Init(c.Context(), &in)
	if err != nil {
		return c.Status(uploadErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *UploadHandler) UploadChunk(c *fiber.Ctx) error {
	uploadID := c.Params("id")
	token := uploadToken(c)

	chunkIndex, err := strconv.Atoi(c.FormValue("chunk_index"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid chunk index",
		})
	}

	fileHeader, err := c.FormFile("chunk")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No chunk data provided",
		})
	}
	f, err := fileHeader.Open()
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to read chunk",
		})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to read chunk",
		})
	}

	result, err := h.um.Chunk(c.Context(), uploadID, chunkIndex, token, c.FormValue("checksum"), data)
	if err != nil {
		return c.Status(uploadErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *UploadHandler) CompleteUpload(c *fiber.Ctx) error {
	uploadID := c.Params("id")

	result, err := h.um.Complete(c.Context(), uploadID, uploadToken(c))
	if err != nil {
		return c.Status(uploadErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *UploadHandler) UploadStatus(c *fiber.Ctx) error {
	uploadID := c.Params("id")

	status, err := h.um.Status(c.Context(), uploadID)
	if err != nil {
		return c.Status(uploadErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *UploadHandler) CancelUpload(c *fiber.Ctx) error {
	uploadID := c.Params("id")

	if err := h.um.Cancel(c.Context(), uploadID, uploadToken(c)); err != nil {
		return c.Status(uploadErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

// uploadToken reads the session capability from the header or, for
// multipart requests, the form field.
func uploadToken(c *fiber.Ctx) string {
	if token := c.Get("X-Upload-Token"); token != "" {
		return token
	}
	return c.FormValue("upload_token")
}
