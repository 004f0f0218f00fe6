package server

import (
	"mime/multipart"

	"bulletin/internal/models"
	"bulletin/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// UploadAttachments handles POST /api/uploads
// @Summary Upload attachments
// @Description Stores every file of the "files" form field with the configured host. A host failure aborts the batch.
// @Tags uploads
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files to attach"
// @Success 201 {array} models.Attachment
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /uploads [post]
func (s *Server) UploadAttachments(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}

	files := make([]storage.File, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, h := range headers {
		src, err := h.Open()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
		}
		opened = append(opened, src)
		files = append(files, storage.File{
			Name:        h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Body:        src,
		})
	}

	attachments, err := s.uploadService.UploadAll(c.UserContext(), files)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(attachments)
}
