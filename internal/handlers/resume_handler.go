package handlers

import (
	"errors"
	"io"
	"log"
	"path"
	"strings"

	"internmatch/internal/middleware"
	"internmatch/internal/resume"
	"internmatch/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ResumeHandler handles resume upload and extraction requests.
type ResumeHandler struct {
	resumeService *services.ResumeService
}

// NewResumeHandler creates a new ResumeHandler.
func NewResumeHandler(resumeService *services.ResumeService) *ResumeHandler {
	return &ResumeHandler{
		resumeService: resumeService,
	}
}

// RegisterRoutes registers the resume routes.
func (h *ResumeHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Post("/resume/extract", auth, h.HandleExtract)
}

// HandleExtract accepts a multipart resume upload, stores it and
// triggers extraction. The extracted fields land in the OCR draft only;
// they are never merged into the profile without an explicit apply.
func (h *ResumeHandler) HandleExtract(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": `Upload a file as "file"`,
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not read uploaded file",
			"error":   err.Error(),
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not read uploaded file",
			"error":   err.Error(),
		})
	}

	mime := fileHeader.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = mimeFromExtension(fileHeader.Filename)
	}

	queued, draft, err := h.resumeService.Upload(c.Context(), middleware.UserID(c), fileHeader.Filename, mime, data)
	if err != nil {
		log.Printf("Resume extraction failed: %v", err)
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to process resume",
			"error":   err.Error(),
		})
	}

	if queued {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message": "Resume received. Extraction is running; check the draft shortly.",
		})
	}
	return c.JSON(fiber.Map{
		"message":  "Resume processed. Review the draft and apply it to your profile.",
		"ocrDraft": draft,
	})
}

func mimeFromExtension(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return resume.MimePDF
	case ".docx":
		return resume.MimeDocx
	case ".txt":
		return resume.MimePlain
	default:
		return "application/octet-stream"
	}
}
