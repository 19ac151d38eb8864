package handlers

import (
	"errors"
	"log"
	"time"

	"internmatch/internal/middleware"
	"internmatch/internal/models"
	"internmatch/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ProfileHandler handles HTTP requests for profile reads, section
// updates and the OCR draft lifecycle.
type ProfileHandler struct {
	profileService *services.ProfileService
	validate       *validator.Validate
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		validate:       validator.New(),
	}
}

// RegisterRoutes registers all profile routes except the catch-all
// lookup by id, which must be registered last.
func (h *ProfileHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Get("/me", auth, h.HandleMe)
	router.Put("/profile/basic", auth, h.HandleUpdateBasicInfo)
	router.Put("/profile/education", auth, h.HandleUpdateEducation)
	router.Put("/profile/preferences", auth, h.HandleUpdatePreferences)
	router.Put("/profile/projects-certs", auth, h.HandleUpdateProjectsCerts)
	router.Put("/skills", auth, h.HandleMergeSkills)
	router.Get("/ocr-draft", auth, h.HandleGetOcrDraft)
	router.Post("/ocr-draft", auth, h.HandleSetOcrDraft)
	router.Post("/ocr-apply", auth, h.HandleApplyOcrDraft)
}

// RegisterProfileLookup registers the lookup-by-id route. Fiber matches
// routes in registration order, so this must come after every literal
// path.
func (h *ProfileHandler) RegisterProfileLookup(router fiber.Router, auth fiber.Handler) {
	router.Get("/:id", auth, h.HandleUserProfile)
}

// HandleMe returns the authenticated user's own profile.
func (h *ProfileHandler) HandleMe(c *fiber.Ctx) error {
	user, err := h.profileService.GetByID(middleware.UserID(c))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "User not found",
		})
	}
	return c.JSON(user)
}

// HandleUserProfile returns a user's profile by id. The password hash
// is excluded from the serialized form.
func (h *ProfileHandler) HandleUserProfile(c *fiber.Ctx) error {
	user, err := h.profileService.GetByID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "User not found",
		})
	}
	return c.JSON(user)
}

// BasicInfoRequest represents a partial basic-info update. Absent
// fields are left untouched.
type BasicInfoRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Phone      *string `json:"phone" validate:"omitempty,len=10,numeric"`
	DOB        *string `json:"dob"`
	Gender     *string `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	RegionType *string `json:"regionType" validate:"omitempty,oneof=Rural Urban Tribal"`
}

// HandleUpdateBasicInfo applies a partial basic-info update.
func (h *ProfileHandler) HandleUpdateBasicInfo(c *fiber.Ctx) error {
	var req BasicInfoRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	upd := services.BasicInfoUpdate{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Gender:     req.Gender,
		RegionType: req.RegionType,
	}
	if req.DOB != nil {
		dob, err := parseDate(*req.DOB)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "dob must be an RFC 3339 timestamp or YYYY-MM-DD date",
			})
		}
		upd.DOB = &dob
	}

	user, err := h.profileService.UpdateBasicInfo(middleware.UserID(c), upd)
	return h.respondUpdated(c, user, err)
}

// EducationInput is one education entry as submitted by clients. Wire
// names differ from the stored model names.
type EducationInput struct {
	Level       string  `json:"level" validate:"omitempty,oneof=Diploma UG PG"`
	Degree      string  `json:"degree"`
	College     string  `json:"college"`
	YearOfStudy string  `json:"yearOfStudy"`
	CGPA        float64 `json:"cgpa" validate:"gte=0,lte=10"`
}

// EducationRequest represents a full-array education replace.
type EducationRequest struct {
	Education []EducationInput `json:"education" validate:"required,dive"`
}

// HandleUpdateEducation replaces the education array in full.
func (h *ProfileHandler) HandleUpdateEducation(c *fiber.Ctx) error {
	var req EducationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "education must be an array",
			"error":   err.Error(),
		})
	}
	if req.Education == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "education must be an array",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	education := make([]models.Education, 0, len(req.Education))
	for _, e := range req.Education {
		education = append(education, models.Education{
			Level:       e.Level,
			DegreeName:  e.Degree,
			CollegeName: e.College,
			YearOfStudy: e.YearOfStudy,
			CGPA:        e.CGPA,
		})
	}

	user, err := h.profileService.UpdateEducation(middleware.UserID(c), education)
	return h.respondUpdated(c, user, err)
}

// PreferencesRequest represents a preferences replace. Absent fields
// are left untouched; present fields replace the stored value in full.
type PreferencesRequest struct {
	PreferredSectors   *[]string `json:"preferredSectors"`
	PreferredLocations *[]string `json:"preferredLocations"`
	InternshipTypes    *[]string `json:"internshipTypes" validate:"omitempty,dive,oneof=Onsite Remote Hybrid"`
	ExpectedStipend    *string   `json:"expectedStipend"`
}

// HandleUpdatePreferences replaces the supplied preference fields.
func (h *ProfileHandler) HandleUpdatePreferences(c *fiber.Ctx) error {
	var req PreferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	upd := services.PreferencesUpdate{
		PreferredSectors:   req.PreferredSectors,
		PreferredLocations: req.PreferredLocations,
		InternshipTypes:    req.InternshipTypes,
		ExpectedStipend:    req.ExpectedStipend,
	}
	user, err := h.profileService.UpdatePreferences(middleware.UserID(c), upd)
	return h.respondUpdated(c, user, err)
}

// ProjectsCertsRequest represents a projects/certifications replace.
type ProjectsCertsRequest struct {
	Projects       *[]models.Project `json:"projects"`
	Certifications *[]string         `json:"certifications"`
}

// HandleUpdateProjectsCerts replaces the projects and certifications
// arrays.
func (h *ProfileHandler) HandleUpdateProjectsCerts(c *fiber.Ctx) error {
	var req ProjectsCertsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	user, err := h.profileService.UpdateProjectsCerts(middleware.UserID(c), req.Projects, req.Certifications)
	return h.respondUpdated(c, user, err)
}

// SkillsRequest represents a skills merge.
type SkillsRequest struct {
	Skills []string `json:"skills"`
}

// HandleMergeSkills unions the supplied skills into the profile.
func (h *ProfileHandler) HandleMergeSkills(c *fiber.Ctx) error {
	var req SkillsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "skills must be an array",
			"error":   err.Error(),
		})
	}
	if req.Skills == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "skills must be an array",
		})
	}

	user, err := h.profileService.MergeSkills(middleware.UserID(c), req.Skills)
	return h.respondUpdated(c, user, err)
}

// HandleGetOcrDraft returns the staged draft. Fetching never mutates
// the permanent profile.
func (h *ProfileHandler) HandleGetOcrDraft(c *fiber.Ctx) error {
	draft, err := h.profileService.GetOcrDraft(middleware.UserID(c))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "User not found",
		})
	}
	return c.JSON(draft)
}

// OcrDraftRequest represents an externally supplied draft.
type OcrDraftRequest struct {
	Skills         []string           `json:"skills"`
	Certifications []string           `json:"certifications"`
	Projects       []models.Project   `json:"projects"`
	Education      []models.Education `json:"education"`
}

// HandleSetOcrDraft stages a draft on the user.
func (h *ProfileHandler) HandleSetOcrDraft(c *fiber.Ctx) error {
	var req OcrDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	draft := models.OCRDraft{
		Skills:         orEmpty(req.Skills),
		Certifications: orEmpty(req.Certifications),
		Projects:       req.Projects,
		Education:      req.Education,
	}
	user, err := h.profileService.SetOcrDraft(middleware.UserID(c), draft)
	return h.respondUpdated(c, user, err)
}

// HandleApplyOcrDraft merges the staged draft into the permanent
// profile. This is the only path that does.
func (h *ProfileHandler) HandleApplyOcrDraft(c *fiber.Ctx) error {
	user, err := h.profileService.ApplyOcrDraft(middleware.UserID(c))
	return h.respondUpdated(c, user, err)
}

func (h *ProfileHandler) respondUpdated(c *fiber.Ctx, user *models.User, err error) error {
	if err != nil {
		log.Printf("Profile update failed: %v", err)
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		if errors.Is(err, services.ErrDuplicateAccount) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "An account with this email already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update profile",
			"error":   err.Error(),
		})
	}
	return c.JSON(user)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
