package services

import (
	"fmt"
	"strings"
	"time"

	"internmatch/internal/models"
	"internmatch/internal/repositories"
)

// BasicInfoUpdate carries a partial basic-info update. Nil fields are
// left untouched.
type BasicInfoUpdate struct {
	Name       *string
	Email      *string
	Phone      *string
	DOB        *time.Time
	Gender     *string
	RegionType *string
}

// PreferencesUpdate carries a partial preferences replace. Nil fields
// are left untouched; non-nil fields replace the stored value in full.
type PreferencesUpdate struct {
	PreferredSectors   *[]string
	PreferredLocations *[]string
	InternshipTypes    *[]string
	ExpectedStipend    *string
}

// ProfileService handles section-scoped profile mutations. Every
// operation works on a single user aggregate and recomputes the
// onboarding completion flags before persisting.
type ProfileService struct {
	userRepo repositories.UserRepository
}

// NewProfileService creates a new ProfileService.
func NewProfileService(userRepo repositories.UserRepository) *ProfileService {
	return &ProfileService{
		userRepo: userRepo,
	}
}

// GetByID retrieves a user by id.
func (s *ProfileService) GetByID(userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateBasicInfo applies the non-nil fields of the update.
func (s *ProfileService) UpdateBasicInfo(userID string, upd BasicInfoUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if upd.Name != nil {
		user.Name = *upd.Name
	}
	if upd.Email != nil {
		email := NormalizeEmail(*upd.Email)
		if email != user.Email {
			if existing, err := s.userRepo.GetByEmail(email); err == nil && existing != nil {
				return nil, ErrDuplicateAccount
			}
		}
		user.Email = email
	}
	if upd.Phone != nil {
		user.Phone = *upd.Phone
	}
	if upd.DOB != nil {
		user.DOB = upd.DOB
	}
	if upd.Gender != nil {
		user.Gender = *upd.Gender
	}
	if upd.RegionType != nil {
		user.RegionType = *upd.RegionType
	}

	return s.save(user)
}

// UpdateEducation replaces the full education array.
func (s *ProfileService) UpdateEducation(userID string, education []models.Education) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	user.Education = education
	return s.save(user)
}

// UpdatePreferences replaces the supplied preference fields in full.
func (s *ProfileService) UpdatePreferences(userID string, upd PreferencesUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if upd.PreferredSectors != nil {
		user.PreferredSectors = *upd.PreferredSectors
	}
	if upd.PreferredLocations != nil {
		user.PreferredLocations = *upd.PreferredLocations
	}
	if upd.InternshipTypes != nil {
		user.InternshipTypes = *upd.InternshipTypes
	}
	if upd.ExpectedStipend != nil {
		user.ExpectedStipend = *upd.ExpectedStipend
	}

	return s.save(user)
}

// UpdateProjectsCerts replaces the projects and/or certifications
// arrays. Nil slices are left untouched.
func (s *ProfileService) UpdateProjectsCerts(userID string, projects *[]models.Project, certifications *[]string) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if projects != nil {
		user.Projects = *projects
	}
	if certifications != nil {
		user.Certifications = *certifications
	}

	return s.save(user)
}

// MergeSkills unions the supplied skills into the stored set.
// De-duplication is a case-sensitive exact match and first-appearance
// order is preserved.
func (s *ProfileService) MergeSkills(userID string, skills []string) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	user.Skills = mergeSkillList(user.Skills, skills)
	return s.save(user)
}

// GetOcrDraft returns the staged draft without touching the profile.
// An absent draft reads as an empty draft.
func (s *ProfileService) GetOcrDraft(userID string) (models.OCRDraft, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return models.OCRDraft{}, ErrUserNotFound
	}
	if user.OcrDraft == nil {
		return models.OCRDraft{}, nil
	}
	return *user.OcrDraft, nil
}

// SetOcrDraft stages an extracted draft on the user. The permanent
// profile is not touched.
func (s *ProfileService) SetOcrDraft(userID string, draft models.OCRDraft) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	draft.ExtractedAt = time.Now()
	draft.Source = "resume"
	user.OcrDraft = &draft

	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// ApplyOcrDraft merges the staged draft into the permanent profile.
// This is the only path from draft to profile; it never runs
// implicitly. A missing draft is a no-op.
func (s *ProfileService) ApplyOcrDraft(userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if user.OcrDraft == nil {
		return user, nil
	}
	draft := *user.OcrDraft

	user.Skills = mergeSkillList(user.Skills, draft.Skills)

	// Certifications dedup on the trimmed lower-cased string.
	seen := make(map[string]bool, len(user.Certifications))
	for _, c := range user.Certifications {
		seen[strings.ToLower(strings.TrimSpace(c))] = true
	}
	for _, c := range draft.Certifications {
		key := strings.ToLower(strings.TrimSpace(c))
		if key != "" && !seen[key] {
			user.Certifications = append(user.Certifications, c)
			seen[key] = true
		}
	}

	// Projects dedup by lower-cased title.
	titles := make(map[string]bool, len(user.Projects))
	for _, p := range user.Projects {
		titles[strings.ToLower(strings.TrimSpace(p.Title))] = true
	}
	for _, p := range draft.Projects {
		key := strings.ToLower(strings.TrimSpace(p.Title))
		if key != "" && !titles[key] {
			user.Projects = append(user.Projects, p)
			titles[key] = true
		}
	}

	// Education dedup by lower-cased degree|college pair.
	entries := make(map[string]bool, len(user.Education))
	for _, e := range user.Education {
		entries[educationKey(e)] = true
	}
	for _, e := range draft.Education {
		key := educationKey(e)
		if strings.TrimSpace(key) != "|" && !entries[key] {
			user.Education = append(user.Education, e)
			entries[key] = true
		}
	}

	return s.save(user)
}

func (s *ProfileService) save(user *models.User) (*models.User, error) {
	user.ComputeSteps()
	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func mergeSkillList(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, sk := range existing {
		seen[sk] = true
	}
	merged := existing
	for _, sk := range incoming {
		if sk != "" && !seen[sk] {
			merged = append(merged, sk)
			seen[sk] = true
		}
	}
	return merged
}

func educationKey(e models.Education) string {
	return strings.ToLower(e.DegreeName) + "|" + strings.ToLower(e.CollegeName)
}
