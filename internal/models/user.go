package models

import (
	"time"

	"gorm.io/gorm"
)

// Education is one entry in a user's education history.
type Education struct {
	Level       string  `json:"educationLevel"` // Diploma, UG, PG
	DegreeName  string  `json:"degreeName"`
	CollegeName string  `json:"collegeName"`
	YearOfStudy string  `json:"yearOfStudy"` // e.g. "2nd Year", "Final Year", "Graduate"
	CGPA        float64 `json:"cgpa"`
}

// Project is a project listed on a user's profile.
type Project struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
}

// StepsCompleted tracks which onboarding sections the user has filled in.
type StepsCompleted struct {
	Basic         bool `json:"basic"`
	Education     bool `json:"education"`
	Preferences   bool `json:"preferences"`
	ProjectsCerts bool `json:"projectsCerts"`
}

// OCRDraft is a staged set of profile fields extracted from an uploaded
// resume. It is never merged into the profile without an explicit apply.
type OCRDraft struct {
	Skills         []string    `json:"skills"`
	Certifications []string    `json:"certifications"`
	Projects       []Project   `json:"projects"`
	Education      []Education `json:"education"`
	ExtractedAt    time.Time   `json:"extractedAt"`
	Source         string      `json:"source"` // "resume"
}

// User is the identity and profile aggregate. Profile sub-collections are
// stored as JSON columns so the record behaves as a single document.
type User struct {
	ID       string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name     string `json:"name" gorm:"type:varchar(100)" validate:"required,min=1,max=100"`
	Email    string `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password string `json:"-" gorm:"type:varchar(255)"` // bcrypt hash, never serialized

	Phone      string     `json:"phone,omitempty" gorm:"type:varchar(20)"`
	DOB        *time.Time `json:"dob,omitempty"`
	Gender     string     `json:"gender,omitempty" gorm:"type:varchar(10)"`     // Male, Female, Other
	RegionType string     `json:"regionType,omitempty" gorm:"type:varchar(10)"` // Rural, Urban, Tribal

	Education      []Education `json:"education" gorm:"serializer:json"`
	Skills         []string    `json:"skills" gorm:"serializer:json"`
	Certifications []string    `json:"certifications" gorm:"serializer:json"`
	Projects       []Project   `json:"projects" gorm:"serializer:json"`

	PreferredSectors   []string `json:"preferredSectors" gorm:"serializer:json"`
	PreferredLocations []string `json:"preferredLocations" gorm:"serializer:json"`
	InternshipTypes    []string `json:"internshipTypes" gorm:"serializer:json"` // Onsite, Remote, Hybrid
	ExpectedStipend    string   `json:"expectedStipend,omitempty" gorm:"type:varchar(50)"`

	ResumeFile string `json:"resumeFile,omitempty" gorm:"type:varchar(512)"`

	StepsCompleted StepsCompleted `json:"stepsCompleted" gorm:"serializer:json"`
	OcrDraft       *OCRDraft      `json:"ocrDraft,omitempty" gorm:"serializer:json"`

	gorm.Model // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// ComputeSteps recomputes the per-section completion flags from the
// current profile contents.
func (u *User) ComputeSteps() {
	u.StepsCompleted = StepsCompleted{
		Basic:     u.DOB != nil || u.Gender != "" || u.RegionType != "",
		Education: len(u.Education) > 0,
		Preferences: len(u.PreferredSectors) > 0 || len(u.PreferredLocations) > 0 ||
			len(u.InternshipTypes) > 0 || u.ExpectedStipend != "",
		ProjectsCerts: len(u.Projects) > 0 || len(u.Certifications) > 0,
	}
}
