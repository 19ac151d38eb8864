package resume

import (
	"strings"

	"internmatch/internal/models"
)

// section headers recognized by the fallback parser, lower-cased.
var sectionNames = map[string]string{
	"skills":           "skills",
	"technical skills": "skills",
	"certifications":   "certifications",
	"certificates":     "certifications",
	"projects":         "projects",
	"education":        "education",
}

// ParseDraft heuristically extracts draft profile fields from resume
// text. It recognizes section headers on their own line and reads the
// lines beneath them until the next known header. Output quality is
// deliberately modest; the draft is staged for explicit user review,
// never applied automatically.
func ParseDraft(text string) models.OCRDraft {
	draft := models.OCRDraft{
		Skills:         []string{},
		Certifications: []string{},
		Projects:       []models.Project{},
		Education:      []models.Education{},
	}

	current := ""
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		header := strings.ToLower(strings.TrimRight(line, ":"))
		if name, ok := sectionNames[header]; ok {
			current = name
			continue
		}

		switch current {
		case "skills":
			for _, sk := range splitList(line) {
				draft.Skills = append(draft.Skills, sk)
			}
		case "certifications":
			for _, c := range splitList(line) {
				draft.Certifications = append(draft.Certifications, c)
			}
		case "projects":
			title, desc := splitTitleLine(line)
			draft.Projects = append(draft.Projects, models.Project{Title: title, Description: desc})
		case "education":
			name, college := splitTitleLine(line)
			draft.Education = append(draft.Education, models.Education{DegreeName: name, CollegeName: college})
		}
	}
	return draft
}

// splitList splits a comma- or bullet-separated line into items.
func splitList(line string) []string {
	line = strings.TrimLeft(line, "-•* \t")
	var items []string
	for _, part := range strings.Split(line, ",") {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// splitTitleLine splits "Title - rest" or "Title: rest" lines.
func splitTitleLine(line string) (string, string) {
	line = strings.TrimLeft(line, "-•* \t")
	for _, sep := range []string{" - ", ": ", " — "} {
		if i := strings.Index(line, sep); i > 0 {
			return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+len(sep):])
		}
	}
	return strings.TrimSpace(line), ""
}
