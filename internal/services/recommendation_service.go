package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"internmatch/internal/models"
	"internmatch/internal/repositories"
)

// recommenderPayload is the request shape the external matching engine
// expects. Its contract is treated as a stable JSON boundary.
type recommenderPayload struct {
	TopN            int              `json:"top_n"`
	Name            string           `json:"name"`
	Education       string           `json:"education"`
	Skills          []string         `json:"skills"`
	SectorInterests []string         `json:"sector_interests"`
	Location        string           `json:"location"`
	Preferences     recommenderPrefs `json:"preferences"`
	CareerGoals     string           `json:"career_goals"`
}

type recommenderPrefs struct {
	Remote bool `json:"remote"`
}

// RecommendationService is an authenticated passthrough to the external
// recommendation engine, keyed by the caller's own profile. No caching,
// no local ranking.
type RecommendationService struct {
	userRepo repositories.UserRepository
	baseURL  string
	client   *http.Client
}

// NewRecommendationService creates a RecommendationService targeting the
// given engine base URL.
func NewRecommendationService(userRepo repositories.UserRepository, baseURL string) *RecommendationService {
	return &RecommendationService{
		userRepo: userRepo,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// GetRecommendations builds the engine payload from the user's profile
// and relays the engine response verbatim.
func (s *RecommendationService) GetRecommendations(ctx context.Context, userID string, topN int) (json.RawMessage, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	body, err := json.Marshal(buildRecommenderPayload(user, topN))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommender payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/recommendations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build recommender request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecommenderDown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrRecommenderDown, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecommenderDown, err)
	}
	return json.RawMessage(data), nil
}

func buildRecommenderPayload(user *models.User, topN int) recommenderPayload {
	if topN <= 0 {
		topN = 5
	}

	var eduParts []string
	for _, e := range user.Education {
		var fields []string
		for _, f := range []string{e.Level, e.DegreeName, e.CollegeName} {
			if f != "" {
				fields = append(fields, f)
			}
		}
		if len(fields) > 0 {
			eduParts = append(eduParts, strings.Join(fields, " "))
		}
	}

	remote := false
	for _, t := range user.InternshipTypes {
		if strings.EqualFold(t, "remote") {
			remote = true
			break
		}
	}

	location := ""
	if len(user.PreferredLocations) > 0 {
		location = user.PreferredLocations[0]
	}

	skills := user.Skills
	if skills == nil {
		skills = []string{}
	}
	sectors := user.PreferredSectors
	if sectors == nil {
		sectors = []string{}
	}

	return recommenderPayload{
		TopN:            topN,
		Name:            user.Name,
		Education:       strings.Join(eduParts, " | "),
		Skills:          skills,
		SectorInterests: sectors,
		Location:        location,
		Preferences:     recommenderPrefs{Remote: remote},
	}
}
