package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"internmatch/internal/models"
	"internmatch/internal/repositories"
	"internmatch/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendationService_GetRecommendations(t *testing.T) {
	repo := repositories.NewMockUserRepository()
	user := &models.User{
		Name:               "Alice",
		Email:              "alice@example.com",
		Skills:             []string{"Go", "SQL"},
		PreferredSectors:   []string{"IT"},
		PreferredLocations: []string{"Bengaluru", "Pune"},
		InternshipTypes:    []string{"Remote"},
		Education: []models.Education{
			{Level: "UG", DegreeName: "B.Tech", CollegeName: "IIT"},
		},
	}
	require.NoError(t, repo.Create(user))

	var received map[string]any
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/recommendations", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"recommendations":[{"title":"Backend Intern","score":0.91}]}`))
	}))
	defer engine.Close()

	service := services.NewRecommendationService(repo, engine.URL)
	body, err := service.GetRecommendations(context.Background(), user.ID, 3)
	assert.NoError(t, err)

	// The engine payload is built from the caller's own profile.
	assert.Equal(t, float64(3), received["top_n"])
	assert.Equal(t, "Alice", received["name"])
	assert.Equal(t, "UG B.Tech IIT", received["education"])
	assert.Equal(t, []any{"Go", "SQL"}, received["skills"])
	assert.Equal(t, "Bengaluru", received["location"])
	prefs, ok := received["preferences"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, prefs["remote"])

	// The engine response is relayed verbatim.
	assert.JSONEq(t, `{"recommendations":[{"title":"Backend Intern","score":0.91}]}`, string(body))
}

func TestRecommendationService_EngineDown(t *testing.T) {
	repo := repositories.NewMockUserRepository()
	user := &models.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, repo.Create(user))

	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	engine.Close() // connection refused

	service := services.NewRecommendationService(repo, engine.URL)
	_, err := service.GetRecommendations(context.Background(), user.ID, 5)
	assert.ErrorIs(t, err, services.ErrRecommenderDown)
}

func TestRecommendationService_EngineError(t *testing.T) {
	repo := repositories.NewMockUserRepository()
	user := &models.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, repo.Create(user))

	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer engine.Close()

	service := services.NewRecommendationService(repo, engine.URL)
	_, err := service.GetRecommendations(context.Background(), user.ID, 5)
	assert.ErrorIs(t, err, services.ErrRecommenderDown)
}

func TestRecommendationService_UnknownUser(t *testing.T) {
	repo := repositories.NewMockUserRepository()
	service := services.NewRecommendationService(repo, "http://localhost:0")

	_, err := service.GetRecommendations(context.Background(), "missing", 5)
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}
