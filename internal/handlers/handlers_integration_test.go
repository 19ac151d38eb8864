package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"internmatch/internal/handlers"
	"internmatch/internal/middleware"
	"internmatch/internal/otp"
	"internmatch/internal/repositories"
	"internmatch/internal/services"
	"internmatch/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMailer captures OTP codes instead of delivering them.
type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{codes: make(map[string]string)}
}

func (m *recordingMailer) SendOTP(to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *recordingMailer) codeFor(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

type testEnv struct {
	app    *fiber.App
	repo   *repositories.MockUserRepository
	mail   *recordingMailer
	engine *httptest.Server
}

// setupApp assembles the full route surface on mock infrastructure,
// the way main does with the real thing.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	repo := repositories.NewMockUserRepository()
	store := otp.NewMemoryStore(otp.DefaultTTL)
	t.Cleanup(store.Close)
	mail := newRecordingMailer()

	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"recommendations":[{"title":"Backend Intern"}]}`))
	}))
	t.Cleanup(engine.Close)

	authService := services.NewAuthService(repo, store, mail, "test_jwt_secret", false)
	profileService := services.NewProfileService(repo)
	resumeService := services.NewResumeService(repo, storage.NewLocalStore(t.TempDir()), nil, nil)
	recommendationService := services.NewRecommendationService(repo, engine.URL)

	app := fiber.New()
	auth := middleware.AuthRequired(authService)
	users := app.Group("/api/v1/users")
	handlers.NewAuthHandler(authService).RegisterRoutes(users, auth)
	profileHandler := handlers.NewProfileHandler(profileService)
	profileHandler.RegisterRoutes(users, auth)
	handlers.NewResumeHandler(resumeService).RegisterRoutes(users, auth)
	handlers.NewRecommendationHandler(recommendationService).RegisterRoutes(users, auth)
	profileHandler.RegisterProfileLookup(users, auth)

	return &testEnv{app: app, repo: repo, mail: mail, engine: engine}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, cookie *http.Cookie) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

// registerUser walks the full register + verify flow and returns the
// session cookie.
func registerUser(t *testing.T, env *testEnv, name, email, password string) *http.Cookie {
	t.Helper()

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/v1/users/register",
		map[string]string{"name": name, "email": email, "password": password}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	code := env.mail.codeFor(email)
	require.Len(t, code, 6)

	resp, _ = doJSON(t, env.app, http.MethodPost, "/api/v1/users/verifyOtp/"+token,
		map[string]string{"otp": code}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return sessionCookie(t, resp)
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	env := setupApp(t)

	// Begin registration.
	resp, body := doJSON(t, env.app, http.MethodPost, "/api/v1/users/register",
		map[string]string{"name": "Alice", "email": "a@x.com", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	assert.NotEmpty(t, token)
	// The numeric code is never in the response body.
	_, hasOTP := body["otp"]
	assert.False(t, hasOTP)

	code := env.mail.codeFor("a@x.com")
	require.Len(t, code, 6)

	// A wrong code is rejected with the generic message.
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	resp, body = doJSON(t, env.app, http.MethodPost, "/api/v1/users/verifyOtp/"+token,
		map[string]string{"otp": wrong}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid or expired OTP", body["message"])

	// The correct code still verifies (mismatch did not burn the ticket).
	// The OTP may arrive as a JSON number.
	resp, body = doJSON(t, env.app, http.MethodPost, "/api/v1/users/verifyOtp/"+token,
		map[string]any{"otp": json.RawMessage(code)}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "User registered successfully", body["message"])

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice", user["name"])
	assert.Equal(t, "a@x.com", user["email"])
	// The password hash never appears in any projection.
	_, hasPassword := user["password"]
	assert.False(t, hasPassword)
	_, hasPassword = user["Password"]
	assert.False(t, hasPassword)

	cookie := sessionCookie(t, resp)

	// The ticket is single-use.
	resp, body = doJSON(t, env.app, http.MethodPost, "/api/v1/users/verifyOtp/"+token,
		map[string]string{"otp": code}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid or expired OTP", body["message"])

	// Re-registering the same email is rejected.
	resp, _ = doJSON(t, env.app, http.MethodPost, "/api/v1/users/register",
		map[string]string{"name": "Alice", "email": "a@x.com", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Wrong password and unknown email yield the identical message.
	resp, body = doJSON(t, env.app, http.MethodPost, "/api/v1/users/login",
		map[string]string{"email": "a@x.com", "password": "wrongpass"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	wrongPwMsg := body["message"]

	resp, body = doJSON(t, env.app, http.MethodPost, "/api/v1/users/login",
		map[string]string{"email": "ghost@x.com", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, wrongPwMsg, body["message"])
	assert.Equal(t, "Email or Password Incorrect.", body["message"])

	// Correct login issues a session.
	resp, body = doJSON(t, env.app, http.MethodPost, "/api/v1/users/login",
		map[string]string{"email": "a@x.com", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logged In", body["message"])
	sessionCookie(t, resp)

	// The session cookie works against /me.
	resp, body = doJSON(t, env.app, http.MethodGet, "/api/v1/users/me", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a@x.com", body["email"])
}

func TestPasswordResetFlow(t *testing.T) {
	env := setupApp(t)
	registerUser(t, env, "Alice", "a@x.com", "secret1")

	// Reset for a non-existent email creates nothing.
	resp, body := doJSON(t, env.app, http.MethodPost, "/api/v1/users/forget",
		map[string]string{"email": "ghost@x.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No user found", body["message"])

	resp, body = doJSON(t, env.app, http.MethodPost, "/api/v1/users/forget",
		map[string]string{"email": "a@x.com"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	code := env.mail.codeFor("a@x.com")
	resp, body = doJSON(t, env.app, http.MethodPost, "/api/v1/users/reset-password/"+token,
		map[string]string{"otp": code, "password": "newpass1"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Password reset successful", body["message"])

	// Old password no longer works; the new one does.
	resp, _ = doJSON(t, env.app, http.MethodPost, "/api/v1/users/login",
		map[string]string{"email": "a@x.com", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, env.app, http.MethodPost, "/api/v1/users/login",
		map[string]string{"email": "a@x.com", "password": "newpass1"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProfileSectionUpdates(t *testing.T) {
	env := setupApp(t)
	cookie := registerUser(t, env, "Alice", "a@x.com", "secret1")

	// Basic info.
	resp, body := doJSON(t, env.app, http.MethodPut, "/api/v1/users/profile/basic",
		map[string]any{"gender": "Female", "regionType": "Urban", "dob": "2002-04-01"}, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	steps, _ := body["stepsCompleted"].(map[string]any)
	assert.Equal(t, true, steps["basic"])

	// Education full replace, wire names mapped to model names.
	resp, body = doJSON(t, env.app, http.MethodPut, "/api/v1/users/profile/education",
		map[string]any{"education": []map[string]any{
			{"level": "UG", "degree": "B.Tech", "college": "IIT", "yearOfStudy": "2nd Year", "cgpa": 8.4},
		}}, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	education, _ := body["education"].([]any)
	require.Len(t, education, 1)
	entry, _ := education[0].(map[string]any)
	assert.Equal(t, "B.Tech", entry["degreeName"])
	assert.Equal(t, "IIT", entry["collegeName"])

	// Preferences full replace.
	resp, body = doJSON(t, env.app, http.MethodPut, "/api/v1/users/profile/preferences",
		map[string]any{"preferredSectors": []string{"IT"}, "internshipTypes": []string{"Remote"}}, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	steps, _ = body["stepsCompleted"].(map[string]any)
	assert.Equal(t, true, steps["preferences"])

	// Changing email to another account's address is a 400, not a
	// storage-layer error.
	registerUser(t, env, "Bob", "b@x.com", "secret1")
	resp, body = doJSON(t, env.app, http.MethodPut, "/api/v1/users/profile/basic",
		map[string]any{"email": "b@x.com"}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "An account with this email already exists", body["message"])

	// Projects and certifications full replace.
	resp, body = doJSON(t, env.app, http.MethodPut, "/api/v1/users/profile/projects-certs",
		map[string]any{
			"projects":       []map[string]any{{"title": "Chat App", "description": "Realtime chat"}},
			"certifications": []string{"AWS CCP"},
		}, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	steps, _ = body["stepsCompleted"].(map[string]any)
	assert.Equal(t, true, steps["projectsCerts"])

	// Skills merge; union across calls with order preserved.
	resp, body = doJSON(t, env.app, http.MethodPut, "/api/v1/users/skills",
		map[string]any{"skills": []string{"a", "b"}}, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, env.app, http.MethodPut, "/api/v1/users/skills",
		map[string]any{"skills": []string{"b", "c"}}, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	skills, _ := body["skills"].([]any)
	assert.Equal(t, []any{"a", "b", "c"}, skills)

	// Rejects a non-array skills body.
	resp, _ = doJSON(t, env.app, http.MethodPut, "/api/v1/users/skills",
		map[string]any{"skills": nil}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Updates require a session.
	resp, _ = doJSON(t, env.app, http.MethodPut, "/api/v1/users/skills",
		map[string]any{"skills": []string{"x"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOcrDraftEndpoints(t *testing.T) {
	env := setupApp(t)
	cookie := registerUser(t, env, "Alice", "a@x.com", "secret1")

	// Stage a draft.
	resp, _ := doJSON(t, env.app, http.MethodPost, "/api/v1/users/ocr-draft",
		map[string]any{"skills": []string{"Go"}, "certifications": []string{"AWS CCP"}}, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Fetching the draft does not mutate the profile.
	resp, body := doJSON(t, env.app, http.MethodGet, "/api/v1/users/ocr-draft", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	draftSkills, _ := body["skills"].([]any)
	assert.Equal(t, []any{"Go"}, draftSkills)

	resp, body = doJSON(t, env.app, http.MethodGet, "/api/v1/users/me", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	skills, _ := body["skills"].([]any)
	assert.Empty(t, skills)

	// Apply merges the draft into the profile, once and explicitly.
	resp, body = doJSON(t, env.app, http.MethodPost, "/api/v1/users/ocr-apply", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	skills, _ = body["skills"].([]any)
	assert.Equal(t, []any{"Go"}, skills)
	certs, _ := body["certifications"].([]any)
	assert.Equal(t, []any{"AWS CCP"}, certs)
}

func TestResumeExtractEndpoint(t *testing.T) {
	env := setupApp(t)
	cookie := registerUser(t, env, "Alice", "a@x.com", "secret1")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "resume.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("Skills:\nGo, SQL\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/resume/extract", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.AddCookie(cookie)

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	draft, ok := body["ocrDraft"].(map[string]any)
	require.True(t, ok)
	skills, _ := draft["skills"].([]any)
	assert.Equal(t, []any{"Go", "SQL"}, skills)

	// Extraction stages a draft; it never touches the profile itself.
	_, me := doJSON(t, env.app, http.MethodGet, "/api/v1/users/me", nil, cookie)
	profileSkills, _ := me["skills"].([]any)
	assert.Empty(t, profileSkills)
}

func TestRecommendationsEndpoint(t *testing.T) {
	env := setupApp(t)
	cookie := registerUser(t, env, "Alice", "a@x.com", "secret1")

	resp, body := doJSON(t, env.app, http.MethodGet, "/api/v1/users/recommendations?top_n=3", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	recs, ok := body["recommendations"].([]any)
	require.True(t, ok)
	assert.Len(t, recs, 1)

	// Requires a session.
	resp, _ = doJSON(t, env.app, http.MethodGet, "/api/v1/users/recommendations", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProfileLookupByID(t *testing.T) {
	env := setupApp(t)
	cookie := registerUser(t, env, "Alice", "a@x.com", "secret1")

	_, me := doJSON(t, env.app, http.MethodGet, "/api/v1/users/me", nil, cookie)
	id, _ := me["id"].(string)
	require.NotEmpty(t, id)

	resp, body := doJSON(t, env.app, http.MethodGet, "/api/v1/users/"+id, nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Alice", body["name"])
	_, hasPassword := body["password"]
	assert.False(t, hasPassword)

	resp, _ = doJSON(t, env.app, http.MethodGet, "/api/v1/users/does-not-exist", nil, cookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	env := setupApp(t)
	cookie := registerUser(t, env, "Alice", "a@x.com", "secret1")

	resp, body := doJSON(t, env.app, http.MethodGet, "/api/v1/users/logout", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logged out successfully", body["message"])

	// The cookie is cleared client-side.
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			assert.Empty(t, c.Value)
		}
	}
}
