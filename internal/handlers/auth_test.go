package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/apperr"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/events"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/registration"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/session"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeSessions struct {
	user       *storage.User
	pair       session.TokenPair
	loggedOut  []uuid.UUID
	refreshed  []string
	staleToken bool
}

func (f *fakeSessions) VerifyAccess(_ context.Context, token string) (*storage.User, error) {
	if token != "good-access" {
		return nil, apperr.New(apperr.CodeUnauthorized, "unauthorized")
	}
	clone := *f.user
	return &clone, nil
}

func (f *fakeSessions) Login(_ context.Context, identifier, password string) (*session.TokenPair, *storage.User, error) {
	if password != "s3cret" {
		return nil, nil, apperr.New(apperr.CodeInvalidCredentials, "invalid credentials")
	}
	if identifier != f.user.Username && identifier != f.user.Email {
		return nil, nil, apperr.New(apperr.CodeNotFound, "user not found")
	}
	pair := f.pair
	clone := *f.user
	return &pair, &clone, nil
}

func (f *fakeSessions) Refresh(_ context.Context, presented string) (*session.TokenPair, error) {
	f.refreshed = append(f.refreshed, presented)
	if f.staleToken || presented != f.pair.RefreshToken {
		return nil, apperr.New(apperr.CodeUnauthorized, "unauthorized")
	}
	rotated := session.TokenPair{AccessToken: "rotated-access", RefreshToken: "rotated-refresh"}
	return &rotated, nil
}

func (f *fakeSessions) Logout(_ context.Context, userID uuid.UUID) error {
	f.loggedOut = append(f.loggedOut, userID)
	return nil
}

type fakeRegistrar struct {
	got  registration.Input
	user *storage.User
	err  error
}

func (f *fakeRegistrar) Register(_ context.Context, in registration.Input) (*storage.User, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	clone := *f.user
	return &clone, nil
}

type stubLimiter struct {
	denied     bool
	retryAfter time.Duration
}

func (s stubLimiter) Allow(context.Context, string, time.Time) (bool, time.Duration, error) {
	return !s.denied, s.retryAfter, nil
}

func testUser() *storage.User {
	return &storage.User{
		ID:        uuid.New(),
		Username:  "ada",
		Email:     "ada@x.io",
		FullName:  "Ada Lovelace",
		AvatarURL: "https://images.example.com/ada.png",
		CreatedAt: time.Date(2026, 2, 4, 12, 0, 0, 0, time.UTC),
	}
}

func newAuthRouter(t *testing.T, sessions *fakeSessions, registrar *fakeRegistrar, limiter stubLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &AuthHandler{
		Sessions:    sessions,
		Workflow:    registrar,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		RateLimiter: limiter,
		Clock:       session.SystemClock{},
		Publisher:   events.NopPublisher{},
		Env:         "test",
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  240 * time.Hour,
		TempDir:     t.TempDir(),
	}
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func performRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func performJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return performRequest(r, req)
}

func multipartRegister(t *testing.T, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for part, content := range files {
		fw, err := mw.CreateFormFile(part, part+".png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestRegisterEndpoint(t *testing.T) {
	registrar := &fakeRegistrar{user: testUser()}
	sessions := &fakeSessions{user: registrar.user}
	r := newAuthRouter(t, sessions, registrar, stubLimiter{})

	req := multipartRegister(t,
		map[string]string{"username": "ada", "email": "ada@x.io", "fullname": "Ada Lovelace", "password": "s3cret"},
		map[string]string{"avatar": "avatar-bytes"},
	)
	w := performRequest(r, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if registrar.got.Username != "ada" || registrar.got.Password != "s3cret" {
		t.Fatalf("workflow received wrong input: %+v", registrar.got)
	}
	if registrar.got.AvatarPath == "" {
		t.Fatalf("expected avatar spooled to disk")
	}
	if registrar.got.CoverImagePath != "" {
		t.Fatalf("expected no cover image path, got %q", registrar.got.CoverImagePath)
	}
	content, err := os.ReadFile(registrar.got.AvatarPath)
	if err == nil && string(content) != "avatar-bytes" {
		t.Fatalf("spooled avatar content mismatch: %q", content)
	}

	var resp userResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Username != "ada" || resp.ID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRegisterEndpointMissingAvatar(t *testing.T) {
	registrar := &fakeRegistrar{err: apperr.New(apperr.CodeMissingAsset, "avatar is required")}
	sessions := &fakeSessions{user: testUser()}
	r := newAuthRouter(t, sessions, registrar, stubLimiter{})

	req := multipartRegister(t,
		map[string]string{"username": "ada", "email": "ada@x.io", "fullname": "Ada Lovelace", "password": "s3cret"},
		nil,
	)
	w := performRequest(r, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "MISSING_REQUIRED_ASSET" {
		t.Fatalf("unexpected code %q", resp.Code)
	}
}

func TestRegisterEndpointConflict(t *testing.T) {
	registrar := &fakeRegistrar{err: apperr.New(apperr.CodeAlreadyExists, "username or email already registered")}
	sessions := &fakeSessions{user: testUser()}
	r := newAuthRouter(t, sessions, registrar, stubLimiter{})

	req := multipartRegister(t,
		map[string]string{"username": "ada", "email": "ada@x.io", "fullname": "Ada Lovelace", "password": "s3cret"},
		map[string]string{"avatar": "avatar-bytes"},
	)
	w := performRequest(r, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestLoginEndpoint(t *testing.T) {
	sessions := &fakeSessions{
		user: testUser(),
		pair: session.TokenPair{AccessToken: "acc-1", RefreshToken: "ref-1"},
	}
	r := newAuthRouter(t, sessions, &fakeRegistrar{}, stubLimiter{})

	w := performJSON(r, http.MethodPost, "/api/v1/users/login", `{"username":"ada","password":"s3cret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp authResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken != "acc-1" || resp.RefreshToken != "ref-1" {
		t.Fatalf("unexpected tokens: %+v", resp)
	}
	if resp.User == nil || resp.User.Username != "ada" {
		t.Fatalf("expected user in response")
	}
	if resp.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiresIn %d", resp.ExpiresIn)
	}

	cookies := w.Result().Cookies()
	var names []string
	for _, c := range cookies {
		names = append(names, c.Name)
		if !c.HttpOnly {
			t.Fatalf("cookie %s must be httpOnly", c.Name)
		}
	}
	if len(names) != 2 {
		t.Fatalf("expected accessToken and refreshToken cookies, got %v", names)
	}
}

func TestLoginEndpointByEmail(t *testing.T) {
	sessions := &fakeSessions{user: testUser(), pair: session.TokenPair{AccessToken: "a", RefreshToken: "r"}}
	r := newAuthRouter(t, sessions, &fakeRegistrar{}, stubLimiter{})

	w := performJSON(r, http.MethodPost, "/api/v1/users/login", `{"email":"ada@x.io","password":"s3cret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestLoginEndpointInvalidCredentials(t *testing.T) {
	sessions := &fakeSessions{user: testUser()}
	r := newAuthRouter(t, sessions, &fakeRegistrar{}, stubLimiter{})

	w := performJSON(r, http.MethodPost, "/api/v1/users/login", `{"username":"ada","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("unexpected code %q", resp.Code)
	}
}

func TestLoginEndpointMissingFields(t *testing.T) {
	sessions := &fakeSessions{user: testUser()}
	r := newAuthRouter(t, sessions, &fakeRegistrar{}, stubLimiter{})

	w := performJSON(r, http.MethodPost, "/api/v1/users/login", `{"password":"s3cret"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLoginEndpointRateLimited(t *testing.T) {
	sessions := &fakeSessions{user: testUser()}
	r := newAuthRouter(t, sessions, &fakeRegistrar{}, stubLimiter{denied: true, retryAfter: 30 * time.Second})

	w := performJSON(r, http.MethodPost, "/api/v1/users/login", `{"username":"ada","password":"s3cret"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRefreshEndpointFromBody(t *testing.T) {
	sessions := &fakeSessions{user: testUser(), pair: session.TokenPair{AccessToken: "a", RefreshToken: "ref-1"}}
	r := newAuthRouter(t, sessions, &fakeRegistrar{}, stubLimiter{})

	w := performJSON(r, http.MethodPost, "/api/v1/users/refresh-token", `{"refreshToken":"ref-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp authResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken != "rotated-access" || resp.RefreshToken != "rotated-refresh" {
		t.Fatalf("unexpected tokens: %+v", resp)
	}
}

func TestRefreshEndpointFromCookie(t *testing.T) {
	sessions := &fakeSessions{user: testUser(), pair: session.TokenPair{AccessToken: "a", RefreshToken: "ref-1"}}
	r := newAuthRouter(t, sessions, &fakeRegistrar{}, stubLimiter{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "ref-1"})
	w := performRequest(r, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(sessions.refreshed) != 1 || sessions.refreshed[0] != "ref-1" {
		t.Fatalf("expected cookie token presented, got %v", sessions.refreshed)
	}
}

func TestRefreshEndpointMissingToken(t *testing.T) {
	sessions := &fakeSessions{user: testUser()}
	r := newAuthRouter(t, sessions, &fakeRegistrar{}, stubLimiter{})

	w := performJSON(r, http.MethodPost, "/api/v1/users/refresh-token", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRefreshEndpointStaleToken(t *testing.T) {
	sessions := &fakeSessions{user: testUser(), pair: session.TokenPair{RefreshToken: "ref-1"}, staleToken: true}
	r := newAuthRouter(t, sessions, &fakeRegistrar{}, stubLimiter{})

	w := performJSON(r, http.MethodPost, "/api/v1/users/refresh-token", `{"refreshToken":"ref-1"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "UNAUTHORIZED" {
		t.Fatalf("unexpected code %q", resp.Code)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	user := testUser()
	sessions := &fakeSessions{user: user}
	r := newAuthRouter(t, sessions, &fakeRegistrar{}, stubLimiter{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.Header.Set("Authorization", "Bearer good-access")
	w := performRequest(r, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(sessions.loggedOut) != 1 || sessions.loggedOut[0] != user.ID {
		t.Fatalf("expected logout for %s, got %v", user.ID, sessions.loggedOut)
	}
	for _, c := range w.Result().Cookies() {
		if c.MaxAge >= 0 {
			t.Fatalf("expected cookie %s cleared, got MaxAge=%d", c.Name, c.MaxAge)
		}
	}
}

func TestLogoutEndpointRequiresToken(t *testing.T) {
	sessions := &fakeSessions{user: testUser()}
	r := newAuthRouter(t, sessions, &fakeRegistrar{}, stubLimiter{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	w := performRequest(r, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.Header.Set("Authorization", "Bearer bad-access")
	if w := performRequest(r, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}
}
