package handlers

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"log/slog"

	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/apperr"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/events"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/rate"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/registration"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/session"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/storage"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/libs/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SessionService interface {
	AccessVerifier
	Login(ctx context.Context, identifier, password string) (*session.TokenPair, *storage.User, error)
	Refresh(ctx context.Context, presented string) (*session.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
}

type Registrar interface {
	Register(ctx context.Context, in registration.Input) (*storage.User, error)
}

type AuthHandler struct {
	Sessions    SessionService
	Workflow    Registrar
	Logger      *slog.Logger
	RateLimiter rate.Limiter
	Clock       session.Clock
	Publisher   events.Publisher
	Env         string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	TempDir     string
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	User         *userResponse `json:"user,omitempty"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    int64         `json:"expiresIn"`
}

func (h *AuthHandler) RegisterRoutes(r *gin.Engine) {
	users := r.Group("/api/v1/users")
	users.POST("/register", h.Register)
	users.POST("/login", h.Login)
	users.POST("/refresh-token", h.Refresh)

	authed := users.Group("", AuthRequired(h.Sessions))
	authed.POST("/logout", h.Logout)
}

// Register handles multipart sign-up: text fields plus a required avatar
// file and an optional cover image. Files land in a temp dir for the
// duration of the attempt only.
func (h *AuthHandler) Register(c *gin.Context) {
	in := registration.Input{
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
		FullName: c.PostForm("fullname"),
		Password: c.PostForm("password"),
	}

	for _, role := range []string{"avatar", "coverImage"} {
		file, err := c.FormFile(role)
		if err != nil {
			continue
		}
		path, cleanup, err := saveTempFile(c, file, h.TempDir)
		if err != nil {
			respondError(c, h.Logger, h.Env, apperr.Wrap(apperr.CodeInternal, "store upload failed", err))
			return
		}
		defer cleanup()
		if role == "avatar" {
			in.AvatarPath = path
		} else {
			in.CoverImagePath = path
		}
	}

	user, err := h.Workflow.Register(c.Request.Context(), in)
	if err != nil {
		metrics.RegistrationTotal.WithLabelValues("error").Inc()
		respondError(c, h.Logger, h.Env, err)
		return
	}
	metrics.RegistrationTotal.WithLabelValues("success").Inc()

	h.publish(c.Request.Context(), events.TopicUsers, user.ID.String(), events.UserRegistered{
		Envelope: events.NewEnvelope(events.TypeUserRegistered),
		UserID:   user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
	})

	resp := newUserResponse(user)
	c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_INPUT", Message: "invalid payload"})
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_INPUT", Message: "username or email and password are required"})
		return
	}

	allowed, retryAfter, err := h.RateLimiter.Allow(c.Request.Context(), c.ClientIP(), h.Clock.Now())
	if err != nil {
		h.Logger.Error("rate limiter failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if !allowed {
		c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
		c.JSON(http.StatusTooManyRequests, errorResponse{Code: "RATE_LIMITED", Message: "too many login attempts"})
		return
	}

	pair, user, err := h.Sessions.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		metrics.LoginTotal.WithLabelValues("error").Inc()
		respondError(c, h.Logger, h.Env, err)
		return
	}
	metrics.LoginTotal.WithLabelValues("success").Inc()

	h.publish(c.Request.Context(), events.TopicSessions, user.ID.String(), events.SessionEvent{
		Envelope: events.NewEnvelope(events.TypeSessionStarted),
		UserID:   user.ID.String(),
	})

	h.setAuthCookies(c, pair)
	u := newUserResponse(user)
	c.JSON(http.StatusOK, authResponse{
		User:         &u,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(h.AccessTTL.Seconds()),
	})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	presented := req.RefreshToken
	if presented == "" {
		if cookie, err := c.Cookie("refreshToken"); err == nil {
			presented = cookie
		}
	}
	if presented == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_INPUT", Message: "refresh token is required"})
		return
	}

	pair, err := h.Sessions.Refresh(c.Request.Context(), presented)
	if err != nil {
		respondError(c, h.Logger, h.Env, err)
		return
	}

	h.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(h.AccessTTL.Seconds()),
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	if err := h.Sessions.Logout(c.Request.Context(), user.ID); err != nil {
		respondError(c, h.Logger, h.Env, err)
		return
	}

	h.publish(c.Request.Context(), events.TopicSessions, user.ID.String(), events.SessionEvent{
		Envelope: events.NewEnvelope(events.TypeSessionRevoked),
		UserID:   user.ID.String(),
	})

	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// saveTempFile spools a multipart upload to disk for the duration of one
// request. The cleanup func removes it regardless of outcome.
func saveTempFile(c *gin.Context, file *multipart.FileHeader, dir string) (string, func(), error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, path); err != nil {
		return "", nil, err
	}
	return path, func() { _ = os.Remove(path) }, nil
}

func (h *AuthHandler) setAuthCookies(c *gin.Context, pair *session.TokenPair) {
	secure := h.Env == "prod"
	c.SetCookie("accessToken", pair.AccessToken, int(h.AccessTTL.Seconds()), "/", "", secure, true)
	c.SetCookie("refreshToken", pair.RefreshToken, int(h.RefreshTTL.Seconds()), "/", "", secure, true)
}

func (h *AuthHandler) clearAuthCookies(c *gin.Context) {
	secure := h.Env == "prod"
	c.SetCookie("accessToken", "", -1, "/", "", secure, true)
	c.SetCookie("refreshToken", "", -1, "/", "", secure, true)
}

func (h *AuthHandler) publish(ctx context.Context, topic, key string, event any) {
	if h.Publisher == nil {
		return
	}
	if err := h.Publisher.PublishJSON(ctx, topic, key, event); err != nil {
		h.Logger.Error("event publish failed", "topic", topic, "error", err)
	}
}
