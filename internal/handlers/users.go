package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/apperr"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/assets"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ProfileStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
	UpdateAccountDetails(ctx context.Context, userID uuid.UUID, fullName, email string) (*storage.User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, url, handle string) (*storage.User, error)
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, url, handle string) (*storage.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, encoded string) (bool, error)
}

type UserHandler struct {
	Store   ProfileStore
	Assets  assets.Storage
	Hasher  PasswordHasher
	Logger  *slog.Logger
	Env     string
	TempDir string
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
}

func (h *UserHandler) RegisterRoutes(r *gin.Engine, verifier AccessVerifier) {
	authed := r.Group("/api/v1/users", AuthRequired(verifier))
	authed.GET("/current-user", h.Me)
	authed.POST("/change-password", h.ChangePassword)
	authed.PATCH("/update-account", h.UpdateAccount)
	authed.PATCH("/avatar", h.UpdateAvatar)
	authed.PATCH("/cover-image", h.UpdateCoverImage)
}

func (h *UserHandler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.NewPassword) == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_INPUT", Message: "old and new passwords are required"})
		return
	}

	// The context user is sanitized; re-read for the stored hash.
	stored, err := h.Store.GetUserByID(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.Logger, h.Env, apperr.Wrap(apperr.CodePersistenceError, "user lookup failed", err))
		return
	}

	ok, err = h.Hasher.Compare(req.OldPassword, stored.PasswordHash)
	if err != nil || !ok {
		respondError(c, h.Logger, h.Env, apperr.New(apperr.CodeInvalidCredentials, "old password is incorrect"))
		return
	}

	newHash, err := h.Hasher.Hash(req.NewPassword)
	if err != nil {
		respondError(c, h.Logger, h.Env, apperr.Wrap(apperr.CodeInternal, "hash password failed", err))
		return
	}

	if err := h.Store.UpdatePassword(c.Request.Context(), user.ID, newHash); err != nil {
		respondError(c, h.Logger, h.Env, apperr.Wrap(apperr.CodePersistenceError, "update password failed", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *UserHandler) UpdateAccount(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_INPUT", Message: "fullname and email are required"})
		return
	}

	updated, err := h.Store.UpdateAccountDetails(c.Request.Context(), user.ID, strings.TrimSpace(req.FullName), strings.TrimSpace(req.Email))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			respondError(c, h.Logger, h.Env, apperr.Wrap(apperr.CodeAlreadyExists, "email already in use", err))
		case errors.Is(err, pgx.ErrNoRows):
			respondError(c, h.Logger, h.Env, apperr.Wrap(apperr.CodeNotFound, "user not found", err))
		default:
			respondError(c, h.Logger, h.Env, apperr.Wrap(apperr.CodePersistenceError, "update account failed", err))
		}
		return
	}

	c.JSON(http.StatusOK, newUserResponse(updated))
}

func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	h.updateAsset(c, assets.RoleAvatar)
}

func (h *UserHandler) UpdateCoverImage(c *gin.Context) {
	h.updateAsset(c, assets.RoleCoverImage)
}

// updateAsset uploads a replacement asset, persists its reference, and only
// then deletes the superseded remote asset (best effort). A persistence
// failure deletes the fresh upload instead, so neither path leaves an
// unreferenced remote asset behind.
func (h *UserHandler) updateAsset(c *gin.Context, role string) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	file, err := c.FormFile(role)
	if err != nil {
		respondError(c, h.Logger, h.Env, apperr.New(apperr.CodeMissingAsset, role+" file is missing"))
		return
	}

	path, cleanup, err := saveTempFile(c, file, h.TempDir)
	if err != nil {
		respondError(c, h.Logger, h.Env, apperr.Wrap(apperr.CodeInternal, "store upload failed", err))
		return
	}
	defer cleanup()

	url, handle, err := h.Assets.Upload(c.Request.Context(), path)
	if err != nil {
		respondError(c, h.Logger, h.Env, apperr.Wrap(apperr.CodeUploadFailed, "failed to upload "+role, err))
		return
	}

	var updated *storage.User
	var oldHandle string
	if role == assets.RoleAvatar {
		oldHandle = user.AvatarHandle
		updated, err = h.Store.UpdateAvatar(c.Request.Context(), user.ID, url, handle)
	} else {
		oldHandle = user.CoverHandle
		updated, err = h.Store.UpdateCoverImage(c.Request.Context(), user.ID, url, handle)
	}
	if err != nil {
		if delErr := h.Assets.Delete(c.Request.Context(), handle); delErr != nil {
			h.Logger.Error("orphaned asset cleanup failed", "role", role, "handle", handle, "error", delErr)
		}
		respondError(c, h.Logger, h.Env, apperr.Wrap(apperr.CodePersistenceError, "update "+role+" failed", err))
		return
	}

	if oldHandle != "" {
		if delErr := h.Assets.Delete(c.Request.Context(), oldHandle); delErr != nil {
			h.Logger.Error("superseded asset delete failed", "role", role, "handle", oldHandle, "error", delErr)
		}
	}

	c.JSON(http.StatusOK, newUserResponse(updated))
}
