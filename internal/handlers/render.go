package handlers

import (
	"errors"

	"log/slog"

	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/apperr"
	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/storage"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type userResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"coverImage,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

func newUserResponse(u *storage.User) userResponse {
	return userResponse{
		ID:         u.ID.String(),
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.AvatarURL,
		CoverImage: u.CoverImageURL,
		CreatedAt:  u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// respondError maps a classified error to its status class. Causes are only
// echoed back in dev; production responses carry code and message alone.
func respondError(c *gin.Context, logger *slog.Logger, env string, err error) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)

	resp := errorResponse{Code: string(code), Message: "internal error"}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		if env == "dev" && appErr.Cause != nil {
			resp.Detail = appErr.Cause.Error()
		}
	}

	if status >= 500 {
		logger.Error("request failed", "code", resp.Code, "error", err)
	}

	c.JSON(status, resp)
}
