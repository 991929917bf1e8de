package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/storage"
	"github.com/gin-gonic/gin"
)

const contextUserKey = "currentUser"

// AccessVerifier resolves a bearer token to the identity it names.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, token string) (*storage.User, error)
}

// AuthRequired validates the access token from the Authorization header or
// the accessToken cookie and attaches the resolved user to the request
// context. Downstream handlers read it via CurrentUser; nothing ambient.
func AuthRequired(verifier AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			if cookie, err := c.Cookie("accessToken"); err == nil {
				token = cookie
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing token"})
			return
		}

		user, err := verifier.VerifyAccess(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "unauthorized"})
			return
		}

		c.Set(contextUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the identity attached by AuthRequired.
func CurrentUser(c *gin.Context) (*storage.User, bool) {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*storage.User)
	return user, ok
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
