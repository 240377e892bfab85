package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
	"github.com/noah-isme/contrail/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing JWT claims.
	ContextUserKey = "currentUser"
	// ContextAdminKey stores the admin loaded for an admin token.
	ContextAdminKey = "currentAdmin"
)

type tokenValidator interface {
	ValidateToken(tokenString string) (*models.JWTClaims, error)
}

type adminResolver interface {
	tokenValidator
	CurrentAdmin(ctx context.Context, claims *models.JWTClaims) (*models.Admin, error)
}

// AdminJWT requires an admin token and loads the admin it belongs to.
func AdminJWT(auth adminResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, auth)
		if !ok {
			return
		}
		admin, err := auth.CurrentAdmin(c.Request.Context(), claims)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.Set(ContextUserKey, claims)
		c.Set(ContextAdminKey, admin)
		c.Next()
	}
}

// StudentJWT requires a student token.
func StudentJWT(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, auth)
		if !ok {
			return
		}
		if claims.Kind != models.SubjectStudent {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func authenticate(c *gin.Context, auth tokenValidator) (*models.JWTClaims, bool) {
	token, err := bearerToken(c)
	if err != nil {
		response.Abort(c, err)
		return nil, false
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		response.Abort(c, err)
		return nil, false
	}
	return claims, true
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// websocket handshakes, so a token query parameter is accepted as well.
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := strings.TrimSpace(c.Query("token")); token != "" {
			return token, nil
		}
		return "", appErrors.ErrUnauthorized
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "无效的 Authorization 请求头")
	}
	return strings.TrimSpace(parts[1]), nil
}

// Claims returns the verified token claims.
func Claims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

// CurrentAdmin returns the admin attached by AdminJWT.
func CurrentAdmin(c *gin.Context) *models.Admin {
	value, exists := c.Get(ContextAdminKey)
	if !exists {
		return nil
	}
	admin, _ := value.(*models.Admin)
	return admin
}
