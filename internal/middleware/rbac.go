package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
	"github.com/noah-isme/contrail/pkg/response"
)

// RequireRoles only lets admins with one of roles through. It must run after
// AdminJWT.
func RequireRoles(roles ...models.AdminRole) gin.HandlerFunc {
	allowed := make(map[models.AdminRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		admin := CurrentAdmin(c)
		if admin == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[admin.Role]; !ok {
			response.Abort(c, appErrors.Clone(appErrors.ErrForbidden, "需要超级管理员权限"))
			return
		}
		c.Next()
	}
}

// RequireSuper is RequireRoles(models.RoleSuper).
func RequireSuper() gin.HandlerFunc {
	return RequireRoles(models.RoleSuper)
}
