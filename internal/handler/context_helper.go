package handler

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/middleware"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func adminFromContext(c *gin.Context) (*models.Admin, error) {
	admin := middleware.CurrentAdmin(c)
	if admin == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return admin, nil
}

func studentIDFromContext(c *gin.Context) (int, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.Kind != models.SubjectStudent {
		return 0, appErrors.ErrUnauthorized
	}
	return claims.UserID, nil
}

func pathID(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, appErrors.Clonef(appErrors.ErrValidation, "无效的ID: %s", c.Param(name))
	}
	return id, nil
}

// queryInt returns fallback for absent or unparsable values.
func queryInt(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func queryStatus(c *gin.Context) (*models.CertificateStatus, error) {
	raw := strings.TrimSpace(c.Query("status"))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "无效的状态: %s，支持: 0(待审)/1(通过)/2(驳回)", raw)
	}
	status := models.CertificateStatus(n)
	return &status, nil
}

// bindJSON decodes the request body, mapping an empty body to ErrEmptyBody.
func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return appErrors.ErrEmptyBody
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "请求体格式错误")
	}
	return nil
}
