package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/middleware"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

type fakeDashboardSrv struct {
	resp     *dto.DashboardStats
	hit      bool
	err      error
	lastUser *models.Admin
}

func (f *fakeDashboardSrv) Stats(_ context.Context, admin *models.Admin) (*dto.DashboardStats, bool, error) {
	f.lastUser = admin
	return f.resp, f.hit, f.err
}

func dashboardContext(admin *models.Admin) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/admin/dashboard/stats", nil)
	if admin != nil {
		c.Set(middleware.ContextAdminKey, admin)
	}
	return c, w
}

func TestDashboardHandlerRequiresAdmin(t *testing.T) {
	c, w := dashboardContext(nil)
	NewDashboardHandler(&fakeDashboardSrv{}).Stats(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDashboardHandlerCacheHit(t *testing.T) {
	admin := &models.Admin{ID: 2, Role: models.RoleNormal, DepartmentIDs: []int{101}}
	srv := &fakeDashboardSrv{resp: &dto.DashboardStats{StudentTotal: 50, DepartmentTotal: 1}, hit: true}
	c, w := dashboardContext(admin)

	NewDashboardHandler(srv).Stats(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get(middleware.CacheHeader))
	assert.Same(t, admin, srv.lastUser)
	var body dto.DashboardStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 50, body.StudentTotal)
}

func TestDashboardHandlerServiceError(t *testing.T) {
	c, w := dashboardContext(&models.Admin{ID: 1, Role: models.RoleSuper})
	NewDashboardHandler(&fakeDashboardSrv{err: appErrors.ErrInternal}).Stats(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get(middleware.CacheHeader))
}

func TestDashboardHandlerWithoutService(t *testing.T) {
	c, w := dashboardContext(&models.Admin{ID: 1, Role: models.RoleSuper})
	NewDashboardHandler(nil).Stats(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
