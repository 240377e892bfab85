package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

func TestAdminLoginIssuesVerifiableToken(t *testing.T) {
	r := newRepos(t, true)
	svc := r.authService(t)
	ctx := context.Background()

	resp, err := svc.AdminLogin(ctx, models.AdminLoginRequest{Username: "teacher", Password: encrypt(t, "teacher123")})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "王老师", resp.Admin.Name)
	assert.Equal(t, models.RoleNormal, resp.Admin.Role)
	assert.Equal(t, []int{101}, resp.Admin.DepartmentIDs)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 2, claims.UserID)
	assert.Equal(t, models.SubjectAdmin, claims.Kind)

	admin, err := svc.CurrentAdmin(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, "teacher", admin.Username)
}

func TestAdminLoginRejectsBadInput(t *testing.T) {
	r := newRepos(t, true)
	svc := r.authService(t)
	ctx := context.Background()

	_, err := svc.AdminLogin(ctx, models.AdminLoginRequest{Username: " ", Password: "x"})
	requireAppError(t, err, http.StatusBadRequest, "用户名和密码不能为空")

	_, err = svc.AdminLogin(ctx, models.AdminLoginRequest{Username: "admin", Password: "plaintext"})
	assert.True(t, errors.Is(err, appErrors.ErrDecryptPassword))

	_, err = svc.AdminLogin(ctx, models.AdminLoginRequest{Username: "admin", Password: encrypt(t, "wrong")})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.AdminLogin(ctx, models.AdminLoginRequest{Username: "ghost", Password: encrypt(t, "admin123")})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestStudentLogin(t *testing.T) {
	r := newRepos(t, true)
	svc := r.authService(t)
	ctx := context.Background()

	resp, err := svc.StudentLogin(ctx, models.StudentLoginRequest{IDCardNo: "510100200001010000", Password: encrypt(t, "123456")})
	require.NoError(t, err)
	assert.Equal(t, "张三", resp.User.Name)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.SubjectStudent, claims.Kind)

	_, err = svc.CurrentAdmin(ctx, claims)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.StudentLogin(ctx, models.StudentLoginRequest{IDCardNo: "510100200001010000", Password: encrypt(t, "654321")})
	requireAppError(t, err, http.StatusUnauthorized, "身份证号或密码错误")

	_, err = svc.StudentLogin(ctx, models.StudentLoginRequest{})
	requireAppError(t, err, http.StatusBadRequest, "身份证号和密码不能为空")
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	r := newRepos(t, true)
	issuer := r.authService(t)
	other := NewAuthService(r.admins, r.students, loginKeys(t), nil, nil, AuthConfig{AccessTokenSecret: "another-secret"})

	resp, err := issuer.AdminLogin(context.Background(), models.AdminLoginRequest{Username: "admin", Password: encrypt(t, "admin123")})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
	_, err = issuer.ValidateToken("not-a-token")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestStudentProfileMissing(t *testing.T) {
	r := newRepos(t, true)
	_, err := r.authService(t).StudentProfile(context.Background(), 9999)
	requireAppError(t, err, http.StatusNotFound, "用户不存在")
}
