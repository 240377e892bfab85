package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
)

func TestCertificateListScopedToManagedDepartments(t *testing.T) {
	r := newRepos(t, true)
	svc := r.certificateService()
	ctx := context.Background()

	all, err := svc.List(ctx, superAdmin(), nil, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 10, all.Total)

	scoped, err := svc.List(ctx, teacherAdmin(), nil, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 5, scoped.Total)
	for _, item := range scoped.Items {
		assert.Equal(t, 1, item.UserID)
		require.NotNil(t, item.Student)
		require.NotNil(t, item.Student.Department)
		assert.Equal(t, 101, item.Student.Department.ID)
	}

	pending := models.CertificatePending
	onlyPending, err := svc.List(ctx, superAdmin(), &pending, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, onlyPending.Total)

	orphan := &models.Admin{ID: 9, Role: models.RoleNormal, DepartmentIDs: []int{}}
	empty, err := svc.List(ctx, orphan, nil, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.NotNil(t, empty.Items)

	bad := models.CertificateStatus(7)
	_, err = svc.List(ctx, superAdmin(), &bad, 1, 20)
	requireAppError(t, err, http.StatusBadRequest, "无效的状态")
}

func TestCertificateAudit(t *testing.T) {
	r := newRepos(t, true)
	svc := r.certificateService()
	ctx := context.Background()

	_, err := svc.Audit(ctx, superAdmin(), 1, dto.AuditRequest{})
	requireAppError(t, err, http.StatusBadRequest, "action 不能为空")

	_, err = svc.Audit(ctx, superAdmin(), 1, dto.AuditRequest{Action: "maybe"})
	requireAppError(t, err, http.StatusBadRequest, "无效的 action")

	_, err = svc.Audit(ctx, superAdmin(), 1, dto.AuditRequest{Action: models.AuditReject})
	requireAppError(t, err, http.StatusBadRequest, "reject_reason")

	_, err = svc.Audit(ctx, teacherAdmin(), 2, dto.AuditRequest{Action: models.AuditApprove})
	requireAppError(t, err, http.StatusForbidden, "无权审核该证书")

	_, err = svc.Audit(ctx, superAdmin(), 999, dto.AuditRequest{Action: models.AuditApprove})
	requireAppError(t, err, http.StatusNotFound, "证书不存在")

	rejected, err := svc.Audit(ctx, teacherAdmin(), 1, dto.AuditRequest{Action: models.AuditReject, RejectReason: "信息不全"})
	require.NoError(t, err)
	assert.Equal(t, models.CertificateRejected, rejected.Certificate.Status)
	assert.Equal(t, "信息不全", rejected.Certificate.RejectReason)
	assert.NotNil(t, rejected.Certificate.ReviewTime)

	approved, err := svc.Audit(ctx, teacherAdmin(), 1, dto.AuditRequest{Action: models.AuditApprove, RejectReason: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "审核成功", approved.Message)
	assert.Equal(t, models.CertificateApproved, approved.Certificate.Status)
	assert.Empty(t, approved.Certificate.RejectReason)
}

func TestCertificateStudentFlow(t *testing.T) {
	r := newRepos(t, true)
	svc := r.certificateService()
	ctx := context.Background()

	_, err := svc.Submit(ctx, 1, dto.CertificateUploadRequest{Name: "  "})
	requireAppError(t, err, http.StatusBadRequest, "证书名称和图片URL不能为空")

	_, err = svc.Submit(ctx, 9999, dto.CertificateUploadRequest{Name: "雅思", ImageURL: "https://example.com/a.png"})
	requireAppError(t, err, http.StatusNotFound, "用户不存在")

	created, err := svc.Submit(ctx, 1, dto.CertificateUploadRequest{
		Name:      "雅思",
		ImageURL:  "https://example.com/a.png",
		ExtraData: map[string]interface{}{"total": 7.5},
	})
	require.NoError(t, err)
	assert.Equal(t, models.CertificatePending, created.Certificate.Status)
	assert.Equal(t, "证书上传成功，等待审核", created.Message)

	mine, err := svc.ListForStudent(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, mine.Certificates, 6)
	assert.Equal(t, created.Certificate.ID, mine.Certificates[0].ID)

	got, err := svc.GetForStudent(ctx, 1, created.Certificate.ID)
	require.NoError(t, err)
	assert.Equal(t, "雅思", got.Certificate.Name)

	_, err = svc.GetForStudent(ctx, 2, created.Certificate.ID)
	requireAppError(t, err, http.StatusNotFound, "证书不存在")
}

func TestCertificateTypesForStudentFollowDepartment(t *testing.T) {
	r := newRepos(t, true)
	svc := r.certificateService()
	ctx := context.Background()

	types, err := svc.TypesForStudent(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, types.Total)
	ids := []int{types.Items[0].ID, types.Items[1].ID, types.Items[2].ID}
	assert.ElementsMatch(t, []int{1, 3, 4}, ids)

	dept, err := r.departments.FindByID(ctx, 101)
	require.NoError(t, err)
	dept.CertificateTypeIDs = nil
	require.NoError(t, r.departments.Update(ctx, dept))

	types, err = svc.TypesForStudent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, types.Total)
}
