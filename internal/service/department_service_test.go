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

func TestDepartmentCreateIsIdempotentByName(t *testing.T) {
	r := newRepos(t, true)
	svc := NewDepartmentService(r.departments, r.types, nil, nil)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, dto.DepartmentRequest{College: "飞行技术学院", Grade: "2024级"})
	requireAppError(t, err, http.StatusBadRequest, "均不能为空")

	existing, created, err := svc.Create(ctx, dto.DepartmentRequest{College: "民航与航空学院", Grade: "2023级", Major: "机械", ClassName: "241班"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 101, existing.Department.ID)

	_, _, err = svc.Create(ctx, dto.DepartmentRequest{College: "飞行技术学院", Grade: "2024级", Major: "飞行技术", ClassName: "2401班", BonusStartDate: "2024/09/01"})
	requireAppError(t, err, http.StatusBadRequest, "应为 YYYY-MM-DD")

	resp, created, err := svc.Create(ctx, dto.DepartmentRequest{
		College:        " 飞行技术学院 ",
		Grade:          "2024级",
		Major:          "飞行技术",
		ClassName:      "2401班",
		BonusStartDate: "2024-09-01",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Greater(t, resp.Department.ID, 104)
	assert.Equal(t, "飞行技术学院", resp.Department.College)
	assert.Equal(t, models.DefaultBaseScore, resp.Department.BaseScore)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, list.Total)
}

func TestDepartmentUpdateAndDelete(t *testing.T) {
	r := newRepos(t, true)
	svc := NewDepartmentService(r.departments, r.types, nil, nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, 101, dto.DepartmentRequest{College: "民航与航空学院", Grade: "2023级", Major: "机械", ClassName: "242班"})
	requireAppError(t, err, http.StatusConflict, "同名部门已存在")

	score := 90
	updated, err := svc.Update(ctx, 101, dto.DepartmentRequest{College: "民航与航空学院", Grade: "2023级", Major: "机械", ClassName: "241A班", BaseScore: &score})
	require.NoError(t, err)
	assert.Equal(t, "部门更新成功", updated.Message)
	assert.Equal(t, 90, updated.Department.BaseScore)
	assert.Equal(t, "2023-09-01", updated.Department.BonusStartDate)

	_, err = svc.Delete(ctx, 101)
	requireAppError(t, err, http.StatusConflict, "部门下仍有学生")

	_, err = svc.Get(ctx, 999)
	requireAppError(t, err, http.StatusNotFound, "部门不存在")

	empty, _, err := svc.Create(ctx, dto.DepartmentRequest{College: "临时学院", Grade: "2025级", Major: "测试", ClassName: "1班"})
	require.NoError(t, err)
	msg, err := svc.Delete(ctx, empty.Department.ID)
	require.NoError(t, err)
	assert.Equal(t, "部门删除成功", msg.Message)
}

func TestDepartmentBindCertificateTypes(t *testing.T) {
	r := newRepos(t, true)
	svc := NewDepartmentService(r.departments, r.types, nil, nil)
	ctx := context.Background()

	_, err := svc.BindCertificateTypes(ctx, 101, dto.BindCertificatesRequest{CertificateTypeIDs: []int{1, 99}})
	requireAppError(t, err, http.StatusBadRequest, "以下证书类型ID不存在: [99]")

	resp, err := svc.BindCertificateTypes(ctx, 101, dto.BindCertificatesRequest{CertificateTypeIDs: []int{2, 1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "证书配置已保存", resp.Message)
	assert.Equal(t, []int{1, 2}, resp.Department.CertificateTypeIDs)

	stored, err := r.departments.FindByID(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, stored.CertificateTypeIDs)
}

func TestCertificateTypeLifecycle(t *testing.T) {
	r := newRepos(t, true)
	svc := NewCertificateTypeService(r.types, r.departments, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.CertificateTypeRequest{Name: " "})
	requireAppError(t, err, http.StatusBadRequest, "证书类型名称不能为空")

	_, err = svc.Create(ctx, dto.CertificateTypeRequest{Name: "大学英语四级"})
	requireAppError(t, err, http.StatusConflict, "证书类型已存在")

	created, err := svc.Create(ctx, dto.CertificateTypeRequest{Name: "雅思成绩单", Description: "IELTS", IsRequired: true})
	require.NoError(t, err)
	assert.Equal(t, "证书类型创建成功", created.Message)
	assert.True(t, created.CertificateType.IsRequired)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, list.Total)

	msg, err := svc.Delete(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "证书类型删除成功", msg.Message)

	dept, err := r.departments.FindByID(ctx, 102)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, dept.CertificateTypeIDs)

	_, err = svc.Delete(ctx, 3)
	requireAppError(t, err, http.StatusNotFound, "证书类型不存在")
}
