package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/contrail/pkg/export"
)

func rosterWorkbook(t *testing.T, headers []string, rows ...map[string]string) []byte {
	t.Helper()
	data, err := export.NewXLSXExporter("").Render(export.Dataset{Headers: headers, Rows: rows})
	require.NoError(t, err)
	return data
}

func TestImportRoster(t *testing.T) {
	r := newRepos(t, true)
	svc := r.studentService()
	ctx := context.Background()

	headers := []string{ColumnStudentID, ColumnName, ColumnIDCardNo, ColumnBaseScore}
	data := rosterWorkbook(t, headers,
		map[string]string{ColumnStudentID: "202499900001", ColumnName: "王五", ColumnIDCardNo: "11010119990101123x"},
		map[string]string{ColumnStudentID: "202499900002", ColumnName: "重复", ColumnIDCardNo: "510100200001010000"},
		map[string]string{ColumnStudentID: "202499900003", ColumnName: "", ColumnIDCardNo: "110101199901011235"},
		map[string]string{ColumnStudentID: "202499900004", ColumnName: "短号", ColumnIDCardNo: "11010119990101123"},
		map[string]string{ColumnStudentID: "A1", ColumnName: "字母", ColumnIDCardNo: "110101199901011236"},
		map[string]string{ColumnStudentID: "202499900006", ColumnName: "分数", ColumnIDCardNo: "110101199901011237", ColumnBaseScore: "高"},
		map[string]string{ColumnStudentID: "", ColumnName: "无学号", ColumnIDCardNo: "110101199901011238", ColumnBaseScore: "90"},
	)

	resp, err := svc.Import(ctx, teacherAdmin(), 101, "roster.XLSX", data)
	require.NoError(t, err)
	assert.Equal(t, "导入完成", resp.Message)
	assert.Equal(t, 2, resp.Data.SuccessCount)
	assert.Equal(t, 1, resp.Data.SkipCount)
	assert.Equal(t, 4, resp.Data.ErrorCount)
	require.Len(t, resp.Data.Errors, 4)
	assert.Equal(t, 4, resp.Data.Errors[0].Row)
	assert.Equal(t, "姓名为空", resp.Data.Errors[0].Error)
	assert.Equal(t, "身份证号必须为18位", resp.Data.Errors[1].Error)
	assert.Equal(t, "学号必须为纯数字", resp.Data.Errors[2].Error)
	assert.Equal(t, "基础分必须是整数", resp.Data.Errors[3].Error)

	imported, err := r.students.FindByIDCard(ctx, "11010119990101123X")
	require.NoError(t, err)
	assert.Equal(t, "王五", imported.Name)
	assert.Equal(t, 101, imported.DepartmentID)
	assert.Equal(t, 80, imported.BaseScore)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(imported.PasswordHash), []byte("01123X")))

	noID, err := r.students.FindByIDCard(ctx, "110101199901011238")
	require.NoError(t, err)
	assert.Equal(t, 90, noID.BaseScore)

	again, err := svc.Import(ctx, teacherAdmin(), 101, "roster.xlsx", data)
	require.NoError(t, err)
	assert.Zero(t, again.Data.SuccessCount)
	assert.Equal(t, 3, again.Data.SkipCount)
}

func TestImportRejectsBadRequests(t *testing.T) {
	r := newRepos(t, true)
	svc := r.studentService()
	ctx := context.Background()
	data := rosterWorkbook(t, []string{ColumnStudentID, ColumnName, ColumnIDCardNo})

	_, err := svc.Import(ctx, superAdmin(), 101, "roster.csv", data)
	requireAppError(t, err, http.StatusBadRequest, "仅支持 .xlsx 文件")

	_, err = svc.Import(ctx, superAdmin(), 0, "roster.xlsx", data)
	requireAppError(t, err, http.StatusBadRequest, "department_id")

	_, err = svc.Import(ctx, superAdmin(), 999, "roster.xlsx", data)
	requireAppError(t, err, http.StatusNotFound, "部门ID 999 不存在")

	_, err = svc.Import(ctx, teacherAdmin(), 102, "roster.xlsx", data)
	requireAppError(t, err, http.StatusForbidden, "无权将学生导入到部门ID 102")

	_, err = svc.Import(ctx, superAdmin(), 101, "roster.xlsx", []byte("not a workbook"))
	requireAppError(t, err, http.StatusBadRequest, "Excel 文件读取失败")

	partial := rosterWorkbook(t, []string{ColumnName})
	_, err = svc.Import(ctx, superAdmin(), 101, "roster.xlsx", partial)
	requireAppError(t, err, http.StatusBadRequest, "学号, 身份证号")
}
