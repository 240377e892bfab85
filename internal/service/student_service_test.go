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

func TestStudentListScopesAndFilters(t *testing.T) {
	r := newRepos(t, true)
	svc := r.studentService()
	ctx := context.Background()

	page, err := svc.List(ctx, teacherAdmin(), StudentListQuery{PerPage: 100})
	require.NoError(t, err)
	assert.Equal(t, 50, page.Total)
	for _, item := range page.Items {
		assert.Equal(t, 101, item.DepartmentID)
		require.NotNil(t, item.Department)
	}

	_, err = svc.List(ctx, teacherAdmin(), StudentListQuery{DepartmentID: 102})
	requireAppError(t, err, http.StatusForbidden, "无权访问该部门")

	_, err = svc.List(ctx, superAdmin(), StudentListQuery{DepartmentID: 999})
	requireAppError(t, err, http.StatusNotFound, "部门不存在")

	named, err := svc.List(ctx, superAdmin(), StudentListQuery{Filter: models.FilterName, Keyword: " 张三 "})
	require.NoError(t, err)
	require.Equal(t, 1, named.Total)
	assert.Equal(t, 1, named.Items[0].ID)

	unqualified, err := svc.List(ctx, superAdmin(), StudentListQuery{StatusStage: "preliminary", StatusValue: "unqualified"})
	require.NoError(t, err)
	assert.Equal(t, 20, unqualified.Total)

	_, err = svc.List(ctx, superAdmin(), StudentListQuery{StatusStage: "interview"})
	requireAppError(t, err, http.StatusBadRequest, "无效的阶段名称")

	_, err = svc.List(ctx, superAdmin(), StudentListQuery{StatusStage: "medical", StatusValue: "done"})
	requireAppError(t, err, http.StatusBadRequest, "无效的状态值")

	_, err = svc.List(ctx, superAdmin(), StudentListQuery{Filter: "phone", Keyword: "138"})
	requireAppError(t, err, http.StatusBadRequest, "无效的筛选类型")
}

func TestStudentDetail(t *testing.T) {
	r := newRepos(t, true)
	svc := r.studentService()
	ctx := context.Background()

	detail, err := svc.Detail(ctx, teacherAdmin(), 1)
	require.NoError(t, err)
	assert.Equal(t, "张三", detail.Student.Name)
	require.Len(t, detail.Comments, 1)
	assert.Len(t, detail.Certificates, 5)

	_, err = svc.Detail(ctx, teacherAdmin(), 2)
	requireAppError(t, err, http.StatusForbidden, "无权访问该学生信息")

	_, err = svc.Detail(ctx, superAdmin(), 9999)
	requireAppError(t, err, http.StatusNotFound, "学生不存在")
}

func TestStudentUpdateStatus(t *testing.T) {
	r := newRepos(t, true)
	svc := r.studentService()
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, superAdmin(), 1, dto.StatusUpdateRequest{Stage: models.StageMedical})
	requireAppError(t, err, http.StatusBadRequest, "stage 和 status 不能为空")

	_, err = svc.UpdateStatus(ctx, superAdmin(), 1, dto.StatusUpdateRequest{Stage: "final", Status: models.StatusQualified})
	requireAppError(t, err, http.StatusBadRequest, "无效的阶段")

	_, err = svc.UpdateStatus(ctx, teacherAdmin(), 2, dto.StatusUpdateRequest{Stage: models.StageMedical, Status: models.StatusQualified})
	requireAppError(t, err, http.StatusForbidden, "无权操作该学生")

	resp, err := svc.UpdateStatus(ctx, teacherAdmin(), 1, dto.StatusUpdateRequest{Stage: models.StageAdmission, Status: models.StatusQualified})
	require.NoError(t, err)
	assert.Equal(t, "状态更新成功", resp.Message)
	assert.Equal(t, models.StatusQualified, resp.Student.ProcessStatus.Admission)
}

func TestStudentUpdateArchive(t *testing.T) {
	r := newRepos(t, true)
	svc := r.studentService()
	ctx := context.Background()

	_, err := svc.UpdateArchive(ctx, superAdmin(), 1, dto.ArchiveUpdateRequest{
		BaseInfo: &dto.ArchiveBaseInfo{StudentID: strPtr("202410200002")},
	})
	requireAppError(t, err, http.StatusBadRequest, "已被其他学生使用")

	gpa := 5.5
	_, err = svc.UpdateArchive(ctx, superAdmin(), 1, dto.ArchiveUpdateRequest{BaseInfo: &dto.ArchiveBaseInfo{GPA: &gpa}})
	requireAppError(t, err, http.StatusBadRequest, "gpa")

	_, err = svc.UpdateArchive(ctx, teacherAdmin(), 1, dto.ArchiveUpdateRequest{BaseInfo: &dto.ArchiveBaseInfo{DepartmentID: intPtr(102)}})
	requireAppError(t, err, http.StatusForbidden, "无权将学生分配到该部门")

	_, err = svc.UpdateArchive(ctx, superAdmin(), 1, dto.ArchiveUpdateRequest{
		ProcessStatus: map[models.Stage]models.StageStatus{models.StageMedical: "maybe"},
	})
	requireAppError(t, err, http.StatusBadRequest, "无效的状态值")

	gpa = 3.6
	resp, err := svc.UpdateArchive(ctx, teacherAdmin(), 1, dto.ArchiveUpdateRequest{
		BaseInfo: &dto.ArchiveBaseInfo{
			Phone:      strPtr(" 13900000000 "),
			Birthplace: strPtr("四川成都"),
			GPA:        &gpa,
		},
		ProcessStatus: map[models.Stage]models.StageStatus{models.StagePolitical: models.StatusQualified},
		NewComment:    "体检复查通过",
	})
	require.NoError(t, err)
	assert.Equal(t, "档案更新成功", resp.Message)

	student, err := r.students.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "13900000000", student.Phone)
	assert.Equal(t, "四川成都", student.Birthplace)
	require.NotNil(t, student.GPA)
	assert.InDelta(t, 3.6, *student.GPA, 1e-9)
	assert.Equal(t, models.StatusQualified, student.ProcessStatus.Political)

	comments, err := r.comments.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "体检复查通过", comments[0].Content)
	assert.Equal(t, "王老师", comments[0].AdminName)
}

func TestStudentScoreLogsRunningTotals(t *testing.T) {
	r := newRepos(t, true)
	svc := r.studentService()
	ctx := context.Background()

	resp, err := svc.ScoreLogs(ctx, superAdmin(), 1, 1, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, resp.Data.Total)
	require.Len(t, resp.Data.Items, 7)
	latest := resp.Data.Items[0]
	assert.Equal(t, 107, latest.ID)
	assert.Equal(t, 84, latest.OldScore)
	assert.Equal(t, 85, latest.NewScore)
	assert.Equal(t, 2, latest.Type)
	assert.Equal(t, "系统", latest.OperatorName)
	oldest := resp.Data.Items[6]
	assert.Equal(t, 80, oldest.OldScore)

	system, err := svc.ScoreLogs(ctx, superAdmin(), 1, 1, 20, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, system.Data.Total)

	paged, err := svc.ScoreLogs(ctx, superAdmin(), 1, 2, 5, 0)
	require.NoError(t, err)
	assert.Len(t, paged.Data.Items, 2)

	_, err = svc.ScoreLogs(ctx, superAdmin(), 1, 1, 20, 3)
	requireAppError(t, err, http.StatusBadRequest, "无效的类型参数")
}

func TestStudentAdjustScoreAndComment(t *testing.T) {
	r := newRepos(t, true)
	svc := r.studentService()
	ctx := context.Background()

	_, err := svc.AdjustScore(ctx, superAdmin(), dto.ScoreAdjustRequest{Delta: intPtr(1), Reason: "x"})
	requireAppError(t, err, http.StatusBadRequest, "user_id 不能为空")

	_, err = svc.AdjustScore(ctx, superAdmin(), dto.ScoreAdjustRequest{UserID: intPtr(1), Delta: intPtr(0), Reason: "x"})
	requireAppError(t, err, http.StatusBadRequest, "变动分数不能为0")

	_, err = svc.AdjustScore(ctx, superAdmin(), dto.ScoreAdjustRequest{UserID: intPtr(1), Delta: intPtr(2), Reason: " "})
	requireAppError(t, err, http.StatusBadRequest, "reason 不能为空")

	_, err = svc.AdjustScore(ctx, teacherAdmin(), dto.ScoreAdjustRequest{UserID: intPtr(2), Delta: intPtr(2), Reason: "表彰"})
	requireAppError(t, err, http.StatusForbidden, "无权操作该学生")

	resp, err := svc.AdjustScore(ctx, teacherAdmin(), dto.ScoreAdjustRequest{UserID: intPtr(1), Delta: intPtr(3), Reason: "竞赛获奖"})
	require.NoError(t, err)
	assert.Equal(t, 88, resp.NewTotalScore)
	assert.Equal(t, models.ScoreManual, resp.ScoreLog.Type)

	student, err := r.students.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 88, student.TotalScore)

	_, err = svc.AddComment(ctx, teacherAdmin(), 1, dto.CommentRequest{Content: "  "})
	requireAppError(t, err, http.StatusBadRequest, "content 不能为空")

	added, err := svc.AddComment(ctx, teacherAdmin(), 1, dto.CommentRequest{Content: "进步明显"})
	require.NoError(t, err)
	assert.Equal(t, "评语添加成功", added.Message)
	assert.Equal(t, 2, added.Comment.AdminID)
}
