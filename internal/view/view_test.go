package view

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
)

func TestStatusListFillsPending(t *testing.T) {
	items := StatusList(models.ProcessStatus{
		Preliminary: models.StatusQualified,
		Medical:     "bogus",
	})
	require.Len(t, items, len(models.Stages))
	assert.Equal(t, "初试", items[0].Name)
	assert.Equal(t, "合格", items[0].Label)
	for _, it := range items[1:] {
		assert.Equal(t, models.StatusPending, it.Status)
		assert.Equal(t, "待处理", it.Label)
	}
}

func TestHomeComment(t *testing.T) {
	assert.Equal(t, NoComment, NewHome(nil).CommentText())
	h := NewHome(&dto.StudentDashboard{Score: 92, Comment: "表现良好"})
	assert.Equal(t, 92, h.Score)
	assert.Equal(t, "表现良好", h.CommentText())
	assert.Len(t, h.Statuses, len(models.Stages))
}

func TestMaskIDCard(t *testing.T) {
	assert.Equal(t, "510100********0000", MaskIDCard("510100200001010000"))
	assert.Equal(t, "12345", MaskIDCard("12345"))
	assert.Equal(t, "510100********000X", MaskIDCard("51010020000101000X"))
}

func TestProfileDefaults(t *testing.T) {
	p := NewProfile(nil)
	assert.Equal(t, "未设置", p.Info.Name)
	assert.Equal(t, "未设置", p.Info.IDCard)
	assert.Equal(t, "0", p.Info.Credits)
	assert.Equal(t, "0.0", p.Info.GPA)
	assert.Empty(t, p.English)
	assert.Empty(t, p.Awards)
}

func TestProfileSections(t *testing.T) {
	gpa := 3.6
	p := NewProfile(&dto.StudentProfile{
		UserInfo: dto.ProfileUserInfo{Name: "张三", IDCardNo: "510100200001010001", GPA: &gpa, TotalScore: 85},
		EnglishScores: dto.EnglishScores{
			CET4:  "560",
			IELTS: []dto.IELTSScore{{Date: "2023-06-01", Overall: "6.5", Reading: "7"}},
		},
		Achievements: dto.Achievements{
			Positions: []dto.Position{
				{Organization: "学生会", StartTime: "2022-09"},
				{Role: "班长", EndTime: "2023-06", CollectiveAwards: "无"},
			},
			Awards: []dto.Award{
				{Date: "2023-05", Name: "数学建模", Level: "省级"},
				{},
			},
		},
	})

	assert.Equal(t, "510100********0001", p.Info.IDCard)
	assert.Equal(t, "3.6", p.Info.GPA)
	assert.Equal(t, "85", p.Info.TotalScore)
	assert.Equal(t, []string{"CET-4: 560"}, p.English)

	require.Len(t, p.IELTS, 1)
	assert.Equal(t, "雅思 (2023-06-01)", p.IELTS[0].Title)
	assert.Equal(t, []string{"6.5", "-", "7", "-", "-"}, p.IELTS[0].Values)

	require.Len(t, p.Positions, 2)
	assert.Equal(t, "未填写", p.Positions[0].Role)
	assert.Equal(t, "2022-09 起", p.Positions[0].Period)
	assert.Equal(t, "至 2023-06", p.Positions[1].Period)
	assert.Empty(t, p.Positions[1].CollectiveAwards)

	require.Len(t, p.Awards, 2)
	assert.Equal(t, "获奖时间: 2023-05", p.Awards[0].Title)
	assert.Equal(t, []string{"奖励名称", "级别"}, p.Awards[0].Headers)
	assert.Equal(t, "获奖记录", p.Awards[1].Title)
	assert.Equal(t, []string{"未知奖项"}, p.Awards[1].Values)
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, "a 至 b", Period("a", "b"))
	assert.Equal(t, "", Period("", ""))
}

func TestScoreRows(t *testing.T) {
	at := time.Date(2024, 3, 5, 9, 7, 0, 0, time.Local)
	rows := ScoreRows([]models.ScoreLog{
		{Delta: 5, Reason: "竞赛", Type: models.ScoreManual, CreateTime: at},
		{Delta: -2, Reason: "迟到", Type: models.ScoreSystem},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "+5", rows[0].Delta)
	assert.True(t, rows[0].Positive)
	assert.Equal(t, "2024-03-05 09:07", rows[0].Time)
	assert.Equal(t, "人工调整", rows[0].TypeLabel)
	assert.Equal(t, "-2", rows[1].Delta)
	assert.Empty(t, rows[1].Time)

	assert.Empty(t, NewScoreDetail(nil).Rows)
}

func TestPickerFilter(t *testing.T) {
	p := NewPicker()
	assert.Len(t, p.Filter(""), len(CertificateOptions))
	assert.Equal(t, []string{"英语四级证书 (CET-4)"}, p.Filter("cet-4"))
	assert.Len(t, p.Filter("ncre"), 2)
	assert.Empty(t, NewPicker("a", "b").Filter("z"))
}

func TestCertificateRows(t *testing.T) {
	rows := CertificateRows([]models.Certificate{
		{ID: 1, Status: models.CertificateApproved},
		{ID: 2, Status: models.CertificatePending},
		{ID: 3, Status: models.CertificateRejected},
	})
	assert.Equal(t, RowPassed, rows[0].Status)
	assert.Equal(t, "审核中", rows[1].StatusText)
	assert.False(t, rows[1].Editable)
	assert.Equal(t, RowRejected, rows[2].Status)
	assert.Equal(t, DefaultRejectReason, rows[2].Reason)
	assert.True(t, rows[2].Editable)
}

func TestEditRejectedLocksName(t *testing.T) {
	e := EditRejected(models.Certificate{Name: "教师资格证", RejectReason: "模糊"})
	e.SetName("其他")
	assert.Equal(t, "教师资格证", e.Form.Name)
	assert.Equal(t, "模糊", e.RejectReason)

	fresh := NewCertificateEdit()
	fresh.SetName(" 教师资格证 ")
	assert.Equal(t, "教师资格证", fresh.Form.Name)
}

func formMessage(t *testing.T, err error) string {
	t.Helper()
	var fe *FormError
	require.True(t, errors.As(err, &fe), "expected FormError, got %v", err)
	return fe.Message
}

func TestCertificateFormValidate(t *testing.T) {
	assert.Equal(t, "请选择证书名称", formMessage(t, CertificateForm{}.Validate()))
	assert.Equal(t, "请选择证书名称", formMessage(t, CertificateForm{Name: "  ", ImageURL: "x"}.Validate()))
	assert.Equal(t, "请上传证书凭证", formMessage(t, CertificateForm{Name: "教师资格证"}.Validate()))
	assert.NoError(t, CertificateForm{Name: "教师资格证", ImageURL: "uploads/a.png"}.Validate())
}

func TestDepartmentForm(t *testing.T) {
	assert.Equal(t, "年级不能为空", formMessage(t, DepartmentForm{College: "理学院"}.Validate()))

	form := DepartmentForm{College: "理学院", Grade: "2023", Major: "数学", ClassName: "1班", BonusStartDate: "2023/09/01"}
	assert.Equal(t, "加分开始日期格式应为 YYYY-MM-DD", formMessage(t, form.Validate()))

	form.BonusStartDate = "2023-09-01"
	require.NoError(t, form.Validate())
	req := form.Request()
	require.NotNil(t, req.BaseScore)
	assert.Equal(t, models.DefaultBaseScore, *req.BaseScore)
}

func TestAdminForm(t *testing.T) {
	assert.Equal(t, "用户名不能为空", formMessage(t, AdminForm{Password: "secret1", Name: "王"}.Validate()))
	assert.Equal(t, "密码至少 6 位", formMessage(t, AdminForm{Username: "u", Password: "123", Name: "王"}.Validate()))
	assert.Equal(t, "姓名不能为空", formMessage(t, AdminForm{Username: "u", Password: "secret1"}.Validate()))
	assert.Equal(t, "姓名不能为空", formMessage(t, AdminForm{Username: "u", Password: "secret1", Name: "  ", Role: models.RoleSuper}.Validate()))
	assert.Equal(t, "角色只能是 super 或 normal", formMessage(t, AdminForm{Username: "u", Password: "secret1", Name: "王", Role: "root"}.Validate()))
	assert.ErrorIs(t, AdminForm{Username: "u", Password: "secret1", Name: "王"}.Validate(), ErrDepartmentsRequired)
	assert.NoError(t, AdminForm{Username: "u", Password: "secret1", Name: "王", Role: models.RoleSuper}.Validate())
	assert.NoError(t, AdminForm{Username: "u", Password: "secret1", Name: "王", DepartmentIDs: []int{101}}.Validate())
}
