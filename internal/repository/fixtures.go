package repository

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/contrail/internal/models"
)

// Fixture sizes.
const (
	FixtureStudentCount     = 200
	FixtureCertificateCount = 10
)

const fixtureImageURL = "https://fuss10.elemecdn.com/e/5d/4a731a90594a4af544c0c25941171jpeg.jpeg"

// SeedOptions tunes fixture loading.
type SeedOptions struct {
	// PasswordCost is the bcrypt cost for fixture passwords. Zero means
	// bcrypt.DefaultCost.
	PasswordCost int
}

// Seed loads the development dataset into db. Rows already stored under a
// fixture id are overwritten.
func Seed(db *DB, opts SeedOptions) error {
	cost := opts.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash := func(plain string) (string, error) {
		out, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
		if err != nil {
			return "", fmt.Errorf("hash fixture password: %w", err)
		}
		return string(out), nil
	}

	adminHash, err := hash("admin123")
	if err != nil {
		return err
	}
	teacherHash, err := hash("teacher123")
	if err != nil {
		return err
	}
	studentHash, err := hash("123456")
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	created := time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local)

	types := []models.CertificateType{
		{ID: 1, Name: "大学英语四级", Description: "CET-4", IsRequired: true},
		{ID: 2, Name: "大学英语六级", Description: "CET-6", IsRequired: false},
		{ID: 3, Name: "年度体检表", Description: "体检结果", IsRequired: true},
		{ID: 4, Name: "政审材料", Description: "政治审查", IsRequired: true},
	}
	for _, t := range types {
		t.CreateTime = created
		db.certTypes[t.ID] = t
		db.reserve(tableCertTypes, t.ID)
	}

	departments := []models.Department{
		{ID: 101, College: "民航与航空学院", Grade: "2023级", Major: "机械", ClassName: "241班"},
		{ID: 102, College: "民航与航空学院", Grade: "2023级", Major: "机械", ClassName: "242班"},
		{ID: 103, College: "飞行技术学院", Grade: "2023级", Major: "飞行技术", ClassName: "2301班"},
		{ID: 104, College: "飞行技术学院", Grade: "2023级", Major: "飞行技术", ClassName: "2302班"},
	}
	for i := range departments {
		d := &departments[i]
		d.BaseScore = models.DefaultBaseScore
		d.BonusStartDate = "2023-09-01"
		d.CertificateTypeIDs = []int{1, 3, 4}
		d.CreateTime = created
		d.DisplayName = d.Name()
		db.departments[d.ID] = *d
		db.reserve(tableDepartments, d.ID)
	}

	admins := []models.Admin{
		{ID: 1, Username: "admin", Name: "超级管理员", Role: models.RoleSuper, DepartmentIDs: []int{}, PasswordHash: adminHash},
		{ID: 2, Username: "teacher", Name: "王老师", Role: models.RoleNormal, DepartmentIDs: []int{101}, PasswordHash: teacherHash},
	}
	for _, a := range admins {
		a.CreateTime = created
		db.admins[a.ID] = a
		db.reserve(tableAdmins, a.ID)
	}

	for i := 0; i < FixtureStudentCount; i++ {
		dept := departments[i%len(departments)]
		s := models.Student{
			ID:            i + 1,
			StudentID:     fmt.Sprintf("2024%d%05d", dept.ID, i+1),
			Name:          fmt.Sprintf("学生%d", i+1),
			IDCardNo:      fmt.Sprintf("51010020000101%04d", i),
			DepartmentID:  dept.ID,
			BaseScore:     dept.BaseScore,
			ProcessStatus: fixtureProcessStatus(i),
			CreateTime:    created.Add(time.Duration(i) * time.Minute),
			PasswordHash:  studentHash,
		}
		switch i {
		case 0:
			s.Name = "张三"
			s.Phone = "13800000001"
		case 1:
			s.Name = "李四"
			s.Phone = "13800000002"
		}
		db.students[s.ID] = s
		db.reserve(tableStudents, s.ID)
	}

	for i := 0; i < FixtureCertificateCount; i++ {
		c := models.Certificate{
			ID:         i + 1,
			UserID:     i%2 + 1,
			Name:       "计算机二级",
			ImageURL:   fixtureImageURL,
			UploadTime: time.Date(2024, 5, 10+i, 14, 0, 0, 0, time.Local),
		}
		if i%3 == 0 {
			c.Name = "英语四级"
			c.ExtraData = map[string]interface{}{"score": float64(425 + i)}
		}
		switch {
		case i < 3:
			c.Status = models.CertificatePending
		case i < 7:
			c.Status = models.CertificateApproved
		default:
			c.Status = models.CertificateRejected
			c.RejectReason = "图片模糊"
		}
		if c.Status != models.CertificatePending {
			reviewed := c.UploadTime.Add(24 * time.Hour)
			c.ReviewTime = &reviewed
		}
		c.StatusText = c.Status.Text()
		db.certificates[c.ID] = c
		db.reserve(tableCertificates, c.ID)
	}

	logs := []models.ScoreLog{
		{ID: 101, Delta: 2, Reason: "全勤奖励", Type: models.ScoreSystem, CreateTime: time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local)},
		{ID: 102, Delta: -5, Reason: "宿舍卫生不合格", Type: models.ScoreManual, CreateTime: time.Date(2024, 3, 5, 14, 30, 0, 0, time.Local)},
		{ID: 103, Delta: 1, Reason: "积极回答问题", Type: models.ScoreManual, CreateTime: time.Date(2024, 3, 6, 10, 15, 0, 0, time.Local)},
		{ID: 104, Delta: 3, Reason: "参与志愿服务", Type: models.ScoreSystem, CreateTime: time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)},
		{ID: 105, Delta: -2, Reason: "早操迟到", Type: models.ScoreManual, CreateTime: time.Date(2024, 3, 12, 6, 40, 0, 0, time.Local)},
		{ID: 106, Delta: 5, Reason: "获得校级荣誉", Type: models.ScoreManual, CreateTime: time.Date(2024, 3, 15, 16, 0, 0, 0, time.Local)},
		{ID: 107, Delta: 1, Reason: "按时提交作业", Type: models.ScoreSystem, CreateTime: time.Date(2024, 3, 18, 12, 0, 0, 0, time.Local)},
	}
	for _, l := range logs {
		l.UserID = 1
		db.scoreLogs[l.ID] = l
		db.reserve(tableScoreLogs, l.ID)
	}

	comment := models.Comment{
		ID:         1,
		UserID:     1,
		AdminID:    1,
		AdminName:  "超级管理员",
		Content:    "该生在校表现良好，积极参与班级活动。",
		CreateTime: time.Date(2024, 3, 20, 10, 0, 0, 0, time.Local),
	}
	db.comments[comment.ID] = comment
	db.reserve(tableComments, comment.ID)

	return nil
}

func fixtureProcessStatus(i int) models.ProcessStatus {
	status := models.NewProcessStatus()
	status.Preliminary = models.StatusQualified
	if i%10 == 9 {
		status.Preliminary = models.StatusUnqualified
	}
	switch i % 3 {
	case 0:
		status.Medical = models.StatusQualified
	case 1:
		status.Medical = models.StatusPending
	default:
		status.Medical = models.StatusUnqualified
	}
	return status
}
