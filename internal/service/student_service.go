package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

const (
	validStagesText   = "preliminary, medical, political, admission"
	validStatusesText = "pending, qualified, unqualified"
	maxImportErrors   = 100
)

// Import spreadsheet columns.
const (
	ColumnStudentID = "学号"
	ColumnName      = "姓名"
	ColumnIDCardNo  = "身份证号"
	ColumnBaseScore = "基础分"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id int) (*models.Student, error)
	ExistsByStudentID(ctx context.Context, studentID string, excludeID int) (bool, error)
	Identifiers(ctx context.Context) (studentIDs, idCards map[string]struct{}, err error)
	Create(ctx context.Context, students ...*models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

type scoreLogRepository interface {
	ListByUser(ctx context.Context, userID int) ([]models.ScoreLog, error)
	Create(ctx context.Context, log *models.ScoreLog) error
}

type commentRepository interface {
	ListByUser(ctx context.Context, userID int) ([]models.Comment, error)
	Create(ctx context.Context, comment *models.Comment) error
}

type certificateViewer interface {
	ViewsForStudent(ctx context.Context, userID int) ([]models.CertificateView, error)
}

// StudentListQuery carries the admin student list parameters.
type StudentListQuery struct {
	Page         int
	PerPage      int
	DepartmentID int
	Filter       string
	Keyword      string
	StatusStage  string
	StatusValue  string
}

// StudentServiceConfig tunes imports.
type StudentServiceConfig struct {
	// PasswordCost is the bcrypt cost for imported students' initial
	// passwords. Zero means bcrypt.DefaultCost.
	PasswordCost int
}

// StudentServiceParams groups constructor dependencies.
type StudentServiceParams struct {
	Students     studentRepository
	ScoreLogs    scoreLogRepository
	Comments     commentRepository
	Departments  departmentFinder
	Certificates certificateViewer
	Cache        *CacheService
	Logger       *zap.Logger
	Config       StudentServiceConfig
}

// StudentService implements the admin student management use cases.
type StudentService struct {
	students     studentRepository
	scoreLogs    scoreLogRepository
	comments     commentRepository
	departments  departmentFinder
	certificates certificateViewer
	cache        *CacheService
	logger       *zap.Logger
	cfg          StudentServiceConfig
	now          func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(params StudentServiceParams) *StudentService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := params.Config
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	return &StudentService{
		students:     params.Students,
		scoreLogs:    params.ScoreLogs,
		comments:     params.Comments,
		departments:  params.Departments,
		certificates: params.Certificates,
		cache:        params.Cache,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// List returns one page of the students admin may see.
func (s *StudentService) List(ctx context.Context, admin *models.Admin, q StudentListQuery) (*dto.Page[dto.StudentItem], error) {
	page, perPage := dto.Normalize(q.Page, q.PerPage)
	filter := models.StudentFilter{DepartmentIDs: departmentScope(admin), Page: page, PerPage: perPage}

	if q.DepartmentID > 0 {
		if !admin.Manages(q.DepartmentID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "无权访问该部门")
		}
		if _, err := s.department(ctx, q.DepartmentID, "部门不存在"); err != nil {
			return nil, err
		}
		filter.DepartmentIDs = []int{q.DepartmentID}
	}

	if q.StatusStage != "" {
		stage := models.Stage(q.StatusStage)
		if !stage.Valid() {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "无效的阶段名称: %s，支持的值: %s", q.StatusStage, validStagesText)
		}
		if q.StatusValue != "" {
			value := models.StageStatus(q.StatusValue)
			if !value.Valid() {
				return nil, appErrors.Clonef(appErrors.ErrValidation, "无效的状态值: %s，支持的值: %s", q.StatusValue, validStatusesText)
			}
			filter.StatusStage = stage
			filter.StatusValue = value
		}
	}

	keyword := strings.TrimSpace(q.Keyword)
	if q.Filter != "" && keyword != "" {
		switch q.Filter {
		case models.FilterName, models.FilterStudentID, models.FilterClassName:
			filter.Filter = q.Filter
			filter.Keyword = keyword
		default:
			return nil, appErrors.Clonef(appErrors.ErrValidation, "无效的筛选类型: %s，支持的类型: name/student_id/class_name", q.Filter)
		}
	}

	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	items := make([]dto.StudentItem, 0, len(students))
	for _, st := range students {
		items = append(items, s.item(ctx, st))
	}
	out := dto.NewPage(items, total, page, perPage)
	return &out, nil
}

// Detail returns a student with comments and certificates.
func (s *StudentService) Detail(ctx context.Context, admin *models.Admin, id int) (*dto.StudentDetail, error) {
	student, err := s.authorize(ctx, admin, id, "无权访问该学生信息")
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByUser(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	certs, err := s.certificates.ViewsForStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.StudentDetail{Student: s.item(ctx, *student), Comments: comments, Certificates: certs}, nil
}

// UpdateStatus sets one stage outcome.
func (s *StudentService) UpdateStatus(ctx context.Context, admin *models.Admin, id int, req dto.StatusUpdateRequest) (*dto.StatusUpdateResponse, error) {
	if req.Stage == "" || req.Status == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stage 和 status 不能为空")
	}
	if !req.Stage.Valid() {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "无效的阶段: %s，支持: %s", req.Stage, validStagesText)
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "无效的状态: %s，支持: %s", req.Status, validStatusesText)
	}
	student, err := s.authorize(ctx, admin, id, "无权操作该学生")
	if err != nil {
		return nil, err
	}

	student.ProcessStatus.Set(req.Stage, req.Status)
	if err := s.students.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "更新状态失败")
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("student status updated", zap.Int("student_id", id), zap.String("stage", string(req.Stage)), zap.String("status", string(req.Status)))

	updated, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload student")
	}
	return &dto.StatusUpdateResponse{Message: "状态更新成功", Student: s.item(ctx, *updated)}, nil
}

// UpdateArchive applies profile edits, stage outcomes and an optional new
// comment. Everything is validated before anything is written.
func (s *StudentService) UpdateArchive(ctx context.Context, admin *models.Admin, id int, req dto.ArchiveUpdateRequest) (*dto.Message, error) {
	student, err := s.authorize(ctx, admin, id, "无权操作该学生")
	if err != nil {
		return nil, err
	}

	if info := req.BaseInfo; info != nil {
		if err := s.applyBaseInfo(ctx, admin, student, info); err != nil {
			return nil, err
		}
	}

	for _, stage := range sortedStages(req.ProcessStatus) {
		status := req.ProcessStatus[stage]
		if !stage.Valid() {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "无效的阶段名称: %s，支持的值: %s", stage, validStagesText)
		}
		if !status.Valid() {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "无效的状态值: %s，支持的值: %s", status, validStatusesText)
		}
		student.ProcessStatus.Set(stage, status)
	}

	if err := s.students.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "档案更新失败")
	}
	if content := strings.TrimSpace(req.NewComment); content != "" {
		comment := &models.Comment{UserID: id, AdminID: admin.ID, AdminName: admin.Name, Content: content, CreateTime: s.now().UTC()}
		if err := s.comments.Create(ctx, comment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "档案更新失败")
		}
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("student archive updated", zap.Int("student_id", id), zap.Int("admin_id", admin.ID))
	return &dto.Message{Code: 200, Message: "档案更新成功"}, nil
}

func (s *StudentService) applyBaseInfo(ctx context.Context, admin *models.Admin, student *models.Student, info *dto.ArchiveBaseInfo) error {
	if info.Name != nil {
		student.Name = strings.TrimSpace(*info.Name)
	}
	if info.StudentID != nil {
		next := strings.TrimSpace(*info.StudentID)
		if next != "" && next != student.StudentID {
			exists, err := s.students.ExistsByStudentID(ctx, next, student.ID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student id")
			}
			if exists {
				return appErrors.Clonef(appErrors.ErrValidation, "学号 %s 已被其他学生使用", next)
			}
		}
		student.StudentID = next
	}
	if info.DepartmentID != nil {
		deptID := *info.DepartmentID
		if _, err := s.department(ctx, deptID, fmt.Sprintf("部门ID %d 不存在", deptID)); err != nil {
			return err
		}
		if !admin.Manages(deptID) {
			return appErrors.Clone(appErrors.ErrForbidden, "无权将学生分配到该部门")
		}
		student.DepartmentID = deptID
	}
	if info.BaseScore != nil {
		student.BaseScore = *info.BaseScore
	}
	if info.Credits != nil {
		credits := *info.Credits
		student.Credits = &credits
	}
	if info.GPA != nil {
		gpa := *info.GPA
		if gpa < 0 || gpa > 5 {
			return appErrors.Clone(appErrors.ErrValidation, "gpa 必须在 0~5 之间")
		}
		student.GPA = &gpa
	}
	if info.Birthplace != nil {
		student.Birthplace = strings.TrimSpace(*info.Birthplace)
	}
	if info.Phone != nil {
		student.Phone = strings.TrimSpace(*info.Phone)
	}
	if info.Ethnicity != nil {
		student.Ethnicity = strings.TrimSpace(*info.Ethnicity)
	}
	if info.PoliticalAffiliation != nil {
		student.PoliticalAffiliation = strings.TrimSpace(*info.PoliticalAffiliation)
	}
	return nil
}

// ScoreLogs pages a student's score changes newest first. Running totals are
// computed over every change regardless of typeCode.
func (s *StudentService) ScoreLogs(ctx context.Context, admin *models.Admin, id, page, limit, typeCode int) (*dto.ScoreLogResponse, error) {
	student, err := s.authorize(ctx, admin, id, "无权访问该学生信息")
	if err != nil {
		return nil, err
	}
	page, limit = dto.Normalize(page, limit)

	var only models.ScoreType
	if typeCode != 0 {
		t, ok := models.ScoreTypeFromCode(typeCode)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "无效的类型参数，支持的值：1（人工调整）或 2（系统自动）")
		}
		only = t
	}

	logs, err := s.scoreLogs.ListByUser(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list score logs")
	}

	before := make(map[int]int, len(logs))
	running := student.BaseScore
	for _, l := range logs {
		before[l.ID] = running
		running += l.Delta
	}

	items := make([]dto.ScoreLogItem, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		l := logs[i]
		if only != "" && l.Type != only {
			continue
		}
		items = append(items, scoreLogItem(l, before[l.ID]))
	}
	total := len(items)
	return &dto.ScoreLogResponse{
		Code:    200,
		Message: "success",
		Data:    dto.ScoreLogPage{Items: dto.Slice(items, page, limit), Total: total},
	}, nil
}

func scoreLogItem(l models.ScoreLog, old int) dto.ScoreLogItem {
	item := dto.ScoreLogItem{
		ID:           l.ID,
		OldScore:     old,
		NewScore:     old + l.Delta,
		ChangeAmount: l.Delta,
		Reason:       l.Reason,
		Type:         1,
		CreateTime:   l.CreateTime,
		OperatorName: "管理员",
	}
	if l.Type == models.ScoreSystem {
		item.Type = 2
		item.OperatorName = "系统"
	}
	return item
}

// AdjustScore records a manual score change.
func (s *StudentService) AdjustScore(ctx context.Context, admin *models.Admin, req dto.ScoreAdjustRequest) (*dto.ScoreAdjustResponse, error) {
	switch {
	case req.UserID == nil:
		return nil, appErrors.Clone(appErrors.ErrValidation, "user_id 不能为空")
	case req.Delta == nil:
		return nil, appErrors.Clone(appErrors.ErrValidation, "delta 不能为空")
	case *req.Delta == 0:
		return nil, appErrors.Clone(appErrors.ErrValidation, "变动分数不能为0")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason 不能为空")
	}
	student, err := s.authorize(ctx, admin, *req.UserID, "无权操作该学生")
	if err != nil {
		return nil, err
	}

	log := &models.ScoreLog{UserID: student.ID, Delta: *req.Delta, Reason: reason, Type: models.ScoreManual, CreateTime: s.now().UTC()}
	if err := s.scoreLogs.Create(ctx, log); err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "学生不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "积分调整失败")
	}
	s.logger.Info("score adjusted", zap.Int("student_id", student.ID), zap.Int("delta", log.Delta), zap.Int("admin_id", admin.ID))

	return &dto.ScoreAdjustResponse{
		Message:       "积分调整成功",
		ScoreLog:      *log,
		NewTotalScore: student.TotalScore + log.Delta,
	}, nil
}

// AddComment stores an evaluation signed with the admin's name.
func (s *StudentService) AddComment(ctx context.Context, admin *models.Admin, id int, req dto.CommentRequest) (*dto.CommentResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content 不能为空")
	}
	if _, err := s.authorize(ctx, admin, id, "无权操作该学生"); err != nil {
		return nil, err
	}
	comment := &models.Comment{UserID: id, AdminID: admin.ID, AdminName: admin.Name, Content: content, CreateTime: s.now().UTC()}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "添加评语失败")
	}
	return &dto.CommentResponse{Message: "评语添加成功", Comment: *comment}, nil
}

func (s *StudentService) authorize(ctx context.Context, admin *models.Admin, id int, denied string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "学生不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !admin.Manages(student.DepartmentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, denied)
	}
	return student, nil
}

func (s *StudentService) department(ctx context.Context, id int, missing string) (*models.Department, error) {
	dept, err := s.departments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, missing)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return dept, nil
}

func (s *StudentService) item(ctx context.Context, st models.Student) dto.StudentItem {
	item := dto.StudentItem{Student: st}
	if dept, err := s.departments.FindByID(ctx, st.DepartmentID); err == nil {
		item.Department = dept
	}
	return item
}

// sortedStages returns the stages of m in pipeline order.
func sortedStages(m map[models.Stage]models.StageStatus) []models.Stage {
	out := make([]models.Stage, 0, len(m))
	for stage := range m {
		out = append(out, stage)
	}
	sort.Slice(out, func(i, j int) bool { return stageIndex(out[i]) < stageIndex(out[j]) })
	return out
}

func stageIndex(stage models.Stage) int {
	for i, s := range models.Stages {
		if s == stage {
			return i
		}
	}
	return len(models.Stages)
}
