package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
	"github.com/noah-isme/contrail/pkg/export"
	"github.com/noah-isme/contrail/pkg/jobs"
)

type exportStudentRepository interface {
	ListByDepartment(ctx context.Context, departmentID int) ([]models.Student, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type profileRenderer interface {
	RenderProfile(title string, sections []export.Section) ([]byte, error)
}

var (
	rosterHeaders = []string{"学号", "姓名", "身份证号", "性别", "出生年月", "基础分", "总积分", "初试", "体检", "政审", "录取"}
	scoreHeaders  = []string{"日期", "变动分值", "变动原因", "操作类型"}
)

// ExportWorkerParams groups ExportWorker dependencies.
type ExportWorkerParams struct {
	Tasks        exportTaskStore
	Students     exportStudentRepository
	Departments  departmentFinder
	Certificates portalCertificateRepository
	ScoreLogs    portalScoreLogRepository
	Storage      exportFileStore
	Hub          *ExportHub
	CSV          datasetRenderer
	XLSX         datasetRenderer
	PDF          profileRenderer
	Metrics      *MetricsService
	Logger       *zap.Logger
	Config       ExportConfig
}

// ExportWorker turns queued export jobs into zip archives: a roster as CSV
// and XLSX plus one folder per student holding the score sheet and profile.
type ExportWorker struct {
	tasks        exportTaskStore
	students     exportStudentRepository
	departments  departmentFinder
	certificates portalCertificateRepository
	scoreLogs    portalScoreLogRepository
	storage      exportFileStore
	hub          *ExportHub
	csv          datasetRenderer
	xlsx         datasetRenderer
	pdf          profileRenderer
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          ExportConfig
	now          func() time.Time
}

// NewExportWorker constructs a worker. Nil renderers fall back to the
// package defaults.
func NewExportWorker(params ExportWorkerParams) *ExportWorker {
	cfg := params.Config
	if cfg.DownloadPrefix == "" {
		cfg.DownloadPrefix = "/api/admin/export/download"
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &ExportWorker{
		tasks:        params.Tasks,
		students:     params.Students,
		departments:  params.Departments,
		certificates: params.Certificates,
		scoreLogs:    params.ScoreLogs,
		storage:      params.Storage,
		hub:          params.Hub,
		csv:          params.CSV,
		xlsx:         params.XLSX,
		pdf:          params.PDF,
		metrics:      params.Metrics,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
	if w.hub == nil {
		w.hub = NewExportHub()
	}
	if w.csv == nil {
		w.csv = export.NewCSVExporter(true)
	}
	if w.xlsx == nil {
		w.xlsx = export.NewXLSXExporter("学生名单")
	}
	if w.pdf == nil {
		w.pdf = export.NewPDFExporter("")
	}
	return w
}

// Handle processes one queue job. Returned errors are retried by the queue;
// Fail records the final outcome.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	started := w.now()
	task, err := w.tasks.FindByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	dept, err := w.departments.FindByID(ctx, task.DepartmentID)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			w.finish(ctx, task.TaskID, "部门不存在", started)
			return nil
		}
		return err
	}
	students, err := w.students.ListByDepartment(ctx, dept.ID)
	if err != nil {
		return fmt.Errorf("list students: %w", err)
	}
	if err := w.update(ctx, task.TaskID, func(t *models.ExportTask) {
		t.Status = models.ExportProcessing
		t.Total = len(students)
		t.Progress = 0
		t.Error = ""
	}); err != nil {
		return err
	}

	name := exportArchiveName(task.TaskID)
	if err := w.writeArchive(ctx, task.TaskID, name, *dept, students); err != nil {
		return err
	}

	finished := w.now().UTC()
	if err := w.update(ctx, task.TaskID, func(t *models.ExportTask) {
		t.Status = models.ExportCompleted
		t.Progress = len(students)
		t.FilePath = name
		t.FileName = fmt.Sprintf("%s_%s_学生档案.zip", export.SafeName(orDefault(dept.College, "未知学院")), export.SafeName(orDefault(dept.ClassName, fmt.Sprintf("班级%d", dept.ID))))
		t.DownloadURL = strings.TrimRight(w.cfg.DownloadPrefix, "/") + "/" + t.TaskID
		t.FinishedAt = &finished
	}); err != nil {
		return err
	}
	w.metrics.RecordExport(string(models.ExportCompleted), w.now().Sub(started))
	w.logger.Info("export completed", zap.String("task_id", task.TaskID), zap.Int("students", len(students)))
	return nil
}

// Fail marks a job failed after the queue gave up on it.
func (w *ExportWorker) Fail(job jobs.Job, err error) {
	w.finish(context.Background(), job.ID, fmt.Sprintf("导出过程发生异常: %v", err), job.Queued)
}

func (w *ExportWorker) finish(ctx context.Context, taskID, reason string, started time.Time) {
	now := w.now().UTC()
	_ = w.update(ctx, taskID, func(t *models.ExportTask) {
		t.Status = models.ExportFailed
		t.Error = reason
		t.FinishedAt = &now
	})
	w.metrics.RecordExport(string(models.ExportFailed), w.now().Sub(started))
	w.logger.Warn("export failed", zap.String("task_id", taskID), zap.String("reason", reason))
}

func (w *ExportWorker) update(ctx context.Context, taskID string, fn func(*models.ExportTask)) error {
	task, err := w.tasks.Update(ctx, taskID, fn)
	if err != nil {
		return err
	}
	w.hub.Publish(exportStatus(*task))
	return nil
}

func (w *ExportWorker) writeArchive(ctx context.Context, taskID, name string, dept models.Department, students []models.Student) error {
	file, err := w.storage.Stage(name)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer file.Discard()

	archive := export.NewArchiveWriter(file)
	prefix := export.SafeName(orDefault(dept.College, "未知学院")) + "_" + export.SafeName(orDefault(dept.ClassName, fmt.Sprintf("班级%d", dept.ID)))

	roster := rosterDataset(students)
	csvData, err := w.csv.Render(roster)
	if err != nil {
		return fmt.Errorf("render roster csv: %w", err)
	}
	if err := archive.Add(prefix+"_学生名单.csv", csvData); err != nil {
		return err
	}
	xlsxData, err := w.xlsx.Render(roster)
	if err != nil {
		return fmt.Errorf("render roster xlsx: %w", err)
	}
	if err := archive.Add(prefix+"_学生名单.xlsx", xlsxData); err != nil {
		return err
	}

	for i, student := range students {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.addStudent(ctx, archive, prefix, dept, student); err != nil {
			return fmt.Errorf("student %d: %w", student.ID, err)
		}
		progress := i + 1
		if err := w.update(ctx, taskID, func(t *models.ExportTask) { t.Progress = progress }); err != nil {
			return err
		}
		if w.cfg.StepDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.StepDelay):
			}
		}
	}
	if err := archive.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return file.Commit()
}

func (w *ExportWorker) addStudent(ctx context.Context, archive *export.ArchiveWriter, prefix string, dept models.Department, student models.Student) error {
	logs, err := w.scoreLogs.ListByUser(ctx, student.ID)
	if err != nil {
		return fmt.Errorf("load score logs: %w", err)
	}
	certs, err := w.certificates.ListByUser(ctx, student.ID)
	if err != nil {
		return fmt.Errorf("load certificates: %w", err)
	}

	name := export.SafeName(orDefault(student.Name, "未命名"))
	folder := fmt.Sprintf("%s_%s_%s", prefix, name, export.SafeName(firstNonEmpty(student.StudentID, student.IDCardNo)))

	sheet, err := export.NewXLSXExporter("积分明细").Render(scoreDataset(logs))
	if err != nil {
		return fmt.Errorf("render score sheet: %w", err)
	}
	if err := archive.Add(folder+"/"+name+"_积分明细.xlsx", sheet); err != nil {
		return err
	}

	english, achievements := classifyAchievements(certs)
	profile, err := w.pdf.RenderProfile(student.Name+" 送飞鉴定表", profileSections(dept, student, english, achievements, w.now()))
	if err != nil {
		return fmt.Errorf("render profile: %w", err)
	}
	return archive.Add(folder+"/"+name+"_送飞鉴定表.pdf", profile)
}

func rosterDataset(students []models.Student) export.Dataset {
	rows := make([]map[string]string, 0, len(students))
	for _, s := range students {
		birth, gender := models.BirthAndGender(s.IDCardNo)
		row := map[string]string{
			"学号":   s.StudentID,
			"姓名":   s.Name,
			"身份证号": s.IDCardNo,
			"性别":   firstNonEmpty(s.Gender, gender),
			"出生年月": firstNonEmpty(s.BirthDate, birth),
			"基础分":  strconv.Itoa(s.BaseScore),
			"总积分":  strconv.Itoa(s.TotalScore),
		}
		for _, stage := range models.Stages {
			row[stage.Label()] = s.ProcessStatus.Get(stage).Label()
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: rosterHeaders, Rows: rows}
}

// scoreDataset lists changes chronologically with signed deltas.
func scoreDataset(logs []models.ScoreLog) export.Dataset {
	rows := make([]map[string]string, 0, len(logs))
	for _, log := range logs {
		delta := strconv.Itoa(log.Delta)
		if log.Delta > 0 {
			delta = "+" + delta
		}
		op := "人工"
		if log.Type == models.ScoreSystem {
			op = "系统"
		}
		date := ""
		if !log.CreateTime.IsZero() {
			date = log.CreateTime.Format("2006-01-02")
		}
		rows = append(rows, map[string]string{"日期": date, "变动分值": delta, "变动原因": log.Reason, "操作类型": op})
	}
	return export.Dataset{Headers: scoreHeaders, Rows: rows}
}

func profileSections(dept models.Department, s models.Student, english dto.EnglishScores, achievements dto.Achievements, now time.Time) []export.Section {
	info := profileUserInfo(s)
	gpa := ""
	if s.GPA != nil {
		gpa = strconv.FormatFloat(*s.GPA, 'f', 2, 64)
	}
	sections := []export.Section{{
		Title: "基本信息",
		Rows: [][2]string{
			{"姓名", s.Name},
			{"学号", s.StudentID},
			{"身份证号", s.IDCardNo},
			{"性别", info.Gender},
			{"出生年月", info.BirthDate},
			{"民族", s.Ethnicity},
			{"政治面貌", s.PoliticalAffiliation},
			{"籍贯", s.Birthplace},
			{"联系电话", s.Phone},
			{"学院", dept.College},
			{"年级", dept.Grade},
			{"班级", dept.ClassName},
			{"学分绩点", gpa},
			{"总积分", strconv.Itoa(s.TotalScore)},
		},
	}}

	lang := export.Section{Title: "英语成绩", Rows: [][2]string{
		{"四级", orDefault(english.CET4, "无")},
		{"六级", orDefault(english.CET6, "无")},
	}}
	if len(english.IELTS) > 0 {
		latest := english.IELTS[0]
		lang.Rows = append(lang.Rows, [2]string{"雅思", fmt.Sprintf("总分 %s（听力 %s，阅读 %s，写作 %s，口语 %s）",
			latest.Overall, latest.Listening, latest.Reading, latest.Writing, latest.Speaking)})
	}
	sections = append(sections, lang)

	positions := export.Section{Title: "任职情况"}
	for _, p := range achievements.Positions {
		period := strings.Trim(p.StartTime+" - "+p.EndTime, " -")
		positions.Rows = append(positions.Rows, [2]string{
			orDefault(period, "无"),
			fmt.Sprintf("%s %s；任职期间集体获奖情况：%s", p.Organization, orDefault(p.Role, "无"), orDefault(p.CollectiveAwards, "无")),
		})
	}
	awards := export.Section{Title: "获奖情况"}
	for _, a := range achievements.Awards {
		awards.Rows = append(awards.Rows, [2]string{
			orDefault(a.Date, "无"),
			fmt.Sprintf("%s；主办单位：%s；级别：%s；等次：%s", a.Name, orDefault(a.Organizer, "无"), orDefault(a.Level, "无"), orDefault(a.Rank, "无")),
		})
	}
	sections = append(sections, positions, awards, export.Section{
		Title: "导出信息",
		Rows:  [][2]string{{"导出日期", now.Format("2006年01月02日")}},
	})
	return sections
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
