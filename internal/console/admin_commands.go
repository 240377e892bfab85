package console

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/client/admin"
	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/guard"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/internal/view"
	"github.com/noah-isme/contrail/pkg/httpclient"
)

// Console locations each command opens.
const (
	routeDashboard    = "/dashboard"
	routeCertificates = "/certificates"
	routeStudents     = "/students"
	routeClass        = "/students/class/:classId"
	routeStudent      = "/students/status/:id"
	routeDepartments  = "/system/department"
	routeCertTypes    = "/system/cert-type"
	routeAdmins       = "/system/admin"
)

func adminCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "desktop console for admission staff",
		Subcommands: []*cli.Command{
			{
				Name:  "login",
				Usage: "log in with username and password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, EnvVars: []string{"CONTRAIL_PASSWORD"}},
				},
				Action: r.run(adminLogin),
			},
			{Name: "logout", Usage: "clear the stored session", Action: r.run(adminLogout)},
			{Name: "whoami", Usage: "show the logged in admin", Action: r.run(adminWhoami)},
			{Name: "menu", Usage: "list the pages the admin may open", Action: r.run(adminMenu)},
			{Name: "dashboard", Usage: "show dashboard counters", Action: r.run(adminDashboard)},
			adminCertificatesCommand(r),
			adminStudentsCommand(r),
			{
				Name:      "export",
				Usage:     "export a department archive and download it",
				ArgsUsage: "DEPARTMENT_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: ".", Usage: "directory for the archive"},
					&cli.DurationFlag{Name: "poll", Usage: "poll status at this interval instead of the websocket"},
				},
				Action: r.run(adminExport),
			},
			adminDepartmentsCommand(r),
			adminCertTypesCommand(r),
			adminAdminsCommand(r),
			{
				Name:  "init",
				Usage: "create the first super admin",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}},
					&cli.StringFlag{Name: "name"},
				},
				Action: r.run(adminInit),
			},
		},
	}
}

func adminLogin(c *cli.Context, a *App) error {
	username, err := a.valueOr(c.String("username"), "用户名: ", false)
	if err != nil {
		return err
	}
	password, err := a.valueOr(c.String("password"), "密码: ", true)
	if err != nil {
		return err
	}
	info, err := a.Session.Login(c.Context, a.Admin, username, password)
	if err != nil {
		return err
	}
	if _, err := a.Navigator.Push(c.Context, guard.PathHome); err != nil {
		return err
	}
	return a.print.Result(info, func() error {
		a.print.Linef("登录成功: %s (%s)", info.Username, info.Role)
		return nil
	})
}

func adminLogout(c *cli.Context, a *App) error {
	if err := a.Session.Logout(c.Context); err != nil {
		return err
	}
	a.Navigator.RedirectToLogin(c.Context)
	a.print.Linef("已退出登录")
	return nil
}

func adminWhoami(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeDashboard); err != nil {
		return err
	}
	info, err := a.Admin.Info(c.Context)
	if err != nil {
		return err
	}
	return a.print.Result(info, func() error {
		return a.print.Fields(
			[2]string{"ID", itoa(info.Admin.ID)},
			[2]string{"用户名", info.Admin.Username},
			[2]string{"姓名", info.Admin.Name},
			[2]string{"角色", string(info.Admin.Role)},
			[2]string{"部门", joinInts(info.DepartmentIDs)},
		)
	})
}

func adminMenu(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeDashboard); err != nil {
		return err
	}
	menu := a.Guard.Table().Menu(a.Session.Role(c.Context))
	return a.print.Result(menu, func() error {
		for _, item := range menu {
			a.print.Linef("%s  %s", item.Title, item.Path)
			for _, child := range item.Children {
				a.print.Linef("  %s  %s", child.Title, child.Path)
			}
		}
		return nil
	})
}

func adminDashboard(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeDashboard); err != nil {
		return err
	}
	stats, err := a.Admin.Stats(c.Context)
	if err != nil {
		return err
	}
	return a.print.Result(stats, func() error {
		if err := a.print.Fields(
			[2]string{"学生总数", itoa(stats.StudentTotal)},
			[2]string{"部门总数", itoa(stats.DepartmentTotal)},
			[2]string{"待审核证书", itoa(stats.CertificatePending)},
			[2]string{"已通过证书", itoa(stats.CertificateApproved)},
			[2]string{"已驳回证书", itoa(stats.CertificateRejected)},
		); err != nil {
			return err
		}
		rows := make([][]string, 0, len(models.Stages))
		for _, stage := range models.Stages {
			counts := stats.StatusSummary[stage]
			rows = append(rows, []string{
				stage.Label(),
				itoa(counts[models.StatusQualified]),
				itoa(counts[models.StatusUnqualified]),
				itoa(counts[models.StatusPending]),
			})
		}
		return a.print.Table([]string{"阶段", "合格", "不合格", "待处理"}, rows)
	})
}

func adminCertificatesCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "certificates",
		Usage: "review uploaded certificates",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list certificates",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "pending, approved or rejected"},
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.IntFlag{Name: "per-page", Value: dto.DefaultPerPage},
				},
				Action: r.run(adminCertificateList),
			},
			{Name: "show", ArgsUsage: "ID", Usage: "show one certificate", Action: r.run(adminCertificateShow)},
			{
				Name:      "audit",
				ArgsUsage: "ID",
				Usage:     "approve or reject a certificate",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "action", Usage: "approve or reject", Required: true},
					&cli.StringFlag{Name: "reason", Usage: "required when rejecting"},
				},
				Action: r.run(adminCertificateAudit),
			},
		},
	}
}

func certificateRow(v models.CertificateView) []string {
	student := ""
	if v.Student != nil {
		student = v.Student.Name + " " + v.Student.StudentID
	}
	return []string{itoa(v.ID), v.Name, student, v.Status.Text(), view.FormatTime(v.UploadTime), v.RejectReason}
}

func adminCertificateList(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeCertificates); err != nil {
		return err
	}
	status, err := parseCertificateStatus(c.String("status"))
	if err != nil {
		return err
	}
	page, err := a.Admin.ListCertificates(c.Context, admin.CertificateQuery{Status: status, Page: c.Int("page"), PerPage: c.Int("per-page")})
	if err != nil {
		return err
	}
	return a.print.Result(page, func() error {
		rows := make([][]string, 0, len(page.Items))
		for _, item := range page.Items {
			rows = append(rows, certificateRow(item))
		}
		if err := a.print.Table([]string{"ID", "证书", "学生", "状态", "上传时间", "驳回原因"}, rows); err != nil {
			return err
		}
		a.print.Linef("共 %d 条, 第 %d/%d 页", page.Total, page.Page, page.Pages)
		return nil
	})
}

func adminCertificateShow(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeCertificates); err != nil {
		return err
	}
	id, err := argInt(c, 0, "ID")
	if err != nil {
		return err
	}
	resp, err := a.Admin.GetCertificate(c.Context, id)
	if err != nil {
		return err
	}
	return a.print.Result(resp, func() error {
		cert := resp.Certificate
		if err := a.print.Table([]string{"ID", "证书", "学生", "状态", "上传时间", "驳回原因"}, [][]string{certificateRow(cert)}); err != nil {
			return err
		}
		a.print.Linef("图片: %s", cert.ImgURL)
		if resp.Warning != "" {
			a.print.Linef("警告: %s", resp.Warning)
		}
		return nil
	})
}

func adminCertificateAudit(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeCertificates); err != nil {
		return err
	}
	id, err := argInt(c, 0, "ID")
	if err != nil {
		return err
	}
	resp, err := a.Admin.AuditCertificate(c.Context, id, c.String("action"), c.String("reason"))
	if err != nil {
		return err
	}
	return a.print.Result(resp, func() error {
		a.print.Linef("%s: %s -> %s", resp.Message, resp.Certificate.Name, resp.Certificate.Status.Text())
		return nil
	})
}

func adminStudentsCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "students",
		Usage: "browse and manage students",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list students",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "department", Aliases: []string{"d"}},
					&cli.StringFlag{Name: "filter", Usage: "name, student_id or class_name"},
					&cli.StringFlag{Name: "keyword", Aliases: []string{"k"}},
					&cli.StringFlag{Name: "stage"},
					&cli.StringFlag{Name: "status"},
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.IntFlag{Name: "per-page", Value: dto.DefaultPerPage},
				},
				Action: r.run(adminStudentList),
			},
			{Name: "show", ArgsUsage: "ID", Usage: "show a student archive", Action: r.run(adminStudentShow)},
			{
				Name:      "status",
				ArgsUsage: "ID",
				Usage:     "set one stage outcome",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "stage", Required: true},
					&cli.StringFlag{Name: "status", Required: true},
				},
				Action: r.run(adminStudentStatus),
			},
			{
				Name:      "scores",
				ArgsUsage: "ID",
				Usage:     "list score changes",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "type", Usage: "1 manual, 2 system"},
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.IntFlag{Name: "limit", Value: dto.DefaultPerPage},
				},
				Action: r.run(adminStudentScores),
			},
			{
				Name:      "adjust",
				ArgsUsage: "ID",
				Usage:     "adjust a student's score",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "delta", Required: true},
					&cli.StringFlag{Name: "reason", Required: true},
				},
				Action: r.run(adminStudentAdjust),
			},
			{
				Name:      "comment",
				ArgsUsage: "ID",
				Usage:     "add an evaluation",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "content", Required: true}},
				Action:    r.run(adminStudentComment),
			},
			{
				Name:      "import",
				ArgsUsage: "FILE",
				Usage:     "import a roster spreadsheet into a department",
				Flags:     []cli.Flag{&cli.IntFlag{Name: "department", Aliases: []string{"d"}, Required: true}},
				Action:    r.run(adminStudentImport),
			},
		},
	}
}

func adminStudentList(c *cli.Context, a *App) error {
	route := routeStudents
	dept := c.Int("department")
	if dept > 0 {
		route = guard.Build(routeClass, "classId", itoa(dept))
	}
	if _, err := a.enter(c.Context, route); err != nil {
		return err
	}
	page, err := a.Admin.ListStudents(c.Context, admin.StudentQuery{
		Page:         c.Int("page"),
		PerPage:      c.Int("per-page"),
		DepartmentID: dept,
		Filter:       c.String("filter"),
		Keyword:      c.String("keyword"),
		StatusStage:  models.Stage(c.String("stage")),
		StatusValue:  models.StageStatus(c.String("status")),
	})
	if err != nil {
		return err
	}
	return a.print.Result(page, func() error {
		rows := make([][]string, 0, len(page.Items))
		for _, s := range page.Items {
			class := s.ClassInfo
			if s.Department != nil {
				class = s.Department.DisplayName
			}
			rows = append(rows, []string{itoa(s.ID), s.StudentID, s.Name, class, itoa(s.TotalScore), statusSummary(s.ProcessStatus)})
		}
		if err := a.print.Table([]string{"ID", "学号", "姓名", "班级", "总分", "状态"}, rows); err != nil {
			return err
		}
		a.print.Linef("共 %d 条, 第 %d/%d 页", page.Total, page.Page, page.Pages)
		return nil
	})
}

func statusSummary(ps models.ProcessStatus) string {
	parts := make([]string, 0, len(models.Stages))
	for _, item := range view.StatusList(ps) {
		parts = append(parts, item.Name+":"+item.Label)
	}
	return strings.Join(parts, " ")
}

func studentRoute(c *cli.Context, a *App) (int, error) {
	id, err := argInt(c, 0, "ID")
	if err != nil {
		return 0, err
	}
	if _, err := a.enter(c.Context, guard.Build(routeStudent, "id", itoa(id))); err != nil {
		return 0, err
	}
	return id, nil
}

func adminStudentShow(c *cli.Context, a *App) error {
	id, err := studentRoute(c, a)
	if err != nil {
		return err
	}
	detail, err := a.Admin.GetStudent(c.Context, id)
	if err != nil {
		return err
	}
	return a.print.Result(detail, func() error {
		s := detail.Student
		if err := a.print.Fields(
			[2]string{"姓名", s.Name},
			[2]string{"学号", s.StudentID},
			[2]string{"身份证", view.MaskIDCard(s.IDCardNo)},
			[2]string{"基础分", itoa(s.BaseScore)},
			[2]string{"总分", itoa(s.TotalScore)},
			[2]string{"状态", statusSummary(s.ProcessStatus)},
		); err != nil {
			return err
		}
		for _, cm := range detail.Comments {
			a.print.Linef("评语 [%s] %s", view.FormatTime(cm.CreateTime), cm.Content)
		}
		for _, cert := range detail.Certificates {
			a.print.Linef("证书 #%d %s %s", cert.ID, cert.Name, cert.Status.Text())
		}
		return nil
	})
}

func adminStudentStatus(c *cli.Context, a *App) error {
	id, err := studentRoute(c, a)
	if err != nil {
		return err
	}
	stage := models.Stage(c.String("stage"))
	status := models.StageStatus(c.String("status"))
	if !stage.Valid() {
		return fmt.Errorf("无效的阶段: %s", stage)
	}
	if !status.Valid() {
		return fmt.Errorf("无效的状态: %s", status)
	}
	resp, err := a.Admin.UpdateStudentStatus(c.Context, id, stage, status)
	if err != nil {
		return err
	}
	return a.print.Result(resp, func() error {
		a.print.Linef("%s: %s", resp.Message, statusSummary(resp.Student.ProcessStatus))
		return nil
	})
}

func adminStudentScores(c *cli.Context, a *App) error {
	id, err := studentRoute(c, a)
	if err != nil {
		return err
	}
	page, err := a.Admin.ScoreLogs(c.Context, id, admin.ScoreLogQuery{Page: c.Int("page"), Limit: c.Int("limit"), Type: c.Int("type")})
	if err != nil {
		return err
	}
	return a.print.Result(page, func() error {
		rows := make([][]string, 0, len(page.Items))
		for _, it := range page.Items {
			rows = append(rows, []string{
				view.FormatTime(it.CreateTime),
				view.SignedDelta(it.ChangeAmount),
				fmt.Sprintf("%d -> %d", it.OldScore, it.NewScore),
				it.Reason,
				it.OperatorName,
			})
		}
		if err := a.print.Table([]string{"时间", "变动", "分数", "原因", "操作人"}, rows); err != nil {
			return err
		}
		a.print.Linef("共 %d 条", page.Total)
		return nil
	})
}

func adminStudentAdjust(c *cli.Context, a *App) error {
	id, err := studentRoute(c, a)
	if err != nil {
		return err
	}
	resp, err := a.Admin.AdjustScore(c.Context, id, c.Int("delta"), c.String("reason"))
	if err != nil {
		return err
	}
	return a.print.Result(resp, func() error {
		a.print.Linef("%s: %s, 当前总分 %d", resp.Message, view.SignedDelta(resp.ScoreLog.Delta), resp.NewTotalScore)
		return nil
	})
}

func adminStudentComment(c *cli.Context, a *App) error {
	id, err := studentRoute(c, a)
	if err != nil {
		return err
	}
	resp, err := a.Admin.AddComment(c.Context, id, c.String("content"))
	if err != nil {
		return err
	}
	return a.print.Result(resp, func() error {
		a.print.Linef("%s", resp.Message)
		return nil
	})
}

func adminStudentImport(c *cli.Context, a *App) error {
	dept := c.Int("department")
	if _, err := a.enter(c.Context, guard.Build(routeClass, "classId", itoa(dept))); err != nil {
		return err
	}
	name := c.Args().First()
	if name == "" {
		return errors.New("缺少参数 FILE")
	}
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	resp, err := a.Admin.ImportStudents(c.Context, dept, filepath.Base(name), f)
	if err != nil {
		return err
	}
	return a.print.Result(resp, func() error {
		res := resp.Data
		a.print.Linef("%s: 成功 %d, 跳过 %d, 失败 %d", resp.Message, res.SuccessCount, res.SkipCount, res.ErrorCount)
		for _, e := range res.Errors {
			a.print.Linef("  第 %d 行 %s: %s", e.Row, e.StudentID, e.Error)
		}
		return nil
	})
}

func adminExport(c *cli.Context, a *App) error {
	dept, err := argInt(c, 0, "DEPARTMENT_ID")
	if err != nil {
		return err
	}
	if _, err := a.enter(c.Context, guard.Build(routeClass, "classId", itoa(dept))); err != nil {
		return err
	}
	taskID, err := a.Admin.StartDepartmentExport(c.Context, dept)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.errOut, "导出任务 %s 已创建\n", taskID)

	progress := func(s dto.ExportStatusResponse) {
		fmt.Fprintf(a.errOut, "\r导出进度 %3d%% (%d/%d)", s.Percent(), s.Progress, s.Total)
	}
	var status *dto.ExportStatusResponse
	if interval := c.Duration("poll"); interval > 0 {
		status, err = a.Admin.WaitForExport(c.Context, taskID, interval, progress)
	} else {
		status, err = a.Admin.WatchExport(c.Context, taskID, progress)
		if err != nil && httpclient.StatusOf(err) == 0 && c.Context.Err() == nil {
			a.logger.Debug("progress socket unavailable, polling", zap.Error(err))
			status, err = a.Admin.WaitForExport(c.Context, taskID, admin.DefaultPollInterval, progress)
		}
	}
	fmt.Fprintln(a.errOut)
	if err != nil {
		return err
	}

	file, err := a.Admin.DownloadExport(c.Context, taskID)
	if err != nil {
		return err
	}
	dir := c.String("output")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.Base(file.Name))
	if err := os.WriteFile(target, file.Data, 0o644); err != nil {
		return err
	}
	result := struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
		File   string `json:"file"`
		Size   int    `json:"size"`
	}{taskID, string(status.Status), target, len(file.Data)}
	return a.print.Result(result, func() error {
		a.print.Linef("已保存 %s (%d 字节)", target, len(file.Data))
		return nil
	})
}

func adminDepartmentsCommand(r *runner) *cli.Command {
	formFlags := []cli.Flag{
		&cli.StringFlag{Name: "college"},
		&cli.StringFlag{Name: "grade"},
		&cli.StringFlag{Name: "major"},
		&cli.StringFlag{Name: "class"},
		&cli.StringFlag{Name: "bonus-start", Usage: "YYYY-MM-DD"},
		&cli.IntFlag{Name: "base-score"},
	}
	return &cli.Command{
		Name:  "departments",
		Usage: "manage departments",
		Subcommands: []*cli.Command{
			{Name: "list", Usage: "list departments", Action: r.run(adminDepartmentList)},
			{Name: "create", Usage: "create a department", Flags: formFlags, Action: r.run(adminDepartmentCreate)},
			{Name: "update", ArgsUsage: "ID", Usage: "update a department", Flags: formFlags, Action: r.run(adminDepartmentUpdate)},
			{Name: "delete", ArgsUsage: "ID", Usage: "delete a department", Action: r.run(adminDepartmentDelete)},
			{
				Name:      "bind",
				ArgsUsage: "ID",
				Usage:     "set the certificate types a department requires",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "types", Usage: "comma separated type ids"}},
				Action:    r.run(adminDepartmentBind),
			},
		},
	}
}

func departmentForm(c *cli.Context) view.DepartmentForm {
	return view.DepartmentForm{
		College:        c.String("college"),
		Grade:          c.String("grade"),
		Major:          c.String("major"),
		ClassName:      c.String("class"),
		BonusStartDate: c.String("bonus-start"),
		BaseScore:      c.Int("base-score"),
	}
}

func (a *App) printDepartment(d *models.Department) error {
	return a.print.Result(d, func() error {
		a.print.Linef("#%d %s 基础分 %d", d.ID, d.DisplayName, d.BaseScore)
		return nil
	})
}

func adminDepartmentList(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeDepartments); err != nil {
		return err
	}
	list, err := a.Admin.ListDepartments(c.Context)
	if err != nil {
		return err
	}
	return a.print.Result(list, func() error {
		rows := make([][]string, 0, len(list.Items))
		for _, d := range list.Items {
			rows = append(rows, []string{itoa(d.ID), d.DisplayName, itoa(d.StudentCount), itoa(d.BaseScore), d.BonusStartDate, joinInts(d.CertificateTypeIDs)})
		}
		return a.print.Table([]string{"ID", "名称", "学生数", "基础分", "加分开始", "证书类型"}, rows)
	})
}

func adminDepartmentCreate(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeDepartments); err != nil {
		return err
	}
	form := departmentForm(c)
	if err := form.Validate(); err != nil {
		return err
	}
	d, err := a.Admin.CreateDepartment(c.Context, form.Request())
	if err != nil {
		return err
	}
	return a.printDepartment(d)
}

func adminDepartmentUpdate(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeDepartments); err != nil {
		return err
	}
	id, err := argInt(c, 0, "ID")
	if err != nil {
		return err
	}
	form := departmentForm(c)
	if err := form.Validate(); err != nil {
		return err
	}
	req := form.Request()
	if !c.IsSet("base-score") {
		req.BaseScore = nil
	}
	d, err := a.Admin.UpdateDepartment(c.Context, id, req)
	if err != nil {
		return err
	}
	return a.printDepartment(d)
}

func adminDepartmentDelete(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeDepartments); err != nil {
		return err
	}
	id, err := argInt(c, 0, "ID")
	if err != nil {
		return err
	}
	msg, err := a.Admin.DeleteDepartment(c.Context, id)
	if err != nil {
		return err
	}
	return a.print.Result(msg, func() error {
		a.print.Linef("%s", msg.Message)
		return nil
	})
}

func adminDepartmentBind(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeDepartments); err != nil {
		return err
	}
	id, err := argInt(c, 0, "ID")
	if err != nil {
		return err
	}
	ids, err := parseInts(c.String("types"))
	if err != nil {
		return err
	}
	d, err := a.Admin.BindCertificateTypes(c.Context, id, ids)
	if err != nil {
		return err
	}
	return a.printDepartment(d)
}

func adminCertTypesCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "cert-types",
		Usage: "manage certificate types",
		Subcommands: []*cli.Command{
			{Name: "list", Usage: "list certificate types", Action: r.run(adminCertTypeList)},
			{
				Name:  "create",
				Usage: "add a certificate type",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.BoolFlag{Name: "optional", Usage: "not required by default"},
				},
				Action: r.run(adminCertTypeCreate),
			},
			{Name: "delete", ArgsUsage: "ID", Usage: "remove a certificate type", Action: r.run(adminCertTypeDelete)},
		},
	}
}

func adminCertTypeList(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeCertTypes); err != nil {
		return err
	}
	list, err := a.Admin.ListCertificateTypes(c.Context)
	if err != nil {
		return err
	}
	return a.print.Result(list, func() error {
		rows := make([][]string, 0, len(list.Items))
		for _, t := range list.Items {
			required := "否"
			if t.IsRequired {
				required = "是"
			}
			rows = append(rows, []string{itoa(t.ID), t.Name, required, t.Description})
		}
		return a.print.Table([]string{"ID", "名称", "必需", "说明"}, rows)
	})
}

func adminCertTypeCreate(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeCertTypes); err != nil {
		return err
	}
	required := !c.Bool("optional")
	t, err := a.Admin.CreateCertificateType(c.Context, admin.CertificateTypeInput{
		Name:        c.String("name"),
		Description: c.String("description"),
		Required:    &required,
	})
	if err != nil {
		return err
	}
	return a.print.Result(t, func() error {
		a.print.Linef("#%d %s", t.ID, t.Name)
		return nil
	})
}

func adminCertTypeDelete(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeCertTypes); err != nil {
		return err
	}
	id, err := argInt(c, 0, "ID")
	if err != nil {
		return err
	}
	msg, err := a.Admin.DeleteCertificateType(c.Context, id)
	if err != nil {
		return err
	}
	return a.print.Result(msg, func() error {
		a.print.Linef("%s", msg.Message)
		return nil
	})
}

func adminAdminsCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "admins",
		Usage: "manage admin accounts",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list admins",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "role"},
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.IntFlag{Name: "per-page", Value: dto.DefaultPerPage},
				},
				Action: r.run(adminAdminList),
			},
			{
				Name:  "create",
				Usage: "add an admin",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password"},
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "role", Value: string(models.RoleNormal)},
					&cli.StringFlag{Name: "departments", Usage: "comma separated department ids"},
				},
				Action: r.run(adminAdminCreate),
			},
			{
				Name:      "update",
				ArgsUsage: "ID",
				Usage:     "change an admin",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "password"},
					&cli.StringFlag{Name: "role"},
					&cli.StringFlag{Name: "departments"},
				},
				Action: r.run(adminAdminUpdate),
			},
			{Name: "delete", ArgsUsage: "ID", Usage: "remove an admin", Action: r.run(adminAdminDelete)},
		},
	}
}

func adminAdminList(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeAdmins); err != nil {
		return err
	}
	page, err := a.Admin.ListAdmins(c.Context, admin.AdminQuery{Page: c.Int("page"), PerPage: c.Int("per-page"), Role: models.AdminRole(c.String("role"))})
	if err != nil {
		return err
	}
	return a.print.Result(page, func() error {
		rows := make([][]string, 0, len(page.Items))
		for _, ad := range page.Items {
			rows = append(rows, []string{itoa(ad.ID), ad.Username, ad.Name, string(ad.Role), joinInts(ad.DepartmentIDs)})
		}
		return a.print.Table([]string{"ID", "用户名", "姓名", "角色", "部门"}, rows)
	})
}

func adminAdminCreate(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeAdmins); err != nil {
		return err
	}
	password, err := a.valueOr(c.String("password"), "新管理员密码: ", true)
	if err != nil {
		return err
	}
	ids, err := parseInts(c.String("departments"))
	if err != nil {
		return err
	}
	form := view.AdminForm{
		Username:      c.String("username"),
		Password:      password,
		Name:          c.String("name"),
		Role:          models.AdminRole(c.String("role")),
		DepartmentIDs: ids,
	}
	if err := form.Validate(); err != nil {
		return err
	}
	resp, err := a.Admin.CreateAdmin(c.Context, admin.AdminInput{
		Username:      strings.TrimSpace(form.Username),
		Password:      form.Password,
		Name:          form.Name,
		Role:          form.Role,
		DepartmentIDs: form.DepartmentIDs,
	})
	if err != nil {
		return err
	}
	return a.print.Result(resp, func() error {
		a.print.Linef("已创建管理员 #%d %s", resp.Admin.ID, resp.Admin.Username)
		return nil
	})
}

func adminAdminUpdate(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeAdmins); err != nil {
		return err
	}
	id, err := argInt(c, 0, "ID")
	if err != nil {
		return err
	}
	var in admin.AdminUpdate
	if c.IsSet("name") {
		name := c.String("name")
		in.Name = &name
	}
	if c.IsSet("role") {
		role := models.AdminRole(c.String("role"))
		if !role.Valid() {
			return fmt.Errorf("无效的角色: %s", role)
		}
		in.Role = &role
	}
	if c.IsSet("departments") {
		ids, err := parseInts(c.String("departments"))
		if err != nil {
			return err
		}
		in.DepartmentIDs = &ids
	}
	in.Password = c.String("password")
	resp, err := a.Admin.UpdateAdmin(c.Context, id, in)
	if err != nil {
		return err
	}
	return a.print.Result(resp, func() error {
		a.print.Linef("%s", resp.Message)
		return nil
	})
}

func adminAdminDelete(c *cli.Context, a *App) error {
	if _, err := a.enter(c.Context, routeAdmins); err != nil {
		return err
	}
	id, err := argInt(c, 0, "ID")
	if err != nil {
		return err
	}
	msg, err := a.Admin.DeleteAdmin(c.Context, id)
	if err != nil {
		return err
	}
	return a.print.Result(msg, func() error {
		a.print.Linef("%s", msg.Message)
		return nil
	})
}

func adminInit(c *cli.Context, a *App) error {
	initialized, err := a.Admin.InitStatus(c.Context)
	if err != nil {
		return err
	}
	if initialized {
		return errors.New("系统已初始化")
	}
	username, err := a.valueOr(c.String("username"), "超级管理员用户名: ", false)
	if err != nil {
		return err
	}
	password, err := a.valueOr(c.String("password"), "密码: ", true)
	if err != nil {
		return err
	}
	resp, err := a.Admin.Initialize(c.Context, username, password, c.String("name"))
	if err != nil {
		return err
	}
	return a.print.Result(resp, func() error {
		a.print.Linef("已创建超级管理员 %s", resp.Admin.Username)
		return nil
	})
}
