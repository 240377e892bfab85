package console

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/internal/view"
)

func studentCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "student",
		Usage: "mini-program screens for students",
		Subcommands: []*cli.Command{
			{
				Name:  "login",
				Usage: "log in with id card number and password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id-card", Aliases: []string{"i"}},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, EnvVars: []string{"CONTRAIL_STUDENT_PASSWORD"}},
				},
				Action: r.run(studentLogin),
			},
			{Name: "logout", Usage: "clear the stored session", Action: r.run(studentLogout)},
			{
				Name:      "server",
				ArgsUsage: "[URL]",
				Usage:     "show or override the server address; \"-\" clears the override",
				Action:    r.run(studentServer),
			},
			{Name: "home", Usage: "score, comment and admission progress", Action: r.run(studentHome)},
			{Name: "score", Usage: "score detail", Action: r.run(studentScore)},
			{Name: "profile", Usage: "personal archive", Action: r.run(studentProfile)},
			{
				Name:  "certificates",
				Usage: "uploaded certificates",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list certificates",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "status", Usage: "pending, approved or rejected"}},
						Action: r.run(studentCertificateList),
					},
					{
						Name:      "names",
						ArgsUsage: "[KEYWORD]",
						Usage:     "search certificate names",
						Action:    r.run(studentCertificateNames),
					},
					{
						Name:  "submit",
						Usage: "upload a certificate image for review",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "certificate name or a keyword matching one"},
							&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "image file"},
							&cli.IntFlag{Name: "resubmit", Usage: "id of a rejected certificate to replace"},
						},
						Action: r.run(studentCertificateSubmit),
					},
				},
			},
		},
	}
}

func studentLogin(c *cli.Context, a *App) error {
	idCard, err := a.valueOr(c.String("id-card"), "身份证号: ", false)
	if err != nil {
		return err
	}
	password, err := a.valueOr(c.String("password"), "密码: ", true)
	if err != nil {
		return err
	}
	user, err := a.StudentSession.Login(c.Context, a.Student, idCard, password)
	if err != nil {
		return err
	}
	return a.print.Result(user, func() error {
		if user == nil {
			a.print.Linef("登录成功")
			return nil
		}
		a.print.Linef("登录成功: %s (%s)", user.Name, user.StudentID)
		return nil
	})
}

func studentLogout(c *cli.Context, a *App) error {
	if err := a.StudentSession.Logout(c.Context); err != nil {
		return err
	}
	a.print.Linef("已退出登录")
	return nil
}

func studentServer(c *cli.Context, a *App) error {
	switch url := c.Args().First(); url {
	case "":
	case "-":
		if err := a.StudentSession.SetBaseURL(c.Context, ""); err != nil {
			return err
		}
	default:
		if err := a.StudentSession.SetBaseURL(c.Context, url); err != nil {
			return err
		}
	}
	current := a.StudentSession.BaseURL()
	if current == "" {
		current = a.cfg.Client.StudentBaseURL
	}
	a.print.Linef("%s", current)
	return nil
}

func studentHome(c *cli.Context, a *App) error {
	if err := a.requireStudent(); err != nil {
		return err
	}
	dashboard, err := a.Student.Dashboard(c.Context)
	if dashboard == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(a.errOut, "警告: %v\n", err)
	}
	home := view.NewHome(dashboard)
	return a.print.Result(home, func() error {
		if err := a.print.Fields(
			[2]string{"当前积分", itoa(home.Score)},
			[2]string{"评语", home.CommentText()},
		); err != nil {
			return err
		}
		rows := make([][]string, 0, len(home.Statuses))
		for _, s := range home.Statuses {
			rows = append(rows, []string{s.Name, s.Label})
		}
		return a.print.Table([]string{"阶段", "状态"}, rows)
	})
}

func studentScore(c *cli.Context, a *App) error {
	if err := a.requireStudent(); err != nil {
		return err
	}
	score, err := a.Student.Score(c.Context)
	if err != nil {
		return err
	}
	detail := view.NewScoreDetail(score)
	return a.print.Result(detail, func() error {
		a.print.Linef("基础分 %d, 总分 %d", detail.BaseScore, detail.TotalScore)
		rows := make([][]string, 0, len(detail.Rows))
		for _, row := range detail.Rows {
			rows = append(rows, []string{row.Time, row.Delta, row.TypeLabel, row.Reason})
		}
		return a.print.Table([]string{"时间", "变动", "类型", "原因"}, rows)
	})
}

func studentProfile(c *cli.Context, a *App) error {
	if err := a.requireStudent(); err != nil {
		return err
	}
	payload, err := a.Student.Profile(c.Context)
	if err != nil {
		return err
	}
	p := view.NewProfile(payload)
	return a.print.Result(p, func() error {
		info := p.Info
		if err := a.print.Fields(
			[2]string{"姓名", info.Name},
			[2]string{"学号", info.StudentID},
			[2]string{"身份证", info.IDCard},
			[2]string{"电话", info.Phone},
			[2]string{"性别", info.Gender},
			[2]string{"出生年月", info.BirthDate},
			[2]string{"籍贯", info.Birthplace},
			[2]string{"民族", info.Ethnicity},
			[2]string{"政治面貌", info.PoliticalAffiliation},
			[2]string{"班级", info.Class},
			[2]string{"学分", info.Credits},
			[2]string{"绩点", info.GPA},
			[2]string{"总分", info.TotalScore},
		); err != nil {
			return err
		}
		for _, line := range p.English {
			a.print.Linef("%s", line)
		}
		for _, block := range append(p.IELTS, p.Awards...) {
			a.print.Linef("%s", block.Title)
			if err := a.print.Table(block.Headers, [][]string{block.Values}); err != nil {
				return err
			}
		}
		for _, pos := range p.Positions {
			line := fmt.Sprintf("%s %s %s", pos.Role, pos.Organization, pos.Period)
			if pos.CollectiveAwards != "" {
				line += " 集体荣誉: " + pos.CollectiveAwards
			}
			a.print.Linef("%s", line)
		}
		return nil
	})
}

func studentCertificateList(c *cli.Context, a *App) error {
	if err := a.requireStudent(); err != nil {
		return err
	}
	status, err := parseCertificateStatus(c.String("status"))
	if err != nil {
		return err
	}
	certs, err := a.Student.ListCertificates(c.Context, status)
	if err != nil {
		return err
	}
	rows := view.CertificateRows(certs)
	return a.print.Result(rows, func() error {
		table := make([][]string, 0, len(rows))
		for _, row := range rows {
			table = append(table, []string{itoa(row.ID), row.Name, row.StatusText, row.UploadTime, row.Reason})
		}
		return a.print.Table([]string{"ID", "证书", "状态", "上传时间", "驳回原因"}, table)
	})
}

func studentCertificateNames(c *cli.Context, a *App) error {
	names := view.NewPicker().Filter(c.Args().First())
	return a.print.Result(names, func() error {
		for _, name := range names {
			a.print.Linef("%s", name)
		}
		return nil
	})
}

// pickName resolves a typed name against the picker: an exact option or a
// keyword matching exactly one option.
func pickName(picker view.Picker, typed string) string {
	for _, opt := range picker.Options {
		if opt == typed {
			return opt
		}
	}
	if matches := picker.Filter(typed); typed != "" && len(matches) == 1 {
		return matches[0]
	}
	return typed
}

func studentCertificateSubmit(c *cli.Context, a *App) error {
	if err := a.requireStudent(); err != nil {
		return err
	}
	edit := view.NewCertificateEdit()
	if id := c.Int("resubmit"); id > 0 {
		cert, err := a.Student.GetCertificate(c.Context, id)
		if err != nil {
			return err
		}
		if cert.Status != models.CertificateRejected {
			return errors.New("只有被驳回的证书可以重新提交")
		}
		edit = view.EditRejected(*cert)
		fmt.Fprintf(a.errOut, "驳回原因: %s\n", edit.RejectReason)
	}
	edit.SetName(pickName(view.NewPicker(), c.String("name")))

	file := c.String("file")
	draft := edit.Form
	draft.ImageURL = file
	if err := draft.Validate(); err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	uploaded, err := a.Student.UploadImage(c.Context, filepath.Base(file), f)
	if err != nil {
		return err
	}

	edit.Form.ImageURL = uploaded.Path
	if err := edit.Form.Validate(); err != nil {
		return err
	}
	resp, err := a.Student.SubmitCertificate(c.Context, edit.Form.Request())
	if err != nil {
		return err
	}
	return a.print.Result(resp, func() error {
		a.print.Linef("已提交 %s, 等待审核", resp.Certificate.Name)
		return nil
	})
}
