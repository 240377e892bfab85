package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/noah-isme/contrail/internal/models"
)

// Factory builds the App once global flags are parsed.
type Factory func(c *cli.Context) (*App, error)

type runner struct {
	factory Factory
	app     *App
}

func (r *runner) run(fn func(c *cli.Context, a *App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		if r.app == nil {
			app, err := r.factory(c)
			if err != nil {
				return err
			}
			r.app = app
		}
		return fn(c, r.app)
	}
}

// NewCLI returns the contrail command tree. The App is built lazily so
// help output never touches the session backend.
func NewCLI(factory Factory) *cli.App {
	r := &runner{factory: factory}
	return &cli.App{
		Name:                 "contrail",
		Usage:                "admission console for admins and students",
		Description:          "Command flags may follow positional arguments: contrail admin students adjust 3 --delta 5 --reason 竞赛获奖",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print results as JSON"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", EnvVars: []string{"CONTRAIL_LOG_LEVEL"}},
			&cli.StringFlag{Name: "admin-url", Usage: "admin API base URL", EnvVars: []string{"CONTRAIL_ADMIN_BASE_URL"}},
			&cli.StringFlag{Name: "student-url", Usage: "student API base URL", EnvVars: []string{"CONTRAIL_STUDENT_BASE_URL"}},
		},
		Commands: []*cli.Command{
			adminCommand(r),
			studentCommand(r),
		},
		After: func(*cli.Context) error {
			if r.app == nil {
				return nil
			}
			return r.app.Close()
		},
	}
}

// Run executes app with args after moving every command's flags ahead of
// its positional arguments, which urfave/cli otherwise stops parsing at.
func Run(ctx context.Context, app *cli.App, args []string) error {
	return app.RunContext(ctx, reorderArgs(app, args))
}

type valueFlag interface {
	TakesValue() bool
}

// reorderArgs walks args down the command tree and, for the deepest command
// reached, emits flags (with their values) before positional arguments.
// Anything after "--" stays in place.
func reorderArgs(app *cli.App, args []string) []string {
	if len(args) < 2 {
		return args
	}
	out := append(make([]string, 0, len(args)), args[0])
	rest := args[1:]
	flags, commands := app.Flags, app.Commands
	for len(rest) > 0 {
		if isFlagArg(rest[0]) {
			n := flagWidth(flags, rest)
			out = append(out, rest[:n]...)
			rest = rest[n:]
			continue
		}
		cmd := findCommand(commands, rest[0])
		if cmd == nil {
			break
		}
		out = append(out, rest[0])
		rest = rest[1:]
		flags, commands = cmd.Flags, cmd.Subcommands
		if len(commands) == 0 {
			break
		}
	}

	var positional []string
	for len(rest) > 0 {
		arg := rest[0]
		if arg == "--" {
			positional = append(positional, rest...)
			break
		}
		if isFlagArg(arg) {
			n := flagWidth(flags, rest)
			out = append(out, rest[:n]...)
			rest = rest[n:]
			continue
		}
		positional = append(positional, arg)
		rest = rest[1:]
	}
	return append(out, positional...)
}

func isFlagArg(arg string) bool {
	return len(arg) > 1 && arg[0] == '-' && arg != "--"
}

// flagWidth reports how many of args the flag at args[0] occupies.
func flagWidth(flags []cli.Flag, args []string) int {
	name := strings.TrimLeft(args[0], "-")
	if strings.Contains(name, "=") || len(args) < 2 {
		return 1
	}
	for _, f := range flags {
		for _, n := range f.Names() {
			if n != name {
				continue
			}
			if v, ok := f.(valueFlag); ok && v.TakesValue() {
				return 2
			}
			return 1
		}
	}
	return 1
}

func findCommand(commands []*cli.Command, name string) *cli.Command {
	for _, cmd := range commands {
		if cmd.HasName(name) {
			return cmd
		}
	}
	return nil
}

func argInt(c *cli.Context, index int, name string) (int, error) {
	raw := c.Args().Get(index)
	if raw == "" {
		return 0, fmt.Errorf("缺少参数 %s", name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("无效的 %s: %s", name, raw)
	}
	return n, nil
}

func parseCertificateStatus(raw string) (*models.CertificateStatus, error) {
	var status models.CertificateStatus
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return nil, nil
	case "0", "pending":
		status = models.CertificatePending
	case "1", "approved":
		status = models.CertificateApproved
	case "2", "rejected":
		status = models.CertificateRejected
	default:
		return nil, fmt.Errorf("无效的证书状态: %s", raw)
	}
	return &status, nil
}

func parseInts(raw string) ([]int, error) {
	ids := []int{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("无效的编号: %s", part)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func itoa(n int) string { return strconv.Itoa(n) }
