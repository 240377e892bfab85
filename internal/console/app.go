// Package console is the command line front end: the desktop admin console
// and the student mini-program, driven through the API clients with the same
// session, route guard and screen rules.
package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/client/admin"
	"github.com/noah-isme/contrail/internal/client/student"
	"github.com/noah-isme/contrail/internal/guard"
	"github.com/noah-isme/contrail/internal/session"
	"github.com/noah-isme/contrail/pkg/config"
	"github.com/noah-isme/contrail/pkg/httpclient"
)

// Navigation failures.
var (
	ErrLoginRequired = errors.New("请先登录")
	ErrForbidden     = errors.New("无权访问该页面")
)

// Options overrides the pieces tests need to swap.
type Options struct {
	// Store replaces the configured session backend.
	Store      session.Store
	HTTPClient *http.Client
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	JSON       bool
}

// App holds one console run: both sessions, the guard and the API clients.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	in     io.Reader
	reader *bufio.Reader
	errOut io.Writer
	print  *Printer

	Session        *session.Session
	StudentSession *session.StudentSession
	Guard          *guard.Guard
	Navigator      *guard.Navigator
	Admin          *admin.Client
	Student        *student.Client

	closer func() error
}

// New wires an App from configuration.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := opts.Store
	closer := func() error { return nil }
	if store == nil {
		opened, closeFn, err := session.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store, closer = opened, closeFn
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	adminSession := session.NewSession(session.Prefixed(store, "admin:"), logger.Named("session"))
	studentSession := session.NewStudentSession(session.Prefixed(store, "student:"), logger.Named("session"))

	table, err := guard.Default()
	if err != nil {
		_ = closer()
		return nil, err
	}
	g := guard.New(table, adminSession, logger.Named("guard"))
	nav := guard.NewNavigator(g, logger.Named("guard"))

	desktop := httpclient.NewDesktop(httpclient.Options{
		BaseURL:        cfg.Client.AdminBaseURL,
		Timeout:        cfg.Client.Timeout,
		Tokens:         adminSession,
		OnUnauthorized: nav.RedirectToLogin,
		HTTPClient:     opts.HTTPClient,
		Logger:         logger.Named("admin-http"),
	})
	mini := httpclient.NewMiniProgram(httpclient.Options{
		BaseURL:         cfg.Client.StudentBaseURL,
		BaseURLOverride: studentSession.BaseURL,
		Timeout:         cfg.Client.MiniProgramTimeout,
		Tokens:          studentSession,
		OnUnauthorized: func(ctx context.Context) {
			if err := studentSession.Logout(ctx); err != nil {
				logger.Warn("clear student session", zap.Error(err))
			}
		},
		HTTPClient: opts.HTTPClient,
		Logger:     logger.Named("student-http"),
	})

	return &App{
		cfg:            cfg,
		logger:         logger,
		in:             opts.In,
		reader:         bufio.NewReader(opts.In),
		errOut:         opts.Err,
		print:          NewPrinter(opts.Out, opts.JSON),
		Session:        adminSession,
		StudentSession: studentSession,
		Guard:          g,
		Navigator:      nav,
		Admin:          admin.New(desktop, logger.Named("admin")),
		Student:        student.New(mini, logger.Named("student")),
		closer:         closer,
	}, nil
}

// Close releases the session backend.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

// enter navigates to path through the guard. Landing anywhere else means the
// admin is not logged in or lacks the role for it.
func (a *App) enter(ctx context.Context, path string) (*guard.Match, error) {
	decision, err := a.Navigator.Push(ctx, path)
	if err != nil {
		return nil, err
	}
	if !decision.Redirected() {
		return decision.Match, nil
	}
	switch decision.Path {
	case guard.PathLogin:
		return nil, ErrLoginRequired
	case guard.PathNotFound:
		return nil, ErrForbidden
	}
	return decision.Match, nil
}

func (a *App) requireStudent() error {
	if !a.StudentSession.IsLoggedIn() {
		return ErrLoginRequired
	}
	return nil
}
