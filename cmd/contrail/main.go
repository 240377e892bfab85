package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/noah-isme/contrail/internal/console"
	"github.com/noah-isme/contrail/pkg/config"
	"github.com/noah-isme/contrail/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := console.NewCLI(func(c *cli.Context) (*console.App, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if url := c.String("admin-url"); url != "" {
			cfg.Client.AdminBaseURL = strings.TrimRight(url, "/")
		}
		if url := c.String("student-url"); url != "" {
			cfg.Client.StudentBaseURL = strings.TrimRight(url, "/")
		}
		logr, err := logger.NewConsole(c.String("log-level"))
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		return console.New(c.Context, cfg, logr, console.Options{JSON: c.Bool("json")})
	})

	if err := console.Run(ctx, app, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		stop()
		os.Exit(1)
	}
}
