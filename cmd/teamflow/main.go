package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/teamflow/adapter/cli"
	"github.com/felixgeelhaar/teamflow/adapter/cli/capacity"
	"github.com/felixgeelhaar/teamflow/adapter/cli/mcp"
	"github.com/felixgeelhaar/teamflow/adapter/cli/member"
	"github.com/felixgeelhaar/teamflow/adapter/cli/pipeline"
	"github.com/felixgeelhaar/teamflow/adapter/cli/priority"
	cliSettings "github.com/felixgeelhaar/teamflow/adapter/cli/settings"
	"github.com/felixgeelhaar/teamflow/internal/app"
	"github.com/felixgeelhaar/teamflow/pkg/config"
	"github.com/felixgeelhaar/teamflow/pkg/observability"
)

func main() {
	// Command output is JSON on stdout, so logs always go to stderr.
	logCfg := observability.DefaultLogConfig()
	logCfg.ServiceName = "teamflow-cli"

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.IsDevelopment() {
		logCfg.Level = observability.LogLevelDebug
	} else if cfg.LogLevel != "" {
		logCfg.Level = observability.LogLevel(cfg.LogLevel)
	}
	logger := observability.NewLogger(logCfg)
	cli.SetLogger(logger)

	// The container is optional so that help and version work without a
	// reachable database; commands that need it report ErrNotConfigured.
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()
		cli.SetApp(cli.NewApp(container))
	}

	// Register commands
	cli.AddCommand(pipeline.SyncCmd)
	cli.AddCommand(capacity.Cmd)
	cli.AddCommand(priority.Cmd)
	cli.AddCommand(pipeline.OverloadCmd)
	cli.AddCommand(pipeline.MatchCmd)
	cli.AddCommand(pipeline.JobCmd)
	cli.AddCommand(pipeline.TeamCmd)
	cli.AddCommand(member.Cmd)
	cli.AddCommand(cliSettings.Cmd)
	cli.AddCommand(mcp.Cmd)

	cli.RootCommand().SetContext(ctx)
	cli.Execute()
}
