package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/analysta-ai/playwrightium/internal/browser"
	"github.com/analysta-ai/playwrightium/internal/config"
	"github.com/analysta-ai/playwrightium/internal/engine"
	mcpserver "github.com/analysta-ai/playwrightium/internal/mcp"
	"github.com/analysta-ai/playwrightium/internal/report"
	"github.com/analysta-ai/playwrightium/internal/secrets"
)

var ssePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server (stdio by default, SSE with --sse-port)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if ssePort != 0 {
			cfg.Server.SSEPort = ssePort
		}

		logger, cleanup, err := newServerLogger(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sessions := browser.NewManager(cfg.Browser, logger)
		defer func() { _ = sessions.Release(context.Background()) }()

		reports, err := report.NewWriter(cfg.Report.Dir, cfg.Report.KeepRuns())
		if err != nil {
			return err
		}

		dispatcher := engine.NewDispatcher(cfg.Browser, sessions, logger, reports)
		runner := engine.NewRunner(sessions, dispatcher, secrets.FromEnviron(), logger, reports)

		server := mcpserver.NewServer(cfg, sessions, runner, reports, logger)

		var startErr error
		if cfg.Server.SSEPort > 0 {
			logger.Info("starting SSE server", "port", cfg.Server.SSEPort)
			startErr = server.StartSSE(ctx, cfg.Server.SSEPort)
		} else {
			logger.Info("starting stdio server")
			startErr = server.Start(ctx)
		}
		if startErr != nil && !errors.Is(startErr, context.Canceled) {
			return startErr
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&ssePort, "sse-port", 0, "serve over SSE on this port instead of stdio")
}

// newServerLogger routes logs to a file in stdio mode, where stderr output
// would corrupt the MCP protocol stream.
func newServerLogger(cfg config.Config) (*charmlog.Logger, func(), error) {
	if cfg.Server.SSEPort > 0 || cfg.Server.LogFile == "" {
		return charmlog.New(os.Stderr), func() {}, nil
	}

	f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// stdio mode must stay quiet
		return charmlog.New(io.Discard), func() {}, nil
	}
	return charmlog.New(f), func() { _ = f.Close() }, nil
}
