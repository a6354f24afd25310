package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/analysta-ai/playwrightium/internal/browser"
	"github.com/analysta-ai/playwrightium/internal/engine"
	"github.com/analysta-ai/playwrightium/internal/report"
	"github.com/analysta-ai/playwrightium/internal/scenario"
	"github.com/analysta-ai/playwrightium/internal/secrets"
)

var runPolicy string

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Execute a scenario file once and write its report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := charmlog.New(os.Stderr)

		scn, err := scenario.Load(args[0])
		if err != nil {
			return err
		}
		policy := scn.RunPolicy()
		if runPolicy != "" {
			policy = runPolicy
		}

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

		result, runErr := runner.Run(ctx, scn.Commands, policy)

		if dir, err := reports.Write(result); err != nil {
			logger.Error("writing report", "err", err)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "report: %s\n", dir)
		}

		if runErr != nil {
			return runErr
		}
		if result.Failed {
			return fmt.Errorf("scenario %q failed (%d steps recorded)", scn.Name, len(result.Steps))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "scenario %q passed (%d steps)\n", scn.Name, len(result.Steps))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "override the scenario's failure policy (abort|continue)")
}
