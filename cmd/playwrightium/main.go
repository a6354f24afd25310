package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/analysta-ai/playwrightium/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"

	cfgPath string

	rootCmd = &cobra.Command{
		Use:   "playwrightium",
		Short: "Browser automation command engine",
		Long: `playwrightium drives a real browser through declarative command batches.

It runs either as an MCP server (stdio or SSE) for agent integrations, or
as a one-shot scenario runner for CI pipelines. Command batches support
secret interpolation via ${{NAME}} placeholders resolved from the
environment, and a six-strategy selector syntax (css, role:, testid:,
placeholder:, label:, plain text).`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to the config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads configuration, skipping the file layer when the default
// config path was never overridden and no such file exists.
func loadConfig() (config.Config, error) {
	path := cfgPath
	if !rootCmd.PersistentFlags().Changed("config") {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	return config.Load(path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
