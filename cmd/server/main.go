package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/slack-mcp-gateway/internal/config"
	"github.com/jrsteele09/slack-mcp-gateway/internal/logging"
)

// Set with -ldflags at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "slack-mcp-gateway",
		Short:        "Multi-tenant MCP gateway for Slack workspaces",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			loadEnv(envFile)
			c := config.New()
			logging.Setup(c.GetEnv(), c.GetLogLevel())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUntilStopped(cmd, config.New())
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newInstallationCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUntilStopped(cmd, config.New())
		},
	}
}

// runUntilStopped restarts the gateway after a recovered panic and returns
// on a clean stop or any other error.
func runUntilStopped(cmd *cobra.Command, c config.Config) error {
	displayAppname(c.GetAppName())
	for {
		err := run(cmd.Context(), c)
		if !errors.Is(err, errPanicRecovered) {
			if err == nil {
				log.Info().Msg("Server stopped")
			}
			return err
		}
		log.Error().Err(err).Msg("restarting server")
		time.Sleep(1 * time.Second)
	}
}

// loadEnv reads a dotenv file when present; real environment variables win.
func loadEnv(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load %s: %v\n", path, err)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
