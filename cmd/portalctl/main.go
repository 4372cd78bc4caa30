// Command portalctl runs admin batch jobs against the onboarding store:
// importing candidates, exporting reports and sending pending reminders.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/FFM-HCFMUSP/FFM/internal/app"
	"github.com/FFM-HCFMUSP/FFM/internal/config"
	"github.com/FFM-HCFMUSP/FFM/internal/logging"
	"github.com/FFM-HCFMUSP/FFM/internal/onboarding"
)

var rootCmd = &cobra.Command{
	Use:           "portalctl",
	Short:         "Admin tooling for the candidate onboarding portal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// openService builds the service from the environment. Tests replace it.
var openService = func(ctx context.Context) (*onboarding.Service, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	a, err := app.New(ctx, cfg, logger, false)
	if err != nil {
		return nil, nil, err
	}
	return a.Service, a.Close, nil
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// writeOutput writes to the command's stdout for "" or "-", else to path.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Arquivo gerado: %s\n", path)
	return nil
}
