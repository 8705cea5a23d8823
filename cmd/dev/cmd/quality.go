package cmd

import (
	"fmt"
	"log/slog"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func TestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run unit tests (driver, transports, simulator, cli)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Test(); err != nil {
				return fmt.Errorf("failed to run tests: %w", err)
			}
			return nil
		},
	}
}

func LintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Run linters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Lint(); err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
}

func IntegrationTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "integration-test",
		Short: "Run hardware tests (needs an MCP2221 with a DS7505 at 0x48)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Integ(); err != nil {
				return fmt.Errorf("failed to run integration testing: %w", err)
			}
			return nil
		},
	}
}

// CheckCmd runs lint and unit tests, stopping at the first failure.
func CheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run lint and unit tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := []struct {
				name string
				run  func() error
			}{
				{"lint", func() error { return test.Lint() }},
				{"test", func() error { return test.Test() }},
			}
			for _, step := range steps {
				slog.Info("running", "step", step.name)
				if err := step.run(); err != nil {
					return fmt.Errorf("%s failed: %w", step.name, err)
				}
			}
			return nil
		},
	}
}
