// Package cmd wires the privascan CLI. Subcommands are thin drivers over the
// orchestrator, composer and reporters; all scanning logic lives under
// internal/.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/privascan/privascan/internal/config"
	"github.com/privascan/privascan/internal/observability"
)

var (
	cfgFile string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "privascan",
	Short: "Privacy and compliance scanner for repositories and mobile artifacts",
	Long: `privascan scans git repositories, source archives and mobile app
artifacts for hardcoded secrets, personal data exposure and weak web
hardening, then composes privacy assessment documents (PIA, DPIA, RoPA)
from the normalized findings.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		observability.InitializeLogger(cfg.Logger)
		logger = observability.GetLogger()
		return nil
	},
}

// Execute runs the root command with the given context. The context is
// cancelled on SIGINT/SIGTERM by the caller; every subcommand threads it
// through to its blocking work.
func Execute(ctx context.Context) {
	defer observability.Sync()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		observability.Sync()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./privascan.yaml)")
	rootCmd.SetVersionTemplate("privascan version {{.Version}}\n")
	rootCmd.Version = Version

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newAssessCmd())
	rootCmd.AddCommand(newConnectCmd())
	rootCmd.AddCommand(newVersionCmd())
}
