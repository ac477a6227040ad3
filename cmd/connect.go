package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/privascan/privascan/internal/orchestrator"
)

func newConnectCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "connect <repository-url>",
		Short: "Probe repository connectivity without cloning",
		Long: `Connect checks that the repository URL resolves on its hosting platform
and that the token (when given) grants access. Only the platform's
metadata API is consulted; nothing is cloned.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch := orchestrator.New(cfg, logger)
			result, err := orch.TestConnection(cmd.Context(), args[0], token)

			out, marshalErr := json.MarshalIndent(result, "", "  ")
			if marshalErr != nil {
				return marshalErr
			}
			fmt.Fprintln(os.Stdout, string(out))

			if err != nil {
				return fmt.Errorf("connection check failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "access token for private repositories")

	return cmd
}
