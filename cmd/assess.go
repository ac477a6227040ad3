package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/assessment"
	"github.com/privascan/privascan/internal/reporting"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newAssessCmd() *cobra.Command {
	var (
		kindFlag    string
		output      string
		projectName string
	)

	cmd := &cobra.Command{
		Use:   "assess <bundle.json>",
		Short: "Compose a privacy assessment from a saved scan bundle",
		Long: `Assess reads a bundle previously written by scan --format json and
composes it into a PIA, DPIA or RoPA document. The bundle is not
re-scanned; the document is derived purely from its findings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseAssessmentKind(kindFlag)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading bundle: %w", err)
			}
			var bundle schemas.ScanBundle
			if err := json.Unmarshal(data, &bundle); err != nil {
				return fmt.Errorf("parsing bundle: %w", err)
			}
			if bundle.ScanID == "" {
				return fmt.Errorf("%s does not look like a scan bundle (missing scan_id)", args[0])
			}

			projectInfo := bundle.ProjectInfo
			if projectName != "" {
				projectInfo = map[string]string{"name": projectName}
			}

			doc, err := assessment.NewComposer(logger).Compose(&bundle, kind, projectInfo)
			if err != nil {
				return fmt.Errorf("composing %s: %w", kind, err)
			}
			logger.Info("assessment composed",
				zap.String("scan_id", bundle.ScanID),
				zap.String("kind", string(kind)))

			reporter, err := reporting.New("json", output)
			if err != nil {
				return err
			}
			defer reporter.Close()
			return reporter.WriteAssessment(&doc)
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "PIA", "assessment kind: PIA, DPIA or RoPA")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&projectName, "project-name", "", "override the project name recorded in metadata")

	return cmd
}
