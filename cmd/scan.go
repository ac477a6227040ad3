package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/assessment"
	"github.com/privascan/privascan/internal/orchestrator"
	"github.com/privascan/privascan/internal/reporting"
)

type scanOptions struct {
	archivePath string
	branch      string
	token       string
	tools       []string
	probeURL    string
	output      string
	format      string
	assessKind  string
	projectName string
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [repository-url]",
		Short: "Scan a git repository or a local archive",
		Long: `Scan acquires the target (git clone or archive extraction), fans the
selected tools out against it and writes the resulting bundle. With
--assess the bundle is additionally composed into a privacy document
and that document is written instead.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := opts.buildTarget(args)
			if err != nil {
				return err
			}

			tools, err := parseTools(opts.tools)
			if err != nil {
				return err
			}

			req := orchestrator.Request{
				Target:   target,
				Tools:    tools,
				ProbeURL: opts.probeURL,
			}
			if opts.projectName != "" {
				req.ProjectInfo = map[string]string{"name": opts.projectName}
			}

			orch := orchestrator.New(cfg, logger)
			bundle, err := orch.RunScan(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			logger.Info("scan finished",
				zap.String("scan_id", bundle.ScanID),
				zap.Int("findings", schemas.CountFindings(bundle.AllFindings()).Total))

			reporter, err := reporting.New(opts.format, opts.output)
			if err != nil {
				return err
			}
			defer reporter.Close()

			if opts.assessKind != "" {
				kind, err := parseAssessmentKind(opts.assessKind)
				if err != nil {
					return err
				}
				doc, err := assessment.NewComposer(logger).Compose(bundle, kind, req.ProjectInfo)
				if err != nil {
					return fmt.Errorf("composing %s: %w", kind, err)
				}
				return reporter.WriteAssessment(&doc)
			}
			return reporter.WriteBundle(bundle)
		},
	}

	cmd.Flags().StringVar(&opts.archivePath, "archive", "", "scan a local archive (.zip, .apk, .ipa) instead of a repository")
	cmd.Flags().StringVar(&opts.branch, "branch", "", "branch to clone (default: remote HEAD)")
	cmd.Flags().StringVar(&opts.token, "token", "", "access token for private repositories")
	cmd.Flags().StringSliceVar(&opts.tools, "tools", nil, "tools to run (default: all applicable to the target)")
	cmd.Flags().StringVar(&opts.probeURL, "probe-url", "", "live URL for the headers and cookies probes")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&opts.format, "format", "json", "output format: json or sarif")
	cmd.Flags().StringVar(&opts.assessKind, "assess", "", "compose an assessment instead of the raw bundle: PIA, DPIA or RoPA")
	cmd.Flags().StringVar(&opts.projectName, "project-name", "", "project name recorded in assessment metadata")

	return cmd
}

// buildTarget turns the positional URL or the --archive flag into a Target.
// Exactly one of the two must be given; archive bytes are read eagerly so the
// scan never touches the original path again.
func (o *scanOptions) buildTarget(args []string) (schemas.Target, error) {
	switch {
	case o.archivePath != "" && len(args) > 0:
		return schemas.Target{}, fmt.Errorf("give either a repository URL or --archive, not both")
	case o.archivePath != "":
		data, err := os.ReadFile(o.archivePath)
		if err != nil {
			return schemas.Target{}, fmt.Errorf("reading archive: %w", err)
		}
		name := filepath.Base(o.archivePath)
		return schemas.NewArchiveTarget(data, name, archiveKindFor(name)), nil
	case len(args) == 1:
		return schemas.NewGitTarget(args[0], o.token, o.branch), nil
	default:
		return schemas.Target{}, fmt.Errorf("a repository URL or --archive is required")
	}
}

func archiveKindFor(name string) schemas.ArchiveKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".apk":
		return schemas.ArchiveAPK
	case ".ipa":
		return schemas.ArchiveIPA
	default:
		return schemas.ArchiveGenericZip
	}
}

var knownTools = map[string]schemas.Tool{
	string(schemas.ToolSecretScannerA): schemas.ToolSecretScannerA,
	string(schemas.ToolSecretScannerB): schemas.ToolSecretScannerB,
	string(schemas.ToolSAST):           schemas.ToolSAST,
	string(schemas.ToolMobile):         schemas.ToolMobile,
	string(schemas.ToolHeaders):        schemas.ToolHeaders,
	string(schemas.ToolCookies):        schemas.ToolCookies,
}

func parseTools(names []string) ([]schemas.Tool, error) {
	tools := make([]schemas.Tool, 0, len(names))
	for _, name := range names {
		tool, ok := knownTools[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q (known: %s)", name, strings.Join(knownToolNames(), ", "))
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

func knownToolNames() []string {
	names := make([]string, 0, len(knownTools))
	for name := range knownTools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseAssessmentKind(s string) (schemas.AssessmentKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PIA":
		return schemas.AssessmentPIA, nil
	case "DPIA":
		return schemas.AssessmentDPIA, nil
	case "ROPA":
		return schemas.AssessmentRoPA, nil
	default:
		return "", fmt.Errorf("unknown assessment kind %q (known: PIA, DPIA, RoPA)", s)
	}
}
