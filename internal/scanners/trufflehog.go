package scanners

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/config"
	"github.com/privascan/privascan/internal/procrunner"
)

// TruffleHogAdapter drives the deep history secret scanner (trufflehog3).
// It scans the full clone history, so it gets the long timeout on archives
// and the shorter one on working trees.
type TruffleHogAdapter struct {
	bin         string
	runner      *procrunner.Runner
	logger      *zap.Logger
	repoTimeout time.Duration
	fileTimeout time.Duration
}

// NewTruffleHogAdapter builds the adapter from configuration.
func NewTruffleHogAdapter(cfg *config.Config, runner *procrunner.Runner, logger *zap.Logger) *TruffleHogAdapter {
	return &TruffleHogAdapter{
		bin:         cfg.Scanners.SecretScannerA.Binary,
		runner:      runner,
		logger:      logger.Named("trufflehog"),
		repoTimeout: cfg.Timeouts.ScannerARepo,
		fileTimeout: cfg.Timeouts.ScannerAFile,
	}
}

func (a *TruffleHogAdapter) Tool() schemas.Tool { return schemas.ToolSecretScannerA }

// Run scans in.ScanPath and parses the JSON report from stdout. A missing
// binary yields status tool_missing; the scanner's habit of exiting non-zero
// when it finds secrets is tolerated as long as the output parses.
func (a *TruffleHogAdapter) Run(ctx context.Context, in Input) schemas.ScanResult {
	if !a.probe(ctx) {
		return errorResult(a.Tool(), schemas.StatusToolMissing,
			"secret scanner binary '"+a.bin+"' not found; install it or set scanners.secret_scanner_a.binary")
	}

	timeout := a.repoTimeout
	if in.Archive {
		timeout = a.fileTimeout
	}

	res, err := a.runner.Run(ctx, procrunner.Spec{
		Argv:    []string{a.bin, in.ScanPath, "--format", "JSON"},
		Timeout: timeout,
	})
	if err != nil {
		return errorResult(a.Tool(), schemas.StatusError, err.Error())
	}
	if res.TimedOut {
		return errorResult(a.Tool(), schemas.StatusTimedOut, "secret scan exceeded "+timeout.String())
	}

	findings, perr := a.parse(res.Stdout)
	if perr != nil {
		if res.ExitCode != 0 {
			out := errorResult(a.Tool(), schemas.StatusError, "scanner exited non-zero and produced no parseable report")
			out.ReturnCode = res.ExitCode
			out.StderrTail = procrunner.Tail(res.Stderr, stderrTail)
			return out
		}
		return errorResult(a.Tool(), schemas.StatusError, "failed to parse scanner output: "+perr.Error())
	}

	a.logger.Debug("Secret scan finished",
		zap.Int("findings", len(findings)),
		zap.Duration("wall_time", res.WallTime))

	out := completedResult(a.Tool(), findings, res.WallTime)
	out.ReturnCode = res.ExitCode
	return out
}

const stderrTail = 1024

// probe checks the binary responds to a version query. Run uses it instead
// of failing later with a confusing spawn error.
func (a *TruffleHogAdapter) probe(ctx context.Context) bool {
	res, err := a.runner.Run(ctx, procrunner.Spec{
		Argv:    []string{a.bin, "--version"},
		Timeout: 10 * time.Second,
	})
	return err == nil && !res.TimedOut
}

// trufflehogRecord is the scanner's native JSON element.
type trufflehogRecord struct {
	Path    string            `json:"path"`
	Line    int               `json:"line"`
	Secret  string            `json:"secret"`
	Context map[string]string `json:"context"`
	Rule    struct {
		ID       string `json:"id"`
		Severity string `json:"severity"`
	} `json:"rule"`
	Commit string `json:"commit"`
	Branch string `json:"branch"`
	Date   string `json:"date"`
}

// parse normalizes the JSON array into findings. An empty secret falls back
// to the first context value, deterministically.
func (a *TruffleHogAdapter) parse(stdout string) ([]schemas.Finding, error) {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return []schemas.Finding{}, nil
	}

	var records []trufflehogRecord
	if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
		return nil, err
	}

	findings := make([]schemas.Finding, 0, len(records))
	for _, rec := range records {
		secret := rec.Secret
		if secret == "" {
			secret = firstContextValue(rec.Context)
		}

		line := schemas.IntPtr(rec.Line)
		raw, _ := json.Marshal(rec)
		findings = append(findings, schemas.Finding{
			ID:           findingID(a.Tool(), rec.Path, line, rec.Rule.ID),
			Tool:         a.Tool(),
			File:         rec.Path,
			Line:         line,
			Content:      schemas.Truncate(secret, schemas.MaxContentLen),
			RuleID:       rec.Rule.ID,
			DetectorName: rec.Rule.ID,
			Severity:     mapTruffleHogSeverity(rec.Rule.Severity),
			Category:     schemas.CategoryHardcodedSecret,
			Commit:       rec.Commit,
			Branch:       rec.Branch,
			Date:         rec.Date,
			Raw:          raw,
		})
	}
	return findings, nil
}

// firstContextValue picks the value of the lowest-sorting context key so the
// fallback is stable across runs.
func firstContextValue(ctx map[string]string) string {
	if len(ctx) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return ctx[keys[0]]
}

func mapTruffleHogSeverity(s string) schemas.Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return schemas.SeverityCritical
	case "HIGH":
		return schemas.SeverityHigh
	case "LOW":
		return schemas.SeverityLow
	case "INFO":
		return schemas.SeverityInfo
	default:
		return schemas.SeverityMedium
	}
}
