package scanners

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/config"
	"github.com/privascan/privascan/internal/procrunner"
)

// gitleaksSecretLen caps the stored secret snippet for this tool.
const gitleaksSecretLen = 100

// GitleaksAdapter drives the working-tree secret scanner. The report lands
// in a temp file which is removed on the way out.
type GitleaksAdapter struct {
	binary     string
	bundledDir string
	runner     *procrunner.Runner
	logger     *zap.Logger
	timeout    time.Duration
}

// NewGitleaksAdapter builds the adapter from configuration.
func NewGitleaksAdapter(cfg *config.Config, runner *procrunner.Runner, logger *zap.Logger) *GitleaksAdapter {
	return &GitleaksAdapter{
		binary:     cfg.Scanners.SecretScannerB.Binary,
		bundledDir: cfg.Scanners.SecretScannerB.BundledDir,
		runner:     runner,
		logger:     logger.Named("gitleaks"),
		timeout:    cfg.Timeouts.ScannerB,
	}
}

func (a *GitleaksAdapter) Tool() schemas.Tool { return schemas.ToolSecretScannerB }

// resolveBinary prefers the system-installed binary, then the bundled copy
// under the tools directory.
func (a *GitleaksAdapter) resolveBinary() (string, bool) {
	if p, err := exec.LookPath(a.binary); err == nil {
		return p, true
	}
	name := filepath.Base(a.binary)
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		name += ".exe"
	}
	bundled := filepath.Join(a.bundledDir, name)
	if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
		return bundled, true
	}
	return "", false
}

// Run scans the working tree at in.ScanPath. An empty report file means zero
// findings, not an error; gitleaks exits 1 when it finds leaks, which is a
// normal completed run here.
func (a *GitleaksAdapter) Run(ctx context.Context, in Input) schemas.ScanResult {
	bin, ok := a.resolveBinary()
	if !ok {
		return errorResult(a.Tool(), schemas.StatusToolMissing,
			"gitleaks binary not found on PATH or under "+a.bundledDir)
	}

	report, err := os.CreateTemp("", "gitleaks-*.json")
	if err != nil {
		return errorResult(a.Tool(), schemas.StatusError, "failed to create report file: "+err.Error())
	}
	reportPath := report.Name()
	report.Close()
	defer os.Remove(reportPath)

	res, err := a.runner.Run(ctx, procrunner.Spec{
		Argv: []string{bin, "detect",
			"--source", in.ScanPath,
			"--report-path", reportPath,
			"--report-format", "json",
			"--no-banner", "--exit-code", "0"},
		Timeout: a.timeout,
	})
	if err != nil {
		return errorResult(a.Tool(), schemas.StatusError, err.Error())
	}
	if res.TimedOut {
		return errorResult(a.Tool(), schemas.StatusTimedOut, "secret scan exceeded "+a.timeout.String())
	}

	findings, perr := a.parseReport(reportPath)
	if perr != nil {
		out := errorResult(a.Tool(), schemas.StatusError, "failed to parse report: "+perr.Error())
		out.ReturnCode = res.ExitCode
		out.StderrTail = procrunner.Tail(res.Stderr, stderrTail)
		return out
	}

	a.logger.Debug("Working-tree scan finished",
		zap.Int("findings", len(findings)),
		zap.Duration("wall_time", res.WallTime))

	out := completedResult(a.Tool(), findings, res.WallTime)
	out.ReturnCode = res.ExitCode
	return out
}

// gitleaksRecord is one element of the tool's JSON report.
type gitleaksRecord struct {
	File        string `json:"File"`
	StartLine   int    `json:"StartLine"`
	RuleID      string `json:"RuleID"`
	Secret      string `json:"Secret"`
	Description string `json:"Description"`
	Commit      string `json:"Commit"`
	Date        string `json:"Date"`
}

func (a *GitleaksAdapter) parseReport(path string) ([]schemas.Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []schemas.Finding{}, nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		// Zero findings produce an empty report file.
		return []schemas.Finding{}, nil
	}

	var records []gitleaksRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	findings := make([]schemas.Finding, 0, len(records))
	for _, rec := range records {
		line := schemas.IntPtr(rec.StartLine)
		raw, _ := json.Marshal(rec)
		findings = append(findings, schemas.Finding{
			ID:           findingID(a.Tool(), rec.File, line, rec.RuleID),
			Tool:         a.Tool(),
			File:         rec.File,
			Line:         line,
			Content:      schemas.Truncate(rec.Secret, gitleaksSecretLen),
			RuleID:       rec.RuleID,
			DetectorName: rec.Description,
			Severity:     schemas.SeverityHigh,
			Category:     schemas.CategoryHardcodedSecret,
			Commit:       rec.Commit,
			Date:         rec.Date,
			Raw:          raw,
		})
	}
	return findings, nil
}
