// Package scanners hosts the per-tool adapters. Every adapter exposes the
// same shape: build the tool invocation (argv or HTTP call), run it, and
// normalize the native output into a ScanResult. Adapters never return
// errors from Run; every failure mode is captured into the result's status
// so one broken tool cannot abort its siblings.
package scanners

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/config"
	"github.com/privascan/privascan/internal/procrunner"
)

// json decodes the schemaless scanner outputs. Findings are normalized at
// this boundary; nothing downstream touches raw payloads.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Input carries what an adapter needs for one run. Filesystem adapters read
// ScanPath; the network probers read URL; Archive selects the longer
// timeout for uploaded artifacts.
type Input struct {
	ScanPath string
	URL      string
	Archive  bool
}

// Adapter is the common per-tool contract.
type Adapter interface {
	Tool() schemas.Tool
	Run(ctx context.Context, in Input) schemas.ScanResult
}

// FilesystemTools are the adapters that operate on the materialized scan
// path. They only read, so the orchestrator may run them in parallel.
var FilesystemTools = map[schemas.Tool]bool{
	schemas.ToolSecretScannerA: true,
	schemas.ToolSecretScannerB: true,
	schemas.ToolSAST:           true,
	schemas.ToolMobile:         true,
}

// Registry maps tools to their adapters, the way a worker maps task types to
// analyzers.
type Registry struct {
	adapters map[schemas.Tool]Adapter
}

// NewRegistry wires the default adapter set from configuration.
func NewRegistry(cfg *config.Config, runner *procrunner.Runner, logger *zap.Logger) *Registry {
	probe := newProbeClient(cfg.Timeouts.HTTPProbe, logger)
	r := &Registry{adapters: map[schemas.Tool]Adapter{}}
	r.Register(NewTruffleHogAdapter(cfg, runner, logger))
	r.Register(NewGitleaksAdapter(cfg, runner, logger))
	r.Register(NewSASTAdapter(cfg, runner, logger))
	r.Register(NewMobileAdapter(NewMobileClient(cfg.Mobile, cfg.Timeouts, logger), logger))
	r.Register(NewHeadersAdapter(probe, logger))
	r.Register(NewCookiesAdapter(probe, logger))
	logger.Info("Scanner adapters registered", zap.Int("count", len(r.adapters)))
	return r
}

// Register adds or replaces an adapter. Tests inject fakes through it.
func (r *Registry) Register(a Adapter) { r.adapters[a.Tool()] = a }

// Get returns the adapter for a tool.
func (r *Registry) Get(tool schemas.Tool) (Adapter, bool) {
	a, ok := r.adapters[tool]
	return a, ok
}

// errorResult builds the ScanResult for a failed adapter run.
func errorResult(tool schemas.Tool, status schemas.ScanStatus, msg string) schemas.ScanResult {
	return schemas.ScanResult{
		Tool:     tool,
		Status:   status,
		Findings: []schemas.Finding{},
		Message:  msg,
	}
}

// completedResult assembles a successful ScanResult with its tallies.
func completedResult(tool schemas.Tool, findings []schemas.Finding, wall time.Duration) schemas.ScanResult {
	if findings == nil {
		findings = []schemas.Finding{}
	}
	return schemas.ScanResult{
		Tool:       tool,
		Status:     schemas.StatusCompleted,
		Findings:   findings,
		Counts:     schemas.CountFindings(findings),
		WallTimeMS: wall.Milliseconds(),
	}
}

// findingID derives the scanner-local stable identifier.
func findingID(tool schemas.Tool, file string, line *int, rule string) string {
	l := 0
	if line != nil {
		l = *line
	}
	return fmt.Sprintf("%s:%s:%d:%s", tool, file, l, rule)
}
