// Package orchestrator runs one scan end to end: acquire a workspace,
// materialize the target, fan the requested adapters out, and assemble the
// bundle. The workspace is released no matter how the scan ends.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/acquire"
	"github.com/privascan/privascan/internal/config"
	"github.com/privascan/privascan/internal/piiclass"
	"github.com/privascan/privascan/internal/procrunner"
	"github.com/privascan/privascan/internal/scanners"
	"github.com/privascan/privascan/internal/workspace"
)

// Request is one scan to run. Tools defaults to every adapter applicable to
// the target when empty; ProbeURL enables the headers and cookies probes.
type Request struct {
	Target      schemas.Target
	Tools       []schemas.Tool
	ProbeURL    string
	ProjectInfo map[string]string
}

// Orchestrator wires the workspace, acquirer and adapter registry together.
// One instance serves many concurrent scans; all per-scan state lives in the
// request and its workspace.
type Orchestrator struct {
	cfg      *config.Config
	acquirer *acquire.Acquirer
	registry *scanners.Registry
	logger   *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Orchestrator {
	runner := procrunner.New(logger)
	return &Orchestrator{
		cfg:      cfg,
		acquirer: acquire.New(runner, cfg.Timeouts.GitClone, logger),
		registry: scanners.NewRegistry(cfg, runner, logger),
		logger:   logger.Named("orchestrator"),
	}
}

// RunScan executes the requested tools against the target and returns the
// assembled bundle. Individual adapter failures are captured inside their
// ScanResult; only acquisition failures and cancellation fail the scan.
func (o *Orchestrator) RunScan(ctx context.Context, req Request) (*schemas.ScanBundle, error) {
	tools, err := o.resolveTools(req)
	if err != nil {
		return nil, err
	}

	bundle := &schemas.ScanBundle{
		ScanID:      uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		ProjectInfo: req.ProjectInfo,
	}
	log := o.logger.With(zap.String("scan_id", bundle.ScanID))

	ws, err := workspace.Acquire(o.cfg.Workspace.TempRoot, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if relErr := ws.Release(); relErr != nil {
			log.Error("Workspace release failed", zap.Error(relErr))
		}
	}()

	scanPath, descriptor, err := o.materialize(ctx, ws, req.Target)
	if err != nil {
		return nil, err
	}
	bundle.Target = descriptor

	in := scanners.Input{
		ScanPath: scanPath,
		URL:      req.ProbeURL,
		Archive:  req.Target.Kind == schemas.TargetArchive,
	}

	// Results land at fixed indexes so the bundle order does not depend on
	// completion order.
	results := make([]schemas.ScanResult, len(tools))
	g, runCtx := errgroup.WithContext(ctx)
	for i, tool := range tools {
		adapter, ok := o.registry.Get(tool)
		if !ok {
			results[i] = schemas.ScanResult{
				Tool:    tool,
				Status:  schemas.StatusError,
				Message: fmt.Sprintf("no adapter registered for tool %q", tool),
			}
			continue
		}
		i, adapter := i, adapter
		g.Go(func() error {
			results[i] = adapter.Run(runCtx, in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		// Cancelled mid-flight: the caller gets the error, never a partial
		// bundle. The deferred release still runs.
		return nil, ctx.Err()
	}

	bundle.Results = results
	bundle.FinishedAt = time.Now().UTC()
	piiclass.ClassifyAll(bundle)

	counts := bundle.TotalCounts()
	log.Info("Scan finished",
		zap.Int("tools", len(tools)),
		zap.Int("findings", counts.Total),
		zap.Duration("elapsed", bundle.FinishedAt.Sub(bundle.StartedAt)))
	return bundle, nil
}

// TestConnection validates repository reachability without cloning.
func (o *Orchestrator) TestConnection(ctx context.Context, repoURL, token string) (acquire.ConnectionResult, error) {
	return o.acquirer.TestConnection(ctx, repoURL, token)
}

// materialize puts the target's files on disk inside the workspace.
func (o *Orchestrator) materialize(ctx context.Context, ws *workspace.Workspace, target schemas.Target) (string, schemas.TargetDescriptor, error) {
	switch target.Kind {
	case schemas.TargetGit:
		if target.Git == nil {
			return "", schemas.TargetDescriptor{}, fmt.Errorf("git target missing payload")
		}
		return o.acquirer.Git(ctx, ws, target.Git)
	case schemas.TargetArchive:
		if target.Archive == nil {
			return "", schemas.TargetDescriptor{}, fmt.Errorf("archive target missing payload")
		}
		return o.acquirer.Archive(ctx, ws, target.Archive)
	default:
		return "", schemas.TargetDescriptor{}, fmt.Errorf("unknown target kind %q", target.Kind)
	}
}

// resolveTools validates the requested tools, or picks every adapter that
// fits the target when none were requested.
func (o *Orchestrator) resolveTools(req Request) ([]schemas.Tool, error) {
	var out []schemas.Tool
	if len(req.Tools) > 0 {
		seen := map[schemas.Tool]bool{}
		for _, tool := range req.Tools {
			if seen[tool] {
				continue
			}
			seen[tool] = true
			out = append(out, tool)
		}
	} else {
		switch req.Target.Kind {
		case schemas.TargetGit:
			out = []schemas.Tool{schemas.ToolSecretScannerA, schemas.ToolSecretScannerB}
		case schemas.TargetArchive:
			if req.Target.Archive == nil {
				return nil, fmt.Errorf("archive target missing payload")
			}
			if req.Target.Archive.Kind == schemas.ArchiveGenericZip {
				out = []schemas.Tool{schemas.ToolSAST}
			} else {
				out = []schemas.Tool{schemas.ToolMobile}
			}
		default:
			return nil, fmt.Errorf("unknown target kind %q", req.Target.Kind)
		}
		if req.ProbeURL != "" {
			out = append(out, schemas.ToolHeaders, schemas.ToolCookies)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
