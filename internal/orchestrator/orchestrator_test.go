package orchestrator

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/config"
	"github.com/privascan/privascan/internal/scanners"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAdapter lets tests stand in for an external tool.
type fakeAdapter struct {
	tool schemas.Tool
	run  func(ctx context.Context, in scanners.Input) schemas.ScanResult
}

func (f *fakeAdapter) Tool() schemas.Tool { return f.tool }

func (f *fakeAdapter) Run(ctx context.Context, in scanners.Input) schemas.ScanResult {
	return f.run(ctx, in)
}

func completedWith(tool schemas.Tool, findings ...schemas.Finding) schemas.ScanResult {
	return schemas.ScanResult{
		Tool:     tool,
		Status:   schemas.StatusCompleted,
		Findings: findings,
		Counts:   schemas.CountFindings(findings),
	}
}

func newOrchestratorForTest(t *testing.T, adapters ...scanners.Adapter) (*Orchestrator, string) {
	t.Helper()
	cfg := config.Default()
	tempRoot := t.TempDir()
	cfg.Workspace.TempRoot = tempRoot

	o := New(cfg, zap.NewNop())
	for _, a := range adapters {
		o.registry.Register(a)
	}
	return o, tempRoot
}

func zipTarget(t *testing.T, name, content string) schemas.Target {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return schemas.NewArchiveTarget(buf.Bytes(), "upload.zip", schemas.ArchiveGenericZip)
}

func requireTempRootEmpty(t *testing.T, tempRoot string) {
	t.Helper()
	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace directories left behind")
}

func TestRunScanAssemblesBundle(t *testing.T) {
	finding := schemas.Finding{
		ID: "f1", Tool: schemas.ToolSecretScannerA,
		File: "app.py", Content: "token=abc",
		Severity: schemas.SeverityHigh,
		Category: schemas.CategoryHardcodedSecret,
	}
	o, tempRoot := newOrchestratorForTest(t,
		&fakeAdapter{tool: schemas.ToolSecretScannerA, run: func(ctx context.Context, in scanners.Input) schemas.ScanResult {
			assert.DirExists(t, in.ScanPath)
			return completedWith(schemas.ToolSecretScannerA, finding)
		}},
		&fakeAdapter{tool: schemas.ToolSecretScannerB, run: func(ctx context.Context, in scanners.Input) schemas.ScanResult {
			return completedWith(schemas.ToolSecretScannerB)
		}},
	)

	bundle, err := o.RunScan(context.Background(), Request{
		Target:      zipTarget(t, "app.py", "token = 'abc'"),
		Tools:       []schemas.Tool{schemas.ToolSecretScannerB, schemas.ToolSecretScannerA},
		ProjectInfo: map[string]string{"name": "demo"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, bundle.ScanID)
	assert.Equal(t, schemas.TargetArchive, bundle.Target.Kind)
	assert.Equal(t, "upload.zip", bundle.Target.OriginalName)
	assert.Equal(t, "demo", bundle.ProjectInfo["name"])
	assert.False(t, bundle.FinishedAt.Before(bundle.StartedAt))

	// Requested tools are deduplicated and sorted, not completion-ordered.
	require.Len(t, bundle.Results, 2)
	assert.Equal(t, schemas.ToolSecretScannerA, bundle.Results[0].Tool)
	assert.Equal(t, schemas.ToolSecretScannerB, bundle.Results[1].Tool)
	assert.Equal(t, 1, bundle.TotalCounts().Total)

	requireTempRootEmpty(t, tempRoot)
}

func TestRunScanClassifiesFindings(t *testing.T) {
	finding := schemas.Finding{
		ID: "f1", Tool: schemas.ToolSAST,
		File: "billing.py", Content: `card = "4111 1111 1111 1111"`,
		Severity: schemas.SeverityHigh,
		Category: schemas.CategoryHardcodedSecret,
	}
	o, _ := newOrchestratorForTest(t,
		&fakeAdapter{tool: schemas.ToolSAST, run: func(ctx context.Context, in scanners.Input) schemas.ScanResult {
			return completedWith(schemas.ToolSAST, finding)
		}},
	)

	bundle, err := o.RunScan(context.Background(), Request{
		Target: zipTarget(t, "billing.py", `card = "4111 1111 1111 1111"`),
		Tools:  []schemas.Tool{schemas.ToolSAST},
	})
	require.NoError(t, err)

	require.Len(t, bundle.Results[0].Findings, 1)
	got := bundle.Results[0].Findings[0]
	assert.Contains(t, got.PIIKinds, schemas.PIICardNumber)
	assert.Equal(t, schemas.SeverityCritical, got.Severity)
	assert.Equal(t, 1, bundle.Results[0].Counts.Critical)
}

// One adapter failing must not disturb another adapter's findings.
func TestRunScanIsolatesAdapterFailure(t *testing.T) {
	finding := schemas.Finding{
		ID: "ok1", Tool: schemas.ToolSecretScannerA,
		File: "a.txt", Content: "secret",
		Severity: schemas.SeverityMedium,
		Category: schemas.CategoryHardcodedSecret,
	}
	o, tempRoot := newOrchestratorForTest(t,
		&fakeAdapter{tool: schemas.ToolSecretScannerA, run: func(ctx context.Context, in scanners.Input) schemas.ScanResult {
			return completedWith(schemas.ToolSecretScannerA, finding)
		}},
		&fakeAdapter{tool: schemas.ToolSecretScannerB, run: func(ctx context.Context, in scanners.Input) schemas.ScanResult {
			return schemas.ScanResult{
				Tool:    schemas.ToolSecretScannerB,
				Status:  schemas.StatusError,
				Message: "tool exploded",
			}
		}},
	)

	bundle, err := o.RunScan(context.Background(), Request{
		Target: zipTarget(t, "a.txt", "secret"),
		Tools:  []schemas.Tool{schemas.ToolSecretScannerA, schemas.ToolSecretScannerB},
	})
	require.NoError(t, err)

	require.Len(t, bundle.Results, 2)
	assert.Equal(t, schemas.StatusCompleted, bundle.Results[0].Status)
	assert.Len(t, bundle.Results[0].Findings, 1)
	assert.Equal(t, schemas.StatusError, bundle.Results[1].Status)

	requireTempRootEmpty(t, tempRoot)
}

func TestRunScanCancellation(t *testing.T) {
	started := make(chan struct{})
	o, tempRoot := newOrchestratorForTest(t,
		&fakeAdapter{tool: schemas.ToolSecretScannerA, run: func(ctx context.Context, in scanners.Input) schemas.ScanResult {
			close(started)
			<-ctx.Done()
			return schemas.ScanResult{Tool: schemas.ToolSecretScannerA, Status: schemas.StatusTimedOut}
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-started
		cancel()
	}()

	bundle, err := o.RunScan(ctx, Request{
		Target: zipTarget(t, "a.txt", "x"),
		Tools:  []schemas.Tool{schemas.ToolSecretScannerA},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, bundle)

	requireTempRootEmpty(t, tempRoot)
}

func TestRunScanUnknownTool(t *testing.T) {
	o, tempRoot := newOrchestratorForTest(t)

	bundle, err := o.RunScan(context.Background(), Request{
		Target: zipTarget(t, "a.txt", "x"),
		Tools:  []schemas.Tool{schemas.Tool("nonexistent")},
	})
	require.NoError(t, err)
	require.Len(t, bundle.Results, 1)
	assert.Equal(t, schemas.StatusError, bundle.Results[0].Status)

	requireTempRootEmpty(t, tempRoot)
}

func TestRunScanAcquireFailure(t *testing.T) {
	o, tempRoot := newOrchestratorForTest(t)

	// Corrupt zip bytes make extraction fail before any adapter runs.
	target := schemas.NewArchiveTarget([]byte("not a zip"), "bad.zip", schemas.ArchiveGenericZip)
	bundle, err := o.RunScan(context.Background(), Request{Target: target})
	require.Error(t, err)
	assert.Nil(t, bundle)

	requireTempRootEmpty(t, tempRoot)
}

func TestResolveTools(t *testing.T) {
	o, _ := newOrchestratorForTest(t)

	t.Run("explicit tools are deduplicated and sorted", func(t *testing.T) {
		tools, err := o.resolveTools(Request{
			Target: schemas.NewGitTarget("https://example.test/r.git", "", ""),
			Tools: []schemas.Tool{
				schemas.ToolSecretScannerB,
				schemas.ToolSecretScannerA,
				schemas.ToolSecretScannerB,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []schemas.Tool{schemas.ToolSecretScannerA, schemas.ToolSecretScannerB}, tools)
	})

	t.Run("git target defaults to both secret scanners", func(t *testing.T) {
		tools, err := o.resolveTools(Request{Target: schemas.NewGitTarget("https://example.test/r.git", "", "")})
		require.NoError(t, err)
		assert.ElementsMatch(t, []schemas.Tool{schemas.ToolSecretScannerA, schemas.ToolSecretScannerB}, tools)
	})

	t.Run("zip archive defaults to sast", func(t *testing.T) {
		tools, err := o.resolveTools(Request{Target: schemas.NewArchiveTarget(nil, "a.zip", schemas.ArchiveGenericZip)})
		require.NoError(t, err)
		assert.Equal(t, []schemas.Tool{schemas.ToolSAST}, tools)
	})

	t.Run("apk defaults to the mobile analyzer", func(t *testing.T) {
		tools, err := o.resolveTools(Request{Target: schemas.NewArchiveTarget(nil, "a.apk", schemas.ArchiveAPK)})
		require.NoError(t, err)
		assert.Equal(t, []schemas.Tool{schemas.ToolMobile}, tools)
	})

	t.Run("probe url adds the http probes", func(t *testing.T) {
		tools, err := o.resolveTools(Request{
			Target:   schemas.NewGitTarget("https://example.test/r.git", "", ""),
			ProbeURL: "https://example.test",
		})
		require.NoError(t, err)
		assert.Len(t, tools, 4)
		assert.Contains(t, tools, schemas.ToolHeaders)
		assert.Contains(t, tools, schemas.ToolCookies)
	})

	t.Run("unknown target kind is an error", func(t *testing.T) {
		_, err := o.resolveTools(Request{Target: schemas.Target{Kind: schemas.TargetKind("ftp")}})
		assert.Error(t, err)
	})
}

// Adapter wall time should overlap; a slow tool must not serialize the rest.
func TestRunScanAdaptersRunConcurrently(t *testing.T) {
	const delay = 150 * time.Millisecond

	slow := func(tool schemas.Tool) *fakeAdapter {
		return &fakeAdapter{tool: tool, run: func(ctx context.Context, in scanners.Input) schemas.ScanResult {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			return completedWith(tool)
		}}
	}
	o, _ := newOrchestratorForTest(t,
		slow(schemas.ToolSecretScannerA),
		slow(schemas.ToolSecretScannerB),
		slow(schemas.ToolSAST),
	)

	start := time.Now()
	_, err := o.RunScan(context.Background(), Request{
		Target: zipTarget(t, "a.txt", "x"),
		Tools:  []schemas.Tool{schemas.ToolSecretScannerA, schemas.ToolSecretScannerB, schemas.ToolSAST},
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*delay)
}
