package scanners

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/config"
	"github.com/privascan/privascan/internal/procrunner"
)

func newTruffleHogForTest(t *testing.T) *TruffleHogAdapter {
	t.Helper()
	return NewTruffleHogAdapter(config.Default(), procrunner.New(zap.NewNop()), zap.NewNop())
}

func TestTruffleHogParse(t *testing.T) {
	a := newTruffleHogForTest(t)

	t.Run("empty output yields zero findings", func(t *testing.T) {
		findings, err := a.parse("")
		require.NoError(t, err)
		assert.Empty(t, findings)

		findings, err = a.parse("   \n\t")
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("valid array is normalized", func(t *testing.T) {
		out := `[{"path":"config/app.py","line":12,"secret":"sk_live_abc",
			"rule":{"id":"stripe-key","severity":"high"},
			"commit":"deadbeef","branch":"main","date":"2024-01-02"}]`

		findings, err := a.parse(out)
		require.NoError(t, err)
		require.Len(t, findings, 1)

		f := findings[0]
		assert.Equal(t, schemas.ToolSecretScannerA, f.Tool)
		assert.Equal(t, "config/app.py", f.File)
		require.NotNil(t, f.Line)
		assert.Equal(t, 12, *f.Line)
		assert.Equal(t, "sk_live_abc", f.Content)
		assert.Equal(t, "stripe-key", f.RuleID)
		assert.Equal(t, schemas.SeverityHigh, f.Severity)
		assert.Equal(t, schemas.CategoryHardcodedSecret, f.Category)
		assert.Equal(t, "deadbeef", f.Commit)
		assert.NotEmpty(t, f.ID)
		assert.NotEmpty(t, f.Raw)
	})

	t.Run("empty secret falls back to first context value", func(t *testing.T) {
		out := `[{"path":"a.txt","line":1,"secret":"",
			"context":{"zz":"later line","aa":"earlier line"},
			"rule":{"id":"entropy","severity":"medium"}}]`

		findings, err := a.parse(out)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		// lowest-sorting key wins, so the fallback is stable
		assert.Equal(t, "earlier line", findings[0].Content)
	})

	t.Run("malformed JSON is an error", func(t *testing.T) {
		_, err := a.parse("not json at all")
		assert.Error(t, err)
	})

	t.Run("long secret is truncated", func(t *testing.T) {
		long := make([]byte, 2*schemas.MaxContentLen)
		for i := range long {
			long[i] = 'x'
		}
		out := `[{"path":"a.txt","line":1,"secret":"` + string(long) + `","rule":{"id":"r","severity":"low"}}]`

		findings, err := a.parse(out)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Len(t, findings[0].Content, schemas.MaxContentLen)
	})
}

func TestTruffleHogRun_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake scanner script requires a POSIX shell")
	}

	// Answers the version probe instantly, then hangs on the actual scan.
	bin := filepath.Join(t.TempDir(), "trufflehog3")
	script := "#!/bin/sh\nif [ \"$1\" = \"--version\" ]; then echo 3.0; exit 0; fi\nsleep 30\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	cfg := config.Default()
	cfg.Scanners.SecretScannerA.Binary = bin
	cfg.Timeouts.ScannerARepo = 300 * time.Millisecond
	a := NewTruffleHogAdapter(cfg, procrunner.New(zap.NewNop()), zap.NewNop())

	start := time.Now()
	res := a.Run(context.Background(), Input{ScanPath: t.TempDir()})
	assert.Less(t, time.Since(start), 10*time.Second)

	assert.Equal(t, schemas.StatusTimedOut, res.Status)
	assert.Empty(t, res.Findings)
	assert.Contains(t, res.Message, "exceeded")
}

func TestMapTruffleHogSeverity(t *testing.T) {
	cases := map[string]schemas.Severity{
		"critical": schemas.SeverityCritical,
		"high":     schemas.SeverityHigh,
		"HIGH":     schemas.SeverityHigh,
		"medium":   schemas.SeverityMedium,
		"low":      schemas.SeverityLow,
		"info":     schemas.SeverityInfo,
		"":         schemas.SeverityMedium,
		"bogus":    schemas.SeverityMedium,
	}
	for in, want := range cases {
		assert.Equal(t, want, mapTruffleHogSeverity(in), "input %q", in)
	}
}
