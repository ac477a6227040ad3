//go:build !windows

package procrunner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRun_CapturesStdoutAndExitCode(t *testing.T) {
	r := New(zap.NewNop())
	res, err := r.Run(context.Background(), Spec{
		Argv: []string{"sh", "-c", "echo hello; echo oops >&2; exit 3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.False(t, res.TimedOut)
	assert.Greater(t, res.WallTime, time.Duration(0))
}

func TestRun_Timeout(t *testing.T) {
	r := New(zap.NewNop())
	start := time.Now()
	res, err := r.Run(context.Background(), Spec{
		Argv:    []string{"sh", "-c", "echo partial; sleep 30"},
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Contains(t, res.Stdout, "partial")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRun_CallerCancellation(t *testing.T) {
	r := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, Spec{Argv: []string{"sleep", "30"}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_OutputTruncation(t *testing.T) {
	r := New(zap.NewNop())
	res, err := r.Run(context.Background(), Spec{
		Argv:           []string{"sh", "-c", "yes x | head -c 4096"},
		MaxOutputBytes: 128,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, strings.HasSuffix(res.Stdout, TruncationMarker))
	assert.LessOrEqual(t, len(res.Stdout), 128+len(TruncationMarker))
}

func TestRun_InvalidUTF8Replaced(t *testing.T) {
	r := New(zap.NewNop())
	res, err := r.Run(context.Background(), Spec{
		Argv: []string{"sh", "-c", `printf '\377\376ok'`},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "ok")
	assert.True(t, strings.Contains(res.Stdout, "�"))
}

func TestRun_EnvOverridesAndUTF8Forcing(t *testing.T) {
	r := New(zap.NewNop())
	res, err := r.Run(context.Background(), Spec{
		Argv: []string{"sh", "-c", "echo $PYTHONIOENCODING $CUSTOM_VAR"},
		Env:  map[string]string{"CUSTOM_VAR": "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "utf-8 42\n", res.Stdout)
}

func TestRun_MissingBinary(t *testing.T) {
	r := New(zap.NewNop())
	_, err := r.Run(context.Background(), Spec{
		Argv: []string{"definitely-not-a-real-binary-xyz"},
	})
	require.Error(t, err)
}

func TestRun_EmptyArgv(t *testing.T) {
	r := New(zap.NewNop())
	_, err := r.Run(context.Background(), Spec{})
	require.Error(t, err)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", Tail("abc", 10))
	assert.Equal(t, "cde", Tail("abcde", 3))
}
