// Package workspace provides one exclusive temporary directory per scan and
// guarantees its removal on every exit path. Git marks pack files read-only,
// so removal clears the read-only bit per file before unlinking and, on
// Windows, falls back to the platform force-delete command.
package workspace

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Workspace is a handle to a directory exclusively owned by one scan.
// Release is idempotent and safe to defer at the acquire site.
type Workspace struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	released bool
}

// Acquire creates a uniquely named directory under root. An empty root means
// the platform temp directory. Allocation failure is fatal to the scan.
func Acquire(root string, logger *zap.Logger) (*Workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create workspace root %s: %w", root, err)
		}
	}
	dir, err := os.MkdirTemp(root, "privascan-*")
	if err != nil {
		return nil, fmt.Errorf("failed to allocate workspace: %w", err)
	}
	return &Workspace{
		path:   dir,
		logger: logger.Named("workspace").With(zap.String("path", dir)),
	}, nil
}

// Path returns the absolute path of the workspace directory. It must not be
// used after Release.
func (w *Workspace) Path() string { return w.path }

// Join resolves a path relative to the workspace root.
func (w *Workspace) Join(elem ...string) string {
	return filepath.Join(append([]string{w.path}, elem...)...)
}

// Release recursively removes the workspace directory. Calling it twice is a
// no-op. A removal failure is logged, never returned as the primary result
// of a scan; the error return exists for tests and direct callers.
func (w *Workspace) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return nil
	}
	w.released = true

	if err := removeAll(w.path); err != nil {
		w.logger.Warn("Workspace cleanup failed", zap.Error(err))
		return err
	}
	w.logger.Debug("Workspace released")
	return nil
}

// removeAll removes dir, clearing read-only bits first so .git/objects/pack
// files do not survive. On Windows a failed removal is retried through
// cmd /C rmdir, which handles stubborn ACL and sharing cases.
func removeAll(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	clearReadOnly(dir)
	err := os.RemoveAll(dir)
	if err == nil {
		return nil
	}

	if runtime.GOOS == "windows" {
		// #nosec G204 -- dir is a path this process created under temp.
		cmd := exec.Command("cmd", "/C", "rmdir", "/S", "/Q", dir)
		if rmErr := cmd.Run(); rmErr == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to remove workspace %s: %w", dir, err)
}

// clearReadOnly walks dir and makes every entry writable. Walk errors are
// ignored; the subsequent RemoveAll reports anything that still fails.
func clearReadOnly(dir string) {
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil {
			return nil
		}
		if info.Mode()&0o200 == 0 {
			mode := info.Mode() | 0o200
			if info.IsDir() {
				mode |= 0o100
			}
			_ = os.Chmod(path, mode)
		}
		return nil
	})
}
