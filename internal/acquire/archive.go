package acquire

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/scanerrors"
	"github.com/privascan/privascan/internal/workspace"
)

// maxExtractedBytes bounds how much a zip may inflate to, against
// decompression bombs in uploaded artifacts.
const maxExtractedBytes = 2 << 30

// Archive writes the uploaded bytes into the workspace under a salted name
// and, for generic zips, extracts them to <workspace>/extracted. APK/IPA
// artifacts are returned as the file path; the mobile analyzer takes them
// as-is. The salt forces a unique content hash so downstream analyzers that
// cache by hash re-analyze every upload.
func (a *Acquirer) Archive(ctx context.Context, ws *workspace.Workspace, target *schemas.ArchiveTarget) (string, schemas.TargetDescriptor, error) {
	desc := schemas.TargetDescriptor{
		Kind:         schemas.TargetArchive,
		OriginalName: target.OriginalName,
		ArchiveKind:  target.Kind,
	}

	salted := saltedName(target.OriginalName)
	artifactPath := ws.Join(salted)
	if err := os.WriteFile(artifactPath, target.Data, 0o600); err != nil {
		return "", desc, scanerrors.NewAcquireError(scanerrors.ExtractFailed, "failed to stage uploaded artifact", err)
	}

	a.logger.Info("Staged uploaded artifact",
		zap.String("original_name", target.OriginalName),
		zap.String("kind", string(target.Kind)),
		zap.Int("size", len(target.Data)))

	if target.Kind != schemas.ArchiveGenericZip {
		return artifactPath, desc, nil
	}

	extractRoot := ws.Join("extracted")
	if err := extractZip(artifactPath, extractRoot); err != nil {
		return "", desc, scanerrors.NewAcquireError(scanerrors.ExtractFailed, "failed to extract archive", err)
	}
	return extractRoot, desc, nil
}

// saltedName prefixes the original file name with a timestamp and a random
// nonce, keeping the extension intact.
func saltedName(original string) string {
	base := filepath.Base(original)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "upload"
	}
	nonce := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("%d_%s_%s", time.Now().UnixNano(), nonce, base)
}

// extractZip inflates src into destRoot, rejecting entries that would escape
// the destination (zip-slip) and enforcing a total size budget.
func extractZip(src, destRoot string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return err
	}

	var written int64
	for _, f := range reader.File {
		cleaned := filepath.Clean(f.Name)
		if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
			return fmt.Errorf("zip entry escapes extraction root: %s", f.Name)
		}
		dest := filepath.Join(destRoot, cleaned)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}

		n, err := copyZipEntry(f, dest, maxExtractedBytes-written)
		if err != nil {
			return err
		}
		written += n
		if written > maxExtractedBytes {
			return fmt.Errorf("archive exceeds extraction size budget")
		}
	}
	return nil
}

func copyZipEntry(f *zip.File, dest string, budget int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(rc, budget+1))
	if err != nil {
		return n, fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return n, nil
}
