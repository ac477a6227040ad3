// Package reporting writes scan bundles and assessment documents to a file
// or stdout. Output is canonical: findings are sorted before serialization
// so identical inputs serialize to identical bytes.
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/privascan/privascan/api/schemas"
)

// Reporter renders scan output in one format.
type Reporter interface {
	// WriteBundle emits a full scan bundle.
	WriteBundle(bundle *schemas.ScanBundle) error
	// WriteAssessment emits a composed assessment document.
	WriteAssessment(doc *schemas.Assessment) error
	// Close flushes and releases the underlying writer.
	Close() error
}

// nopWriteCloser keeps stdout open across reporter Close.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error { return nil }

// New builds a reporter for the format, writing to outputPath or stdout when
// the path is empty or "stdout".
func New(format, outputPath string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "json":
		return newJSONReporter(writer), nil
	case "sarif":
		return newSARIFReporter(writer), nil
	default:
		if !isStdOut {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
