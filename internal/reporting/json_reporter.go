package reporting

import (
	"encoding/json"
	"io"

	"github.com/privascan/privascan/api/schemas"
)

// jsonReporter writes indented canonical JSON. Findings are sorted before
// serialization; map keys are sorted by encoding/json itself.
type jsonReporter struct {
	writer io.WriteCloser
}

func newJSONReporter(w io.WriteCloser) *jsonReporter {
	return &jsonReporter{writer: w}
}

func (r *jsonReporter) WriteBundle(bundle *schemas.ScanBundle) error {
	canonical := *bundle
	canonical.Results = make([]schemas.ScanResult, len(bundle.Results))
	copy(canonical.Results, bundle.Results)
	for i := range canonical.Results {
		findings := make([]schemas.Finding, len(canonical.Results[i].Findings))
		copy(findings, canonical.Results[i].Findings)
		schemas.SortFindings(findings)
		canonical.Results[i].Findings = findings
	}
	return r.encode(&canonical)
}

func (r *jsonReporter) WriteAssessment(doc *schemas.Assessment) error {
	// The composer already sorts its findings; the document serializes
	// canonically as-is.
	return r.encode(doc)
}

func (r *jsonReporter) encode(v any) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *jsonReporter) Close() error { return r.writer.Close() }
