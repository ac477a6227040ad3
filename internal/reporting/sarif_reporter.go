package reporting

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/reporting/sarif"
)

const (
	toolName     = "privascan"
	toolInfoURI  = "https://github.com/privascan/privascan"
	sarifVersion = "2.1.0"
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// ruleIDSanitizer collapses characters SARIF consumers reject in rule IDs.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// sarifReporter renders one SARIF run per tool in the bundle.
type sarifReporter struct {
	writer io.WriteCloser
}

func newSARIFReporter(w io.WriteCloser) *sarifReporter {
	return &sarifReporter{writer: w}
}

func (r *sarifReporter) WriteBundle(bundle *schemas.ScanBundle) error {
	log := &sarif.Log{
		Version: sarifVersion,
		Schema:  sarifSchema,
	}
	for i := range bundle.Results {
		log.Runs = append(log.Runs, buildRun(&bundle.Results[i]))
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

// WriteAssessment is rejected: SARIF models static-analysis results, not
// privacy assessment documents.
func (r *sarifReporter) WriteAssessment(*schemas.Assessment) error {
	return fmt.Errorf("sarif output supports scan bundles only; use the json format for assessments")
}

func (r *sarifReporter) Close() error { return r.writer.Close() }

func buildRun(res *schemas.ScanResult) *sarif.Run {
	findings := make([]schemas.Finding, len(res.Findings))
	copy(findings, res.Findings)
	schemas.SortFindings(findings)

	driver := &sarif.ToolComponent{
		Name:           toolName + "/" + string(res.Tool),
		InformationURI: sarif.Str(toolInfoURI),
	}

	run := &sarif.Run{
		Tool:    &sarif.Tool{Driver: driver},
		Results: []*sarif.Result{},
	}

	seenRules := map[string]bool{}
	for i := range findings {
		f := &findings[i]
		ruleID := sanitizeRuleID(f.RuleID, f.Category)
		if !seenRules[ruleID] {
			seenRules[ruleID] = true
			desc := &sarif.ReportingDescriptor{
				ID: ruleID,
				ShortDescription: &sarif.MultiformatMessageString{
					Text: sarif.Str(string(f.Category)),
				},
			}
			if f.DetectorName != "" {
				desc.Name = sarif.Str(f.DetectorName)
			}
			driver.Rules = append(driver.Rules, desc)
		}

		loc := &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: sarif.Str(f.File)},
		}
		if f.Line != nil {
			loc.Region = &sarif.Region{StartLine: f.Line}
		}

		props := sarif.PropertyBag{"category": string(f.Category)}
		if len(f.PIIKinds) > 0 {
			props["pii_kinds"] = f.PIIKinds
		}

		run.Results = append(run.Results, &sarif.Result{
			RuleID:    ruleID,
			Level:     severityLevel(f.Severity),
			Message:   &sarif.Message{Text: sarif.Str(resultMessage(f))},
			Locations: []*sarif.Location{{PhysicalLocation: loc}},
			PartialFingerprints: map[string]string{
				"privascan/v1": fingerprint(f),
			},
			Properties: &props,
		})
	}
	return run
}

func sanitizeRuleID(ruleID string, category schemas.Category) string {
	id := ruleID
	if id == "" {
		id = string(category)
	}
	id = ruleIDSanitizer.ReplaceAllString(id, "-")
	return strings.Trim(id, "-")
}

func resultMessage(f *schemas.Finding) string {
	if f.DetectorName != "" {
		return fmt.Sprintf("%s: %s finding in %s", f.DetectorName, f.Category, f.File)
	}
	return fmt.Sprintf("%s finding in %s", f.Category, f.File)
}

// fingerprint identifies a finding across runs independently of its volatile
// fields (commit, date, raw payload).
func fingerprint(f *schemas.Finding) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%s\x00%s",
		f.Tool, f.File, lineOrZero(f), f.RuleID, f.Content)
	return hex.EncodeToString(h.Sum(nil))
}

func lineOrZero(f *schemas.Finding) int {
	if f.Line == nil {
		return 0
	}
	return *f.Line
}

func severityLevel(s schemas.Severity) sarif.Level {
	switch s {
	case schemas.SeverityCritical, schemas.SeverityHigh:
		return sarif.LevelError
	case schemas.SeverityMedium:
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}
