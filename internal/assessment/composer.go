// Package assessment renders PIA, DPIA and RoPA documents from a scan
// bundle. Everything below is a deterministic function of the bundle:
// findings are sorted before rendering and scores are computed once, so the
// same bundle always produces the same document.
package assessment

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/scoring"
)

// reportVersion stamps every generated document.
const reportVersion = "1.0"

// Composer renders assessment documents. The clock is injectable so tests
// can pin generated_at.
type Composer struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewComposer(logger *zap.Logger) *Composer {
	return &Composer{logger: logger.Named("assessment"), now: time.Now}
}

// Compose builds the requested document kind from the bundle. Missing or
// failed tool results simply contribute no findings.
func (c *Composer) Compose(bundle *schemas.ScanBundle, kind schemas.AssessmentKind, projectInfo map[string]string) (schemas.Assessment, error) {
	switch kind {
	case schemas.AssessmentPIA, schemas.AssessmentDPIA, schemas.AssessmentRoPA:
	default:
		return schemas.Assessment{}, fmt.Errorf("unknown assessment kind %q", kind)
	}

	findings := bundle.AllFindings()
	schemas.SortFindings(findings)
	counts := schemas.CountFindings(findings)

	risk := scoring.Risk(counts)
	impact := scoring.Impact(counts)
	overallImpact := scoring.OverallImpact(impact)
	compliance := scoring.Compliance(counts)
	overallCompliance := scoring.OverallCompliance(compliance)

	if projectInfo == nil {
		projectInfo = bundle.ProjectInfo
	}

	doc := schemas.Assessment{
		Metadata: schemas.AssessmentMetadata{
			GeneratedAt: c.now().UTC(),
			ReportType:  kind,
			Version:     reportVersion,
			ProjectInfo: projectInfo,
		},
		ExecutiveSummary:  executiveSummary(kind, counts, risk, overallCompliance),
		DataInventory:     buildInventory(findings),
		RiskAssessment:    buildRiskAssessment(findings, counts),
		OverallRisk:       risk,
		OverallImpact:     overallImpact,
		OverallCompliance: overallCompliance,
	}

	switch kind {
	case schemas.AssessmentPIA:
		doc.MitigationPlan = buildMitigationPlan(findings, false)
	case schemas.AssessmentDPIA:
		doc.ImpactAnalysis = &impact
		doc.ComplianceCheck = &compliance
		doc.MitigationPlan = buildMitigationPlan(findings, true)
	case schemas.AssessmentRoPA:
		doc.ProcessingActivities = buildProcessingActivities(findings)
	}

	c.logger.Info("Assessment composed",
		zap.String("kind", string(kind)),
		zap.Int("findings", counts.Total),
		zap.Int("risk_score", risk.Score))
	return doc, nil
}

func executiveSummary(kind schemas.AssessmentKind, c schemas.FindingCounts, risk, compliance schemas.ScoreLevel) string {
	return fmt.Sprintf(
		"This %s covers %d findings (%d critical, %d high, %d medium, %d low). "+
			"Overall risk is %s (%d/100); overall compliance posture is %s (%d/100).",
		kind, c.Total, c.Critical, c.High, c.Medium, c.Low,
		risk.Level, risk.Score, compliance.Level, compliance.Score)
}

// buildInventory enumerates the PII-bearing findings as data points.
func buildInventory(findings []schemas.Finding) schemas.DataInventory {
	inv := schemas.DataInventory{ByKind: map[schemas.PIIKind]int{}}
	for _, f := range findings {
		if len(f.PIIKinds) == 0 {
			continue
		}
		inv.DataPoints = append(inv.DataPoints, schemas.DataPoint{
			Source:   string(f.Tool),
			File:     f.File,
			PIIKinds: f.PIIKinds,
			Category: f.Category,
			Severity: f.Severity,
		})
		for _, k := range f.PIIKinds {
			inv.ByKind[k]++
		}
	}
	inv.TotalDataPoints = len(inv.DataPoints)
	if len(inv.ByKind) == 0 {
		inv.ByKind = nil
	}
	return inv
}

func buildRiskAssessment(findings []schemas.Finding, counts schemas.FindingCounts) schemas.RiskAssessment {
	ra := schemas.RiskAssessment{
		Risks:         make([]schemas.RiskItem, 0, len(findings)),
		Distribution:  counts,
		TotalRisks:    counts.Total,
		CriticalRisks: counts.Critical,
		HighRisks:     counts.High,
		MediumRisks:   counts.Medium,
		LowRisks:      counts.Low,
	}
	for _, f := range findings {
		ra.Risks = append(ra.Risks, schemas.RiskItem{
			Tool:     f.Tool,
			File:     f.File,
			Line:     f.Line,
			RuleID:   f.RuleID,
			Severity: f.Severity,
			Category: f.Category,
			Summary:  riskSummary(&f),
		})
	}
	return ra
}

func riskSummary(f *schemas.Finding) string {
	if f.RuleID != "" {
		return fmt.Sprintf("%s finding (%s) in %s", f.Category, f.RuleID, f.File)
	}
	return fmt.Sprintf("%s finding in %s", f.Category, f.File)
}

// severityPriority maps finding severity onto recommendation priority.
func severityPriority(s schemas.Severity) string {
	switch s {
	case schemas.SeverityCritical, schemas.SeverityHigh:
		return "HIGH"
	case schemas.SeverityMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
