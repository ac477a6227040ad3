package schemas

import "time"

// AssessmentKind selects which privacy document the composer produces.
type AssessmentKind string

const (
	AssessmentPIA  AssessmentKind = "PIA"
	AssessmentDPIA AssessmentKind = "DPIA"
	AssessmentRoPA AssessmentKind = "RoPA"
)

// ScoreLevel pairs a 0-100 score with its qualitative level.
type ScoreLevel struct {
	Score int    `json:"score"`
	Level string `json:"level"`
}

// AssessmentMetadata identifies one rendered document.
type AssessmentMetadata struct {
	GeneratedAt time.Time         `json:"generated_at"`
	ReportType  AssessmentKind    `json:"report_type"`
	Version     string            `json:"version"`
	ProjectInfo map[string]string `json:"project_info,omitempty"`
}

// DataPoint is one PII-bearing finding rendered into the data inventory.
type DataPoint struct {
	Source   string    `json:"source"`
	File     string    `json:"file"`
	PIIKinds []PIIKind `json:"pii_kinds"`
	Category Category  `json:"category"`
	Severity Severity  `json:"severity"`
}

// DataInventory enumerates what personal data the scan surfaced.
type DataInventory struct {
	TotalDataPoints int             `json:"total_data_points"`
	ByKind          map[PIIKind]int `json:"by_kind,omitempty"`
	DataPoints      []DataPoint     `json:"data_points,omitempty"`
}

// RiskItem is the finding-shaped entry of the risk assessment section.
type RiskItem struct {
	Tool     Tool     `json:"tool"`
	File     string   `json:"file"`
	Line     *int     `json:"line,omitempty"`
	RuleID   string   `json:"rule_id,omitempty"`
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Summary  string   `json:"summary"`
}

// RiskAssessment carries the per-finding risks and their distribution.
type RiskAssessment struct {
	Risks         []RiskItem    `json:"risks"`
	Distribution  FindingCounts `json:"distribution"`
	TotalRisks    int           `json:"total_risks"`
	CriticalRisks int           `json:"critical_risks"`
	HighRisks     int           `json:"high_risks"`
	MediumRisks   int           `json:"medium_risks"`
	LowRisks      int           `json:"low_risks"`
}

// ImpactAxis is one of the legal/financial/reputational sub-scores with its
// static human-readable projections.
type ImpactAxis struct {
	Score       int    `json:"score"`
	Description string `json:"description"`
}

// ImpactAnalysis holds the three impact axes. The fine and recovery figures
// are fixed formulas over finding counts, not live estimates.
type ImpactAnalysis struct {
	Legal            ImpactAxis `json:"legal"`
	Financial        ImpactAxis `json:"financial"`
	Reputational     ImpactAxis `json:"reputational"`
	PotentialFineEUR int64      `json:"potential_fine_eur"`
	RecoveryMonths   int        `json:"recovery_months"`
}

// Recommendation is one entry of the mitigation plan.
type Recommendation struct {
	Priority      string   `json:"priority"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	ControlFamily string   `json:"control_family,omitempty"`
	Category      Category `json:"category,omitempty"`
}

// MitigationPlan groups the prioritized recommendations.
type MitigationPlan struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// RequirementResult is one sub-requirement verdict within a regulation.
type RequirementResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// RegulationResult is the per-regulation compliance outcome.
type RegulationResult struct {
	Regulation   string              `json:"regulation"`
	Score        int                 `json:"score"`
	Level        string              `json:"level"`
	Requirements []RequirementResult `json:"requirements"`
	Violations   []string            `json:"violations,omitempty"`
}

// ComplianceCheck holds the per-regulation results in a fixed order.
type ComplianceCheck struct {
	Regulations []RegulationResult `json:"regulations"`
}

// ProcessingActivity is one RoPA record derived from finding categories.
type ProcessingActivity struct {
	PIICategory string `json:"pii_category"`
	Purpose     string `json:"purpose"`
	DataSubject string `json:"data_subject"`
	LawfulBasis string `json:"lawful_basis"`
	Retention   string `json:"retention"`
	Transfer    string `json:"transfer"`
	Source      string `json:"source"`
}

// Assessment is the shared document structure of PIA, DPIA and RoPA. The
// three kinds differ only in which sections they populate; all of them are a
// deterministic function of the scan bundle.
type Assessment struct {
	Metadata             AssessmentMetadata   `json:"metadata"`
	ExecutiveSummary     string               `json:"executive_summary"`
	DataInventory        DataInventory        `json:"data_inventory"`
	RiskAssessment       RiskAssessment       `json:"risk_assessment"`
	ImpactAnalysis       *ImpactAnalysis      `json:"impact_analysis,omitempty"`
	MitigationPlan       MitigationPlan       `json:"mitigation_plan"`
	ComplianceCheck      *ComplianceCheck     `json:"compliance_check,omitempty"`
	ProcessingActivities []ProcessingActivity `json:"processing_activities,omitempty"`
	OverallRisk          ScoreLevel           `json:"overall_risk"`
	OverallImpact        ScoreLevel           `json:"overall_impact"`
	OverallCompliance    ScoreLevel           `json:"overall_compliance"`
}
