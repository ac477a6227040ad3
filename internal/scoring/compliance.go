package scoring

import "github.com/privascan/privascan/api/schemas"

// Compliance level names.
const (
	LevelExcellent = "EXCELLENT"
	LevelGood      = "GOOD"
	LevelFair      = "FAIR"
	LevelPoor      = "POOR"
)

// requirementRule is one sub-requirement with its failure predicate over the
// severity counts.
type requirementRule struct {
	name  string
	fails func(c schemas.FindingCounts) bool
}

// regulationSpec describes one regulation: its blend weight, its score
// penalties per (critical, high, total) and its sub-requirements.
type regulationSpec struct {
	name         string
	weight       float64
	penalties    [3]int
	requirements []requirementRule
}

func anyCritical(c schemas.FindingCounts) bool { return c.Critical > 0 }
func anyHighOrWorse(c schemas.FindingCounts) bool { return c.Critical > 0 || c.High > 0 }
func totalOver(n int) func(schemas.FindingCounts) bool {
	return func(c schemas.FindingCounts) bool { return c.Total > n }
}

// The penalty tuples are heuristic; they are fixed here rather than
// configurable so scores stay comparable across scans.
var regulations = []regulationSpec{
	{
		name:      "GDPR",
		weight:    0.3,
		penalties: [3]int{15, 8, 1},
		requirements: []requirementRule{
			{"data_protection_by_design", anyCritical},
			{"security_of_processing", anyHighOrWorse},
			{"data_minimization", totalOver(20)},
			{"accountability", totalOver(50)},
		},
	},
	{
		name:      "DPDPA",
		weight:    0.3,
		penalties: [3]int{12, 7, 1},
		requirements: []requirementRule{
			{"consent_requirement", anyCritical},
			{"security_safeguards", anyHighOrWorse},
			{"data_fiduciary_obligations", totalOver(20)},
		},
	},
	{
		name:      "HIPAA",
		weight:    0.2,
		penalties: [3]int{18, 10, 2},
		requirements: []requirementRule{
			{"technical_safeguards", anyCritical},
			{"access_control", anyHighOrWorse},
			{"audit_controls", totalOver(30)},
		},
	},
	{
		name:      "CCPA",
		weight:    0.2,
		penalties: [3]int{10, 6, 1},
		requirements: []requirementRule{
			{"consumer_rights", anyCritical},
			{"reasonable_security", anyHighOrWorse},
			{"data_inventory", totalOver(25)},
		},
	},
}

// Compliance evaluates every regulation against the severity counts. The
// regulation order in the result is fixed.
func Compliance(c schemas.FindingCounts) schemas.ComplianceCheck {
	out := schemas.ComplianceCheck{
		Regulations: make([]schemas.RegulationResult, 0, len(regulations)),
	}
	for _, reg := range regulations {
		score := clamp100(100 -
			reg.penalties[0]*c.Critical -
			reg.penalties[1]*c.High -
			reg.penalties[2]*c.Total)

		res := schemas.RegulationResult{
			Regulation: reg.name,
			Score:      score,
			Level:      complianceLevel(score),
		}
		for _, req := range reg.requirements {
			passed := !req.fails(c)
			res.Requirements = append(res.Requirements, schemas.RequirementResult{
				Name:   req.name,
				Passed: passed,
			})
			if !passed {
				res.Violations = append(res.Violations, req.name)
			}
		}
		out.Regulations = append(out.Regulations, res)
	}
	return out
}

// OverallCompliance blends the per-regulation scores by their fixed weights.
func OverallCompliance(cc schemas.ComplianceCheck) schemas.ScoreLevel {
	var blended float64
	for i, reg := range cc.Regulations {
		blended += float64(reg.Score) * regulations[i].weight
	}
	score := clamp100(int(blended))
	return schemas.ScoreLevel{Score: score, Level: complianceLevel(score)}
}

func complianceLevel(score int) string {
	switch {
	case score >= 90:
		return LevelExcellent
	case score >= 75:
		return LevelGood
	case score >= 60:
		return LevelFair
	default:
		return LevelPoor
	}
}
