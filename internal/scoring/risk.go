// Package scoring holds the fixed weighted formulas that turn severity
// counts into risk, impact and compliance scores. Every function here is
// pure: counts in, integers out, no other state consulted.
package scoring

import "github.com/privascan/privascan/api/schemas"

// Per-severity risk weights. Four criticals saturate the scale.
const (
	riskWeightCritical = 25
	riskWeightHigh     = 15
	riskWeightMedium   = 8
	riskWeightLow      = 3
)

// Risk level names shared with the impact scorer.
const (
	LevelCritical = "CRITICAL"
	LevelHigh     = "HIGH"
	LevelMedium   = "MEDIUM"
	LevelLow      = "LOW"
)

// Risk computes the bundle risk score and its qualitative level.
func Risk(c schemas.FindingCounts) schemas.ScoreLevel {
	score := clamp100(riskWeightCritical*c.Critical +
		riskWeightHigh*c.High +
		riskWeightMedium*c.Medium +
		riskWeightLow*c.Low)
	return schemas.ScoreLevel{Score: score, Level: riskLevel(score)}
}

func riskLevel(score int) string {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}

func clamp100(v int) int {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}
