package scoring

import (
	"fmt"

	"github.com/privascan/privascan/api/schemas"
)

// Axis weights over (critical, high, total). Reputational damage compounds
// fastest; legal exposure slowest.
var (
	legalWeights        = [3]int{25, 15, 2}
	financialWeights    = [3]int{30, 20, 3}
	reputationalWeights = [3]int{35, 25, 4}
)

// Fine and recovery projections, static formulas rather than live estimates.
const (
	fineCapEUR          = 20_000_000
	finePerCriticalEUR  = 5_000_000
	finePerHighEUR      = 2_000_000
	recoveryCapMonths   = 24
	recoveryPerCritical = 8
	recoveryPerHigh     = 4
)

// Impact derives the three-axis impact analysis from severity counts.
func Impact(c schemas.FindingCounts) schemas.ImpactAnalysis {
	legal := axisScore(legalWeights, c)
	financial := axisScore(financialWeights, c)
	reputational := axisScore(reputationalWeights, c)

	fine := int64(finePerCriticalEUR)*int64(c.Critical) + int64(finePerHighEUR)*int64(c.High)
	if fine > fineCapEUR {
		fine = fineCapEUR
	}
	recovery := recoveryPerCritical*c.Critical + recoveryPerHigh*c.High
	if recovery > recoveryCapMonths {
		recovery = recoveryCapMonths
	}

	return schemas.ImpactAnalysis{
		Legal: schemas.ImpactAxis{
			Score:       legal,
			Description: fmt.Sprintf("Regulatory exposure from %d critical and %d high severity findings", c.Critical, c.High),
		},
		Financial: schemas.ImpactAxis{
			Score:       financial,
			Description: fmt.Sprintf("Projected remediation and penalty cost across %d findings", c.Total),
		},
		Reputational: schemas.ImpactAxis{
			Score:       reputational,
			Description: fmt.Sprintf("Public-trust damage potential across %d findings", c.Total),
		},
		PotentialFineEUR: fine,
		RecoveryMonths:   recovery,
	}
}

// OverallImpact blends the axes 0.4 legal, 0.4 financial, 0.2 reputational.
func OverallImpact(ia schemas.ImpactAnalysis) schemas.ScoreLevel {
	blended := float64(ia.Legal.Score)*0.4 +
		float64(ia.Financial.Score)*0.4 +
		float64(ia.Reputational.Score)*0.2
	score := clamp100(int(blended))
	return schemas.ScoreLevel{Score: score, Level: riskLevel(score)}
}

func axisScore(w [3]int, c schemas.FindingCounts) int {
	return clamp100(w[0]*c.Critical + w[1]*c.High + w[2]*c.Total)
}
