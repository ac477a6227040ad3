package piiclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privascan/privascan/api/schemas"
)

func TestClassifyKeywordMatching(t *testing.T) {
	cases := []struct {
		name    string
		finding schemas.Finding
		want    []schemas.PIIKind
	}{
		{
			name:    "credit card literal in content",
			finding: schemas.Finding{Content: `card = "4111 1111 1111 1111"`, Severity: schemas.SeverityHigh},
			want:    []schemas.PIIKind{schemas.PIICardNumber},
		},
		{
			name:    "email column in file path",
			finding: schemas.Finding{File: "migrations/add_email_column.sql", Severity: schemas.SeverityLow},
			want:    []schemas.PIIKind{schemas.PIIEmail},
		},
		{
			name:    "rule id carries the signal",
			finding: schemas.Finding{RuleID: "aws-api-key", Severity: schemas.SeverityHigh},
			want:    []schemas.PIIKind{schemas.PIIAPIKey},
		},
		{
			name: "multiple kinds are additive",
			finding: schemas.Finding{
				Content:  "password and api_key found near user_id",
				Severity: schemas.SeverityMedium,
			},
			want: []schemas.PIIKind{schemas.PIIUserID, schemas.PIIPassword, schemas.PIIAPIKey},
		},
		{
			name:    "no keyword leaves kinds empty",
			finding: schemas.Finding{Content: "nothing interesting here", Severity: schemas.SeverityLow},
			want:    nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			Classify(&tc.finding)
			assert.ElementsMatch(t, tc.want, tc.finding.PIIKinds)
		})
	}
}

func TestClassifySeverityEscalation(t *testing.T) {
	t.Run("high becomes critical for card numbers", func(t *testing.T) {
		f := schemas.Finding{Content: `card = "4111 1111 1111 1111"`, Severity: schemas.SeverityHigh}
		Classify(&f)
		assert.Equal(t, schemas.SeverityCritical, f.Severity)
	})

	t.Run("medium becomes high for passport data", func(t *testing.T) {
		f := schemas.Finding{Content: "passport_number=K1234567", Severity: schemas.SeverityMedium}
		Classify(&f)
		assert.Equal(t, schemas.SeverityHigh, f.Severity)
	})

	t.Run("low ends at least high", func(t *testing.T) {
		f := schemas.Finding{File: "data/ssn_export.csv", Severity: schemas.SeverityLow}
		Classify(&f)
		require.Contains(t, f.PIIKinds, schemas.PIIIDNumber)
		assert.True(t, f.Severity.AtLeast(schemas.SeverityHigh))
	})

	t.Run("non-escalating kinds keep their severity", func(t *testing.T) {
		f := schemas.Finding{Content: "hardcoded password", Severity: schemas.SeverityMedium}
		Classify(&f)
		assert.Equal(t, []schemas.PIIKind{schemas.PIIPassword}, f.PIIKinds)
		assert.Equal(t, schemas.SeverityMedium, f.Severity)
	})

	t.Run("critical stays critical", func(t *testing.T) {
		f := schemas.Finding{Content: "patient mrn leaked", Severity: schemas.SeverityCritical}
		Classify(&f)
		assert.Equal(t, schemas.SeverityCritical, f.Severity)
	})
}

func TestClassifyIdempotent(t *testing.T) {
	f := schemas.Finding{Content: "password=hunter2", Severity: schemas.SeverityMedium}
	Classify(&f)
	Classify(&f)
	assert.Equal(t, []schemas.PIIKind{schemas.PIIPassword}, f.PIIKinds)
}

func TestClassifyAllRecountsSeverities(t *testing.T) {
	bundle := &schemas.ScanBundle{
		Results: []schemas.ScanResult{{
			Tool:   schemas.ToolSecretScannerA,
			Status: schemas.StatusCompleted,
			Findings: []schemas.Finding{
				{Content: `card = "4111 1111 1111 1111"`, Severity: schemas.SeverityHigh},
				{Content: "plain secret", Severity: schemas.SeverityLow},
			},
			Counts: schemas.FindingCounts{Total: 2, High: 1, Low: 1},
		}},
	}

	ClassifyAll(bundle)

	counts := bundle.Results[0].Counts
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 1, counts.Critical)
	assert.Equal(t, 0, counts.High)
	assert.Equal(t, 1, counts.Low)
}
