package scanners

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/config"
	"github.com/privascan/privascan/internal/procrunner"
)

// SASTAdapter wraps the deep secret scanner for uploaded artifacts and adds
// the dashboard category buckets on top of the normalized findings.
type SASTAdapter struct {
	inner  *TruffleHogAdapter
	logger *zap.Logger
}

// NewSASTAdapter builds the adapter from configuration.
func NewSASTAdapter(cfg *config.Config, runner *procrunner.Runner, logger *zap.Logger) *SASTAdapter {
	return &SASTAdapter{
		inner:  NewTruffleHogAdapter(cfg, runner, logger),
		logger: logger.Named("sast"),
	}
}

func (a *SASTAdapter) Tool() schemas.Tool { return schemas.ToolSAST }

// Run scans the uploaded artifact with the archive timeout, re-tags the
// findings as sast, and buckets them for dashboard display.
func (a *SASTAdapter) Run(ctx context.Context, in Input) schemas.ScanResult {
	in.Archive = true
	res := a.inner.Run(ctx, in)
	res.Tool = a.Tool()

	for i := range res.Findings {
		f := &res.Findings[i]
		f.Tool = a.Tool()
		f.ID = findingID(a.Tool(), f.File, f.Line, f.RuleID)
	}

	if res.Status == schemas.StatusCompleted {
		res.Categories = Categorize(res.Findings)
	}
	return res
}

// categoryBucket pairs a dashboard bucket with its match keywords.
type categoryBucket struct {
	name     string
	keywords []string
}

// categoryBuckets are applied in order; the first keyword hit wins. The
// match text is the finding's severity string plus its content, lowercased.
var categoryBuckets = []categoryBucket{
	{"high_entropy", []string{"entropy"}},
	{"api_keys", []string{"api key", "api_key", "apikey"}},
	{"tokens", []string{"token"}},
	{"passwords", []string{"password", "passwd", "pwd"}},
	{"encryption_keys", []string{"encrypt", "cipher"}},
	{"aws_keys", []string{"aws", "akia"}},
	{"github_tokens", []string{"github", "ghp_", "gho_"}},
	{"private_keys", []string{"private key", "rsa", "ssh", "-----begin"}},
	{"database_credentials", []string{"database", "db_", "mysql", "postgres", "mongodb", "jdbc"}},
}

const bucketOther = "other_secrets"

// Categorize buckets findings into the fixed dashboard categories.
func Categorize(findings []schemas.Finding) map[string]int {
	out := map[string]int{}
	for _, f := range findings {
		out[bucketFor(&f)]++
	}
	return out
}

func bucketFor(f *schemas.Finding) string {
	text := strings.ToLower(string(f.Severity) + " " + f.Content)
	for _, b := range categoryBuckets {
		for _, kw := range b.keywords {
			if strings.Contains(text, kw) {
				return b.name
			}
		}
	}
	return bucketOther
}
