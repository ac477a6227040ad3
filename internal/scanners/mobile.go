package scanners

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/scanerrors"
)

// sdkCountThreshold is how many embedded libraries a mobile app may carry
// before the adapter flags an excessive third-party surface.
const sdkCountThreshold = 5

// MobileAdapter drives the external mobile analysis service through the
// upload/scan/report/scorecard sequence and normalizes the schemaless
// report into findings.
type MobileAdapter struct {
	client *MobileClient
	logger *zap.Logger
}

// NewMobileAdapter builds the adapter over a configured client.
func NewMobileAdapter(client *MobileClient, logger *zap.Logger) *MobileAdapter {
	return &MobileAdapter{client: client, logger: logger.Named("mobile")}
}

func (a *MobileAdapter) Tool() schemas.Tool { return schemas.ToolMobile }

// Run uploads the artifact at in.ScanPath, waits for the analysis and
// normalizes report plus scorecard. Service failures are captured into the
// result status; the adapter never retries.
func (a *MobileAdapter) Run(ctx context.Context, in Input) schemas.ScanResult {
	if !a.client.Configured() {
		return errorResult(a.Tool(), schemas.StatusToolMissing,
			"mobile analysis service is not configured (mobile_service.base_url)")
	}

	scanType := strings.TrimPrefix(strings.ToLower(filepath.Ext(in.ScanPath)), ".")
	if scanType != "apk" && scanType != "ipa" {
		return errorResult(a.Tool(), schemas.StatusError,
			"mobile analysis requires an .apk or .ipa artifact, got "+filepath.Base(in.ScanPath))
	}

	start := time.Now()

	hash, err := a.client.Upload(ctx, in.ScanPath)
	if err != nil {
		return a.serviceError("upload", err)
	}
	if err := a.client.Scan(ctx, hash, scanType); err != nil {
		return a.serviceError("scan", err)
	}
	report, err := a.client.ReportJSON(ctx, hash)
	if err != nil {
		return a.serviceError("report", err)
	}
	scorecard, err := a.client.Scorecard(ctx, hash)
	if err != nil {
		return a.serviceError("scorecard", err)
	}

	summary := extractIdentity(report)
	summary.SecurityScore = intField(scorecard, "security_score")
	extractPIISummary(report, &summary)

	// The service's binary parser sometimes produces a hollow report: no
	// identity fields and a zero score. Surface that distinctly instead of
	// reporting a clean app.
	if summary.PackageName == "" && summary.Version == "" && summary.SecurityScore == 0 {
		out := errorResult(a.Tool(), schemas.StatusCompletedNoResults,
			"mobile analysis returned no app identity and a zero security score; artifact may be unparseable")
		out.Mobile = &summary
		out.WallTimeMS = time.Since(start).Milliseconds()
		return out
	}

	findings := a.normalizeFindings(report, scorecard)

	a.logger.Info("Mobile analysis finished",
		zap.String("package", summary.PackageName),
		zap.String("platform", summary.Platform),
		zap.Int("findings", len(findings)),
		zap.Int("security_score", summary.SecurityScore))

	out := completedResult(a.Tool(), findings, time.Since(start))
	out.Mobile = &summary
	return out
}

func (a *MobileAdapter) serviceError(step string, err error) schemas.ScanResult {
	var svcErr *scanerrors.ExternalServiceError
	if errors.As(err, &svcErr) {
		a.logger.Warn("Mobile service call failed",
			zap.String("step", step),
			zap.String("kind", string(svcErr.Kind)),
			zap.Error(err))
	}
	return errorResult(a.Tool(), schemas.StatusError,
		fmt.Sprintf("mobile analysis %s failed: %v", step, err))
}

// extractIdentity reads the app identity fields with Android/iOS branching.
func extractIdentity(report map[string]any) schemas.MobileSummary {
	s := schemas.MobileSummary{AppName: stringField(report, "app_name")}

	if pkg := stringField(report, "package_name"); pkg != "" {
		s.Platform = "android"
		s.PackageName = pkg
		s.Version = stringField(report, "version_name")
		s.TargetSDK = stringField(report, "target_sdk")
		s.MinSDK = stringField(report, "min_sdk")
		return s
	}
	if bundle := stringField(report, "bundle_id"); bundle != "" {
		s.Platform = "ios"
		s.PackageName = bundle
		s.Version = stringField(report, "app_version")
		s.TargetSDK = stringField(report, "sdk_name")
		s.MinSDK = stringField(report, "min_os_version")
	}
	return s
}

// normalizeFindings turns permissions, scorecard signals and trackers into
// the common finding model.
func (a *MobileAdapter) normalizeFindings(report, scorecard map[string]any) []schemas.Finding {
	var findings []schemas.Finding

	// Dangerous permissions.
	if perms, ok := report["permissions"].(map[string]any); ok {
		for _, name := range sortedKeys(perms) {
			meta, _ := perms[name].(map[string]any)
			if !strings.EqualFold(stringField(meta, "status"), "dangerous") {
				continue
			}
			findings = append(findings, schemas.Finding{
				ID:       findingID(a.Tool(), "permission:"+name, nil, "dangerous_permission"),
				Tool:     a.Tool(),
				File:     "permission:" + name,
				Content:  schemas.Truncate(stringField(meta, "description"), schemas.MaxContentLen),
				RuleID:   "dangerous_permission",
				Severity: schemas.SeverityHigh,
				Category: schemas.CategoryOverPermission,
			})
		}
	}

	// Scorecard signals, with the service's appsec severity vocabulary.
	for _, group := range []struct {
		key string
		sev schemas.Severity
	}{
		{"high", schemas.SeverityHigh},
		{"warning", schemas.SeverityMedium},
		{"info", schemas.SeverityInfo},
	} {
		for _, entry := range sliceField(scorecard, group.key) {
			m, _ := entry.(map[string]any)
			if m == nil {
				continue
			}
			title := stringField(m, "title")
			findings = append(findings, schemas.Finding{
				ID:       findingID(a.Tool(), "appsec:"+title, nil, group.key),
				Tool:     a.Tool(),
				File:     "appsec:" + stringField(m, "section"),
				Content:  schemas.Truncate(firstNonEmpty(stringField(m, "description"), title), schemas.MaxContentLen),
				RuleID:   "appsec_" + group.key,
				Severity: group.sev,
				Category: scorecardCategory(title + " " + stringField(m, "section")),
			})
		}
	}

	// Trackers embedded in the app.
	if trackers, ok := report["trackers"].(map[string]any); ok {
		for _, entry := range sliceField(trackers, "trackers") {
			m, _ := entry.(map[string]any)
			if m == nil {
				continue
			}
			name := stringField(m, "name")
			findings = append(findings, schemas.Finding{
				ID:       findingID(a.Tool(), "tracker:"+name, nil, "tracker"),
				Tool:     a.Tool(),
				File:     "tracker:" + name,
				Content:  schemas.Truncate(stringField(m, "url"), schemas.MaxContentLen),
				RuleID:   "embedded_tracker",
				Severity: schemas.SeverityMedium,
				Category: schemas.CategoryThirdPartySDK,
			})
		}
	}

	// Excessive third-party library surface.
	if libs := stringSlice(report, "libraries"); len(libs) > sdkCountThreshold {
		findings = append(findings, schemas.Finding{
			ID:       findingID(a.Tool(), "libraries", nil, "sdk_count"),
			Tool:     a.Tool(),
			File:     "libraries",
			Content:  fmt.Sprintf("app embeds %d third-party libraries", len(libs)),
			RuleID:   "excessive_sdk_count",
			Severity: schemas.SeverityLow,
			Category: schemas.CategoryThirdPartySDK,
		})
	}

	return findings
}

// scorecardCategory maps a scorecard signal onto the finding taxonomy.
func scorecardCategory(text string) schemas.Category {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "stor"), strings.Contains(t, "backup"), strings.Contains(t, "debug"):
		return schemas.CategoryInsecureStorage
	case strings.Contains(t, "clear text"), strings.Contains(t, "cleartext"),
		strings.Contains(t, "http"), strings.Contains(t, "ssl"), strings.Contains(t, "tls"):
		return schemas.CategoryInsecureTransport
	default:
		return schemas.CategoryOther
	}
}

// extractPIISummary pulls emails, URLs, domains, secrets, trackers and
// library references out of the report's nested structure.
func extractPIISummary(report map[string]any, s *schemas.MobileSummary) {
	for _, entry := range sliceField(report, "emails") {
		if m, ok := entry.(map[string]any); ok {
			s.Emails = append(s.Emails, stringSlice(m, "emails")...)
		} else if str, ok := entry.(string); ok {
			s.Emails = append(s.Emails, str)
		}
	}
	for _, entry := range sliceField(report, "urls") {
		if m, ok := entry.(map[string]any); ok {
			s.URLs = append(s.URLs, stringSlice(m, "urls")...)
		} else if str, ok := entry.(string); ok {
			s.URLs = append(s.URLs, str)
		}
	}
	if domains, ok := report["domains"].(map[string]any); ok {
		s.Domains = sortedKeys(domains)
	}
	s.Secrets = stringSlice(report, "secrets")
	s.Libraries = stringSlice(report, "libraries")
	if trackers, ok := report["trackers"].(map[string]any); ok {
		for _, entry := range sliceField(trackers, "trackers") {
			if m, ok := entry.(map[string]any); ok {
				s.Trackers = append(s.Trackers, stringField(m, "name"))
			}
		}
	}
	if strs, ok := report["strings"].([]any); ok {
		s.Strings = len(strs)
	}
}

// -- schemaless decoding helpers --

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

func intField(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func sliceField(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	v, _ := m[key].([]any)
	return v
}

func stringSlice(m map[string]any, key string) []string {
	var out []string
	for _, v := range sliceField(m, key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
