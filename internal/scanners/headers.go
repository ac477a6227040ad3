package scanners

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
)

// canonicalHeaders are the ten security response headers the prober grades,
// in report order.
var canonicalHeaders = []string{
	"Content-Security-Policy",
	"X-Frame-Options",
	"X-Content-Type-Options",
	"X-XSS-Protection",
	"Strict-Transport-Security",
	"Referrer-Policy",
	"Permissions-Policy",
	"Cross-Origin-Embedder-Policy",
	"Cross-Origin-Opener-Policy",
	"Cross-Origin-Resource-Policy",
}

// HeadersAdapter probes a URL and grades its security response headers.
type HeadersAdapter struct {
	probe  *probeClient
	logger *zap.Logger
}

// NewHeadersAdapter builds the adapter over the shared probe client.
func NewHeadersAdapter(probe *probeClient, logger *zap.Logger) *HeadersAdapter {
	return &HeadersAdapter{probe: probe, logger: logger.Named("headers")}
}

func (a *HeadersAdapter) Tool() schemas.Tool { return schemas.ToolHeaders }

// Run fetches in.URL and grades each canonical header as secure, weak or
// missing, emitting one finding per missing or weak header.
func (a *HeadersAdapter) Run(ctx context.Context, in Input) schemas.ScanResult {
	if in.URL == "" {
		return errorResult(a.Tool(), schemas.StatusError, "headers probe requires a URL")
	}

	start := time.Now()
	client := &http.Client{Timeout: a.probe.timeout}
	resp, err := a.probe.get(ctx, client, in.URL)
	if err != nil {
		if ctx.Err() != nil {
			return errorResult(a.Tool(), schemas.StatusTimedOut, "headers probe cancelled or timed out")
		}
		return errorResult(a.Tool(), schemas.StatusError, "failed to fetch URL: "+err.Error())
	}
	resp.Body.Close()

	statuses := map[string]schemas.HeaderStatus{}
	var findings []schemas.Finding
	secure := 0

	for _, name := range canonicalHeaders {
		status := gradeHeader(name, resp.Header.Get(name))
		statuses[name] = status
		switch status {
		case schemas.HeaderSecure:
			secure++
		case schemas.HeaderMissing:
			findings = append(findings, a.headerFinding(name, "missing", schemas.SeverityMedium,
				fmt.Sprintf("Security header %s is not set", name)))
		case schemas.HeaderWeak:
			findings = append(findings, a.headerFinding(name, "weak", schemas.SeverityLow,
				fmt.Sprintf("Security header %s is present but weakly configured: %s",
					name, schemas.Truncate(resp.Header.Get(name), 128))))
		}
	}

	score := secure * 100 / len(canonicalHeaders)
	a.logger.Info("Headers probe finished",
		zap.String("url", in.URL),
		zap.Int("secure", secure),
		zap.Int("score", score))

	out := completedResult(a.Tool(), findings, time.Since(start))
	out.HeaderProbe = &schemas.HeaderProbe{
		URL:           in.URL,
		Headers:       statuses,
		SecureCount:   secure,
		SecurityScore: score,
	}
	return out
}

func (a *HeadersAdapter) headerFinding(header, state string, sev schemas.Severity, desc string) schemas.Finding {
	return schemas.Finding{
		ID:       findingID(a.Tool(), header, nil, state),
		Tool:     a.Tool(),
		File:     "http-response:" + header,
		Content:  desc,
		RuleID:   "header_" + state,
		Severity: sev,
		Category: schemas.CategoryMissingSecurityHeader,
	}
}

// gradeHeader applies the fixed per-header rules.
func gradeHeader(name, value string) schemas.HeaderStatus {
	if strings.TrimSpace(value) == "" {
		return schemas.HeaderMissing
	}
	v := strings.ToLower(value)

	switch name {
	case "Content-Security-Policy":
		if strings.Contains(v, "unsafe-inline") || strings.Contains(v, "unsafe-eval") {
			return schemas.HeaderWeak
		}
		return schemas.HeaderSecure
	case "X-Frame-Options":
		if v == "deny" || v == "sameorigin" {
			return schemas.HeaderSecure
		}
		return schemas.HeaderWeak
	case "X-Content-Type-Options":
		if v == "nosniff" {
			return schemas.HeaderSecure
		}
		return schemas.HeaderWeak
	case "X-XSS-Protection":
		if strings.HasPrefix(v, "1") {
			return schemas.HeaderSecure
		}
		return schemas.HeaderWeak
	case "Strict-Transport-Security":
		if strings.Contains(v, "max-age") && strings.Contains(v, "includesubdomains") {
			return schemas.HeaderSecure
		}
		return schemas.HeaderWeak
	case "Referrer-Policy":
		switch v {
		case "no-referrer", "same-origin", "strict-origin", "strict-origin-when-cross-origin":
			return schemas.HeaderSecure
		}
		return schemas.HeaderWeak
	case "Permissions-Policy":
		return schemas.HeaderSecure
	case "Cross-Origin-Embedder-Policy":
		if v == "require-corp" || v == "credentialless" {
			return schemas.HeaderSecure
		}
		return schemas.HeaderWeak
	case "Cross-Origin-Opener-Policy":
		if v == "same-origin" || v == "same-origin-allow-popups" {
			return schemas.HeaderSecure
		}
		return schemas.HeaderWeak
	case "Cross-Origin-Resource-Policy":
		if v == "same-origin" || v == "same-site" {
			return schemas.HeaderSecure
		}
		return schemas.HeaderWeak
	}
	return schemas.HeaderWeak
}
