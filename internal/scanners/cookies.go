package scanners

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/privascan/privascan/api/schemas"
)

// Cookie risk scoring constants: non-secure cookies weigh 2, third-party 3,
// with level cutoffs at 5 and 10.
const (
	cookieNonSecureWeight  = 2
	cookieThirdPartyWeight = 3
	cookieMediumThreshold  = 5
	cookieHighThreshold    = 10
)

// CookiesAdapter probes a URL and audits the cookies it sets.
type CookiesAdapter struct {
	probe  *probeClient
	logger *zap.Logger
}

// NewCookiesAdapter builds the adapter over the shared probe client.
func NewCookiesAdapter(probe *probeClient, logger *zap.Logger) *CookiesAdapter {
	return &CookiesAdapter{probe: probe, logger: logger.Named("cookies")}
}

func (a *CookiesAdapter) Tool() schemas.Tool { return schemas.ToolCookies }

// Run fetches in.URL with a cookie jar and flags policy issues on every
// cookie the response sets.
func (a *CookiesAdapter) Run(ctx context.Context, in Input) schemas.ScanResult {
	if in.URL == "" {
		return errorResult(a.Tool(), schemas.StatusError, "cookies probe requires a URL")
	}
	target, err := url.Parse(in.URL)
	if err != nil {
		return errorResult(a.Tool(), schemas.StatusError, "invalid URL: "+err.Error())
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	client := &http.Client{Jar: jar, Timeout: a.probe.timeout}

	start := time.Now()
	resp, err := a.probe.get(ctx, client, in.URL)
	if err != nil {
		if ctx.Err() != nil {
			return errorResult(a.Tool(), schemas.StatusTimedOut, "cookies probe cancelled or timed out")
		}
		return errorResult(a.Tool(), schemas.StatusError, "failed to fetch URL: "+err.Error())
	}
	resp.Body.Close()

	siteDomain := registrableDomain(target.Hostname())

	var records []schemas.CookieRecord
	var findings []schemas.Finding
	nonSecure, thirdParty := 0, 0

	for _, c := range resp.Cookies() {
		rec, issues, isThirdParty := auditCookie(c, siteDomain)
		records = append(records, rec)
		if len(issues) == 0 {
			continue
		}
		if !c.Secure {
			nonSecure++
		}
		sev := schemas.SeverityLow
		if isThirdParty {
			thirdParty++
			sev = schemas.SeverityMedium
		}
		findings = append(findings, schemas.Finding{
			ID:       findingID(a.Tool(), c.Name, nil, "cookie_policy"),
			Tool:     a.Tool(),
			File:     "cookie:" + c.Name,
			Content:  fmt.Sprintf("Cookie %q: %s", c.Name, strings.Join(issues, "; ")),
			RuleID:   "cookie_policy",
			Severity: sev,
			Category: schemas.CategoryTrackingCookie,
		})
	}

	score := cookieNonSecureWeight*nonSecure + cookieThirdPartyWeight*thirdParty
	level := "LOW"
	switch {
	case score >= cookieHighThreshold:
		level = "HIGH"
	case score >= cookieMediumThreshold:
		level = "MEDIUM"
	}

	a.logger.Info("Cookies probe finished",
		zap.String("url", in.URL),
		zap.Int("cookies", len(records)),
		zap.Int("risk_score", score))

	out := completedResult(a.Tool(), findings, time.Since(start))
	out.CookieProbe = &schemas.CookieProbe{
		URL:        in.URL,
		Cookies:    records,
		NonSecure:  nonSecure,
		ThirdParty: thirdParty,
		RiskScore:  score,
		RiskLevel:  level,
	}
	return out
}

// auditCookie builds the record for one cookie and the list of policy issues
// flagged against it.
func auditCookie(c *http.Cookie, siteDomain string) (schemas.CookieRecord, []string, bool) {
	var issues []string

	if !c.Secure {
		issues = append(issues, "missing Secure attribute")
	}
	if !c.HttpOnly {
		issues = append(issues, "missing HttpOnly attribute")
	}

	sameSite := sameSiteString(c.SameSite)
	if c.SameSite != http.SameSiteStrictMode && c.SameSite != http.SameSiteLaxMode {
		issues = append(issues, "SameSite is not Strict or Lax")
	}

	isThirdParty := false
	if c.Domain != "" && siteDomain != "" {
		cookieDomain := registrableDomain(strings.TrimPrefix(c.Domain, "."))
		if cookieDomain != "" && cookieDomain != siteDomain {
			isThirdParty = true
			issues = append(issues, "third-party domain "+c.Domain)
		}
	}

	expires := ""
	if !c.Expires.IsZero() {
		expires = c.Expires.UTC().Format(time.RFC3339)
	}

	rec := schemas.CookieRecord{
		Name:         c.Name,
		ValuePreview: schemas.Truncate(c.Value, 16),
		Domain:       c.Domain,
		Path:         c.Path,
		Secure:       c.Secure,
		HTTPOnly:     c.HttpOnly,
		SameSite:     sameSite,
		Expires:      expires,
		Issues:       issues,
	}
	return rec, issues, isThirdParty
}

// registrableDomain returns the eTLD+1 for a host, or "" when it has none
// (IP literals, localhost).
func registrableDomain(host string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return d
}

func sameSiteString(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return ""
	}
}
