// Package schemas defines the wire types shared between the scanning core and
// its callers: scan targets, normalized findings, per-tool scan results, the
// scan bundle, and the assessment documents built from it. Everything here is
// a value object; once a scan produces it, it is never mutated.
package schemas

import (
	"time"
)

// TargetKind discriminates the two supported scan target variants.
type TargetKind string

const (
	TargetGit     TargetKind = "git"
	TargetArchive TargetKind = "archive"
)

// ArchiveKind identifies what an uploaded artifact is, which decides whether
// it gets extracted (generic zip) or handed to the mobile analyzer verbatim.
type ArchiveKind string

const (
	ArchiveGenericZip ArchiveKind = "generic_zip"
	ArchiveAPK        ArchiveKind = "apk"
	ArchiveIPA        ArchiveKind = "ipa"
)

// GitTarget points at a hosted repository. AccessToken, when set, is inlined
// into the clone URL for recognized hosting platforms and must never appear
// in any output.
type GitTarget struct {
	URL         string `json:"url"`
	AccessToken string `json:"-"`
	Branch      string `json:"branch,omitempty"`
}

// ArchiveTarget is an uploaded artifact held in memory for the duration of
// one scan request.
type ArchiveTarget struct {
	Data         []byte      `json:"-"`
	OriginalName string      `json:"original_name"`
	Kind         ArchiveKind `json:"kind"`
}

// Target is a tagged variant: exactly one of Git or Archive is non-nil,
// matching Kind. The two variants share no fields on purpose.
type Target struct {
	Kind    TargetKind     `json:"kind"`
	Git     *GitTarget     `json:"git,omitempty"`
	Archive *ArchiveTarget `json:"archive,omitempty"`
}

// NewGitTarget builds a git-variant target.
func NewGitTarget(url, token, branch string) Target {
	return Target{Kind: TargetGit, Git: &GitTarget{URL: url, AccessToken: token, Branch: branch}}
}

// NewArchiveTarget builds an archive-variant target.
func NewArchiveTarget(data []byte, originalName string, kind ArchiveKind) Target {
	return Target{Kind: TargetArchive, Archive: &ArchiveTarget{Data: data, OriginalName: originalName, Kind: kind}}
}

// TargetDescriptor is the credential-free public view of a Target, embedded
// into the ScanBundle for reporting. Commit and ResolvedBranch are filled in
// after a successful clone.
type TargetDescriptor struct {
	Kind           TargetKind  `json:"kind"`
	URL            string      `json:"url,omitempty"`
	Branch         string      `json:"branch,omitempty"`
	Commit         string      `json:"commit,omitempty"`
	ResolvedBranch string      `json:"resolved_branch,omitempty"`
	OriginalName   string      `json:"original_name,omitempty"`
	ArchiveKind    ArchiveKind `json:"archive_kind,omitempty"`
}

// Tool identifies which adapter produced a finding or result.
type Tool string

const (
	ToolSecretScannerA Tool = "secret_scanner_a"
	ToolSecretScannerB Tool = "secret_scanner_b"
	ToolSAST           Tool = "sast"
	ToolMobile         Tool = "mobile"
	ToolHeaders        Tool = "headers"
	ToolCookies        Tool = "cookies"
)

// ScanStatus is the per-tool outcome recorded in a ScanResult.
type ScanStatus string

const (
	StatusCompleted   ScanStatus = "completed"
	StatusError       ScanStatus = "error"
	StatusTimedOut    ScanStatus = "timed_out"
	StatusToolMissing ScanStatus = "tool_missing"
	// StatusCompletedNoResults marks a mobile analysis that ran but produced
	// no meaningful identity fields and a zero security score. Callers decide
	// whether to retry or surface it.
	StatusCompletedNoResults ScanStatus = "completed_no_meaningful_results"
)

// FindingCounts holds the total and per-severity tallies for one ScanResult
// or one whole bundle.
type FindingCounts struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Add counts a finding of the given severity.
func (c *FindingCounts) Add(sev Severity) {
	c.Total++
	switch sev {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	case SeverityInfo:
		c.Info++
	}
}

// Merge folds another tally into this one.
func (c *FindingCounts) Merge(o FindingCounts) {
	c.Total += o.Total
	c.Critical += o.Critical
	c.High += o.High
	c.Medium += o.Medium
	c.Low += o.Low
	c.Info += o.Info
}

// CountFindings tallies a finding slice by severity.
func CountFindings(findings []Finding) FindingCounts {
	var c FindingCounts
	for _, f := range findings {
		c.Add(f.Severity)
	}
	return c
}

// ScanResult is the outcome of one adapter invocation. A failed adapter still
// yields a ScanResult (status error / timed_out / tool_missing) so sibling
// tools are unaffected.
type ScanResult struct {
	Tool     Tool          `json:"tool"`
	Status   ScanStatus    `json:"status"`
	Findings []Finding     `json:"findings"`
	Counts   FindingCounts `json:"counts"`

	// Categories holds the SAST dashboard buckets (api_keys, aws_keys, ...).
	// Only the sast adapter populates it.
	Categories map[string]int `json:"categories,omitempty"`

	// Message carries a structured explanation for non-completed statuses.
	Message    string `json:"message,omitempty"`
	StderrTail string `json:"stderr_tail,omitempty"`
	ReturnCode int    `json:"return_code"`
	WallTimeMS int64  `json:"wall_time_ms"`

	// Adapter-specific summaries.
	HeaderProbe *HeaderProbe   `json:"header_probe,omitempty"`
	CookieProbe *CookieProbe   `json:"cookie_probe,omitempty"`
	Mobile      *MobileSummary `json:"mobile,omitempty"`
}

// HeaderStatus is the verdict for one canonical security header.
type HeaderStatus string

const (
	HeaderSecure  HeaderStatus = "present_secure"
	HeaderWeak    HeaderStatus = "present_weak"
	HeaderMissing HeaderStatus = "missing"
)

// HeaderProbe summarizes a security-headers check of one URL.
type HeaderProbe struct {
	URL           string                  `json:"url"`
	Headers       map[string]HeaderStatus `json:"headers"`
	SecureCount   int                     `json:"secure_count"`
	SecurityScore int                     `json:"security_score"`
}

// CookieRecord describes one cookie observed on the probed URL, with the
// policy issues flagged against it.
type CookieRecord struct {
	Name         string   `json:"name"`
	ValuePreview string   `json:"value_preview"`
	Domain       string   `json:"domain"`
	Path         string   `json:"path"`
	Secure       bool     `json:"secure"`
	HTTPOnly     bool     `json:"httponly"`
	SameSite     string   `json:"samesite"`
	Expires      string   `json:"expires,omitempty"`
	Issues       []string `json:"issues,omitempty"`
}

// CookieProbe summarizes the cookie jar of one URL.
type CookieProbe struct {
	URL        string         `json:"url"`
	Cookies    []CookieRecord `json:"cookies"`
	NonSecure  int            `json:"non_secure_count"`
	ThirdParty int            `json:"third_party_count"`
	RiskScore  int            `json:"risk_score"`
	RiskLevel  string         `json:"risk_level"`
}

// MobileSummary carries the app identity and PII summary extracted from the
// mobile analysis service report.
type MobileSummary struct {
	AppName       string   `json:"app_name,omitempty"`
	Platform      string   `json:"platform,omitempty"`
	PackageName   string   `json:"package_name,omitempty"`
	Version       string   `json:"version,omitempty"`
	TargetSDK     string   `json:"target_sdk,omitempty"`
	MinSDK        string   `json:"min_sdk,omitempty"`
	SecurityScore int      `json:"security_score"`
	Emails        []string `json:"emails,omitempty"`
	URLs          []string `json:"urls,omitempty"`
	Domains       []string `json:"domains,omitempty"`
	Secrets       []string `json:"secrets,omitempty"`
	Trackers      []string `json:"trackers,omitempty"`
	Libraries     []string `json:"libraries,omitempty"`
	Strings       int      `json:"string_count,omitempty"`
}

// ScanBundle is everything one scan produced: one ScanResult per requested
// tool plus the public target metadata and caller-supplied project info. It
// is the only runtime input the assessment composer consumes.
type ScanBundle struct {
	ScanID      string            `json:"scan_id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Target      TargetDescriptor  `json:"target_descriptor"`
	ProjectInfo map[string]string `json:"project_info,omitempty"`
	Results     []ScanResult      `json:"results"`
}

// AllFindings flattens every result's findings into one slice.
func (b *ScanBundle) AllFindings() []Finding {
	var out []Finding
	for _, r := range b.Results {
		out = append(out, r.Findings...)
	}
	return out
}

// TotalCounts aggregates the per-tool tallies across the bundle.
func (b *ScanBundle) TotalCounts() FindingCounts {
	var c FindingCounts
	for _, r := range b.Results {
		c.Merge(r.Counts)
	}
	return c
}
