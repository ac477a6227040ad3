package schemas

import (
	"encoding/json"
	"sort"
	"unicode/utf8"
)

// Severity represents the severity level of a finding. Values are uppercase
// to match the normalized tool outputs they are compared against.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Escalate returns the severity one level up. CRITICAL stays CRITICAL.
func (s Severity) Escalate() Severity {
	switch s {
	case SeverityHigh:
		return SeverityCritical
	case SeverityMedium:
		return SeverityHigh
	case SeverityLow:
		return SeverityMedium
	case SeverityInfo:
		return SeverityLow
	default:
		return s
	}
}

// rank orders severities for comparisons; higher is worse.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is the same severity as o or worse.
func (s Severity) AtLeast(o Severity) bool { return s.rank() >= o.rank() }

// Category is the privacy-oriented classification an adapter stamps on each
// finding it emits.
type Category string

const (
	CategoryHardcodedSecret       Category = "hardcoded_secret"
	CategoryHardcodedPII          Category = "hardcoded_pii"
	CategoryInsecureStorage       Category = "insecure_storage"
	CategoryInsecureTransport     Category = "insecure_transport"
	CategoryOverPermission        Category = "over_permission"
	CategoryThirdPartySDK         Category = "third_party_sdk"
	CategoryTrackingCookie        Category = "tracking_cookie"
	CategoryMissingSecurityHeader Category = "missing_security_header"
	CategoryOther                 Category = "other"
)

// PIIKind is one tag in the PII taxonomy used by the classifier and by the
// impact scorers.
type PIIKind string

const (
	// User identifiers.
	PIIName     PIIKind = "name"
	PIIEmail    PIIKind = "email"
	PIIPhone    PIIKind = "phone"
	PIIIDNumber PIIKind = "id_number"
	PIIUserID   PIIKind = "user_id"
	PIIPassport PIIKind = "passport"

	// Device identifiers.
	PIIDeviceID PIIKind = "device_id"
	PIIMAC      PIIKind = "mac"
	PIIIP       PIIKind = "ip"
	PIILocation PIIKind = "location"

	// Authentication material.
	PIIPassword  PIIKind = "password"
	PIIToken     PIIKind = "token"
	PIIAPIKey    PIIKind = "api_key"
	PIIBiometric PIIKind = "biometric"

	// Financial.
	PIICardNumber  PIIKind = "card_number"
	PIIBankAccount PIIKind = "bank_account"

	// Health.
	PIIMedicalRecord PIIKind = "medical_record"
	PIIDiagnosis     PIIKind = "diagnosis"
)

// HighSeverityPII is the subset of kinds that forces a severity escalation
// when detected, on fine-escalation grounds under GDPR-family regulations.
var HighSeverityPII = map[PIIKind]bool{
	PIIIDNumber:      true,
	PIICardNumber:    true,
	PIIMedicalRecord: true,
	PIIPassport:      true,
}

// MaxContentLen caps the matched snippet stored on a finding.
const MaxContentLen = 512

// Finding is the normalized atom every adapter emits. Raw keeps the original
// scanner record for debugging only; downstream code never inspects it.
type Finding struct {
	ID           string          `json:"id"`
	Tool         Tool            `json:"tool"`
	File         string          `json:"file"`
	Line         *int            `json:"line"`
	Content      string          `json:"content"`
	RuleID       string          `json:"rule_id"`
	DetectorName string          `json:"detector_name,omitempty"`
	Severity     Severity        `json:"severity"`
	Category     Category        `json:"category"`
	PIIKinds     []PIIKind       `json:"pii_kinds,omitempty"`
	Commit       string          `json:"commit,omitempty"`
	Branch       string          `json:"branch,omitempty"`
	Date         string          `json:"date,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// HasHighSeverityPII reports whether any tagged kind is in the escalation set.
func (f *Finding) HasHighSeverityPII() bool {
	for _, k := range f.PIIKinds {
		if HighSeverityPII[k] {
			return true
		}
	}
	return false
}

// SortFindings orders findings by (tool, file, line, id) so that repeated
// composition over the same bundle yields byte-identical documents.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Tool != b.Tool {
			return a.Tool < b.Tool
		}
		if a.File != b.File {
			return a.File < b.File
		}
		al, bl := lineOf(a), lineOf(b)
		if al != bl {
			return al < bl
		}
		return a.ID < b.ID
	})
}

func lineOf(f Finding) int {
	if f.Line == nil {
		return -1
	}
	return *f.Line
}

// Truncate clips s to at most max bytes, appending a marker when it cut
// anything off. The cut never splits a multi-byte rune.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return truncAtRune(s, max)
	}
	return truncAtRune(s, max-3) + "..."
}

// truncAtRune clips s to at most n bytes, backing off to the previous rune
// boundary when the cut would land inside one.
func truncAtRune(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// IntPtr is a small helper for the optional Line field.
func IntPtr(v int) *int { return &v }
