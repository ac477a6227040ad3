// Package piiclass tags findings with the PII taxonomy used by impact
// scoring and the assessment composer.
package piiclass

import (
	"strings"

	"github.com/privascan/privascan/api/schemas"
)

// kindKeywords is the precompiled keyword table, matched case-insensitively
// as substrings. Kinds are additive; a finding can carry several.
type kindKeywords struct {
	kind     schemas.PIIKind
	keywords []string
}

var table = []kindKeywords{
	// User identifiers.
	{schemas.PIIName, []string{"full_name", "first_name", "last_name", "surname"}},
	{schemas.PIIEmail, []string{"email", "e-mail"}},
	{schemas.PIIPhone, []string{"phone", "mobile_number", "msisdn"}},
	{schemas.PIIIDNumber, []string{"ssn", "social security", "national_id", "aadhaar", "tax_id", "id_number"}},
	{schemas.PIIUserID, []string{"user_id", "userid", "username", "account_id"}},
	{schemas.PIIPassport, []string{"passport"}},

	// Device identifiers.
	{schemas.PIIDeviceID, []string{"device_id", "imei", "udid", "android_id", "advertising_id"}},
	{schemas.PIIMAC, []string{"mac_address", "mac addr"}},
	{schemas.PIIIP, []string{"ip_address", "ipaddr", "client_ip", "remote_ip"}},
	{schemas.PIILocation, []string{"latitude", "longitude", "geolocation", "gps_", "location"}},

	// Authentication material.
	{schemas.PIIPassword, []string{"password", "passwd", "pwd"}},
	{schemas.PIIToken, []string{"token", "bearer", "jwt"}},
	{schemas.PIIAPIKey, []string{"api_key", "api-key", "apikey", "api key", "client_secret", "secret_key"}},
	{schemas.PIIBiometric, []string{"biometric", "fingerprint", "face_id"}},

	// Financial.
	{schemas.PIICardNumber, []string{"card_number", "credit card", "creditcard", "card ", "cvv", "cvc"}},
	{schemas.PIIBankAccount, []string{"iban", "bank_account", "account_number", "routing_number", "swift"}},

	// Health.
	{schemas.PIIMedicalRecord, []string{"medical_record", "mrn", "patient", "health record"}},
	{schemas.PIIDiagnosis, []string{"diagnosis", "diagnoses", "icd-10", "icd10"}},
}

// Classify tags f with every matching kind and escalates severity when a
// high-severity kind is present. Fields are searched in priority order:
// content, then rule id, then file path.
func Classify(f *schemas.Finding) {
	fields := []string{
		strings.ToLower(f.Content),
		strings.ToLower(f.RuleID),
		strings.ToLower(f.File),
	}

	for _, entry := range table {
		if tagged(f, entry.kind) {
			continue
		}
		for _, field := range fields {
			if field == "" {
				continue
			}
			if matchAny(field, entry.keywords) {
				f.PIIKinds = append(f.PIIKinds, entry.kind)
				break
			}
		}
	}

	if f.HasHighSeverityPII() {
		f.Severity = f.Severity.Escalate()
		if !f.Severity.AtLeast(schemas.SeverityHigh) {
			f.Severity = schemas.SeverityHigh
		}
	}
}

// ClassifyAll runs Classify over every finding of every result in the
// bundle. Severity tallies are recomputed afterwards since escalation can
// move findings between buckets.
func ClassifyAll(bundle *schemas.ScanBundle) {
	for i := range bundle.Results {
		r := &bundle.Results[i]
		for j := range r.Findings {
			Classify(&r.Findings[j])
		}
		if len(r.Findings) > 0 {
			r.Counts = schemas.CountFindings(r.Findings)
		}
	}
}

func tagged(f *schemas.Finding, kind schemas.PIIKind) bool {
	for _, k := range f.PIIKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func matchAny(field string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(field, kw) {
			return true
		}
	}
	return false
}
