package assessment

import (
	"sort"

	"github.com/privascan/privascan/api/schemas"
)

// Control families used by the DPIA mitigation plan.
const (
	familyTechnical      = "Technical"
	familyAdministrative = "Administrative"
	familyCompliance     = "Compliance"
)

// mitigationRule is the fixed recommendation attached to one finding
// category.
type mitigationRule struct {
	title       string
	description string
	family      string
}

var mitigationRules = map[schemas.Category]mitigationRule{
	schemas.CategoryHardcodedSecret: {
		title:       "Remove hardcoded secrets",
		description: "Move credentials out of source into a secret manager and rotate every exposed value.",
		family:      familyTechnical,
	},
	schemas.CategoryHardcodedPII: {
		title:       "Purge embedded personal data",
		description: "Strip personal data literals from source and test fixtures; replace with synthetic values.",
		family:      familyCompliance,
	},
	schemas.CategoryInsecureStorage: {
		title:       "Harden local data storage",
		description: "Encrypt data at rest and disable debug or backup flags that expose application storage.",
		family:      familyTechnical,
	},
	schemas.CategoryInsecureTransport: {
		title:       "Enforce encrypted transport",
		description: "Disable cleartext traffic and require TLS with certificate validation for every endpoint.",
		family:      familyTechnical,
	},
	schemas.CategoryOverPermission: {
		title:       "Reduce requested permissions",
		description: "Drop dangerous permissions that are not essential and document the justification for the rest.",
		family:      familyAdministrative,
	},
	schemas.CategoryThirdPartySDK: {
		title:       "Review third-party SDKs",
		description: "Inventory embedded SDKs and trackers, remove unused ones and add processor agreements for the rest.",
		family:      familyAdministrative,
	},
	schemas.CategoryTrackingCookie: {
		title:       "Fix cookie policy",
		description: "Set Secure, HttpOnly and SameSite on session cookies and gate third-party cookies behind consent.",
		family:      familyAdministrative,
	},
	schemas.CategoryMissingSecurityHeader: {
		title:       "Deploy security headers",
		description: "Serve the missing response headers, starting with Content-Security-Policy and Strict-Transport-Security.",
		family:      familyTechnical,
	},
	schemas.CategoryOther: {
		title:       "Triage uncategorized findings",
		description: "Review each uncategorized finding and assign an owner for remediation or acceptance.",
		family:      familyCompliance,
	},
}

// categoryOrder fixes the rendering order of per-category entries.
var categoryOrder = []schemas.Category{
	schemas.CategoryHardcodedSecret,
	schemas.CategoryHardcodedPII,
	schemas.CategoryInsecureStorage,
	schemas.CategoryInsecureTransport,
	schemas.CategoryOverPermission,
	schemas.CategoryThirdPartySDK,
	schemas.CategoryTrackingCookie,
	schemas.CategoryMissingSecurityHeader,
	schemas.CategoryOther,
}

// buildMitigationPlan derives one recommendation per finding category
// present, prioritized by the worst severity seen in that category. The DPIA
// variant additionally tags each entry with its control family.
func buildMitigationPlan(findings []schemas.Finding, withFamilies bool) schemas.MitigationPlan {
	worst := map[schemas.Category]schemas.Severity{}
	for _, f := range findings {
		if cur, ok := worst[f.Category]; !ok || f.Severity.AtLeast(cur) {
			worst[f.Category] = f.Severity
		}
	}

	var plan schemas.MitigationPlan
	for _, cat := range categoryOrder {
		sev, ok := worst[cat]
		if !ok {
			continue
		}
		rule := mitigationRules[cat]
		rec := schemas.Recommendation{
			Priority:    severityPriority(sev),
			Title:       rule.title,
			Description: rule.description,
			Category:    cat,
		}
		if withFamilies {
			rec.ControlFamily = rule.family
		}
		plan.Recommendations = append(plan.Recommendations, rec)
	}

	// Highest priority first; category order breaks ties because the sort
	// is stable.
	sort.SliceStable(plan.Recommendations, func(i, j int) bool {
		return priorityRank(plan.Recommendations[i].Priority) > priorityRank(plan.Recommendations[j].Priority)
	})
	return plan
}

func priorityRank(p string) int {
	switch p {
	case "HIGH":
		return 3
	case "MEDIUM":
		return 2
	default:
		return 1
	}
}

// activityRule maps one finding category onto a RoPA processing activity.
type activityRule struct {
	piiCategory string
	purpose     string
	dataSubject string
	lawfulBasis string
	retention   string
	transfer    string
}

var activityRules = map[schemas.Category]activityRule{
	schemas.CategoryOverPermission: {
		piiCategory: "Device and contact data",
		purpose:     "Mobile App Functionality",
		dataSubject: "App users",
		lawfulBasis: "Consent",
		retention:   "Application lifetime",
		transfer:    "None identified",
	},
	schemas.CategoryTrackingCookie: {
		piiCategory: "Online identifiers",
		purpose:     "Analytics and Tracking",
		dataSubject: "Site visitors",
		lawfulBasis: "Consent",
		retention:   "Cookie lifetime",
		transfer:    "Third-party processors",
	},
	schemas.CategoryThirdPartySDK: {
		piiCategory: "Usage and device data",
		purpose:     "Third-Party Services",
		dataSubject: "App users",
		lawfulBasis: "Legitimate Interest",
		retention:   "Per processor agreement",
		transfer:    "Third-party processors",
	},
	schemas.CategoryHardcodedPII: {
		piiCategory: "Embedded personal data",
		purpose:     "Service Operation",
		dataSubject: "Data subjects in source data",
		lawfulBasis: "Legitimate Interest",
		retention:   "Until remediation",
		transfer:    "None identified",
	},
	schemas.CategoryHardcodedSecret: {
		piiCategory: "Authentication credentials",
		purpose:     "Service Operation",
		dataSubject: "Service accounts and users",
		lawfulBasis: "Legitimate Interest",
		retention:   "Until rotation",
		transfer:    "None identified",
	},
}

// buildProcessingActivities derives one RoPA record per mapped category
// present in the findings. The source column lists where the category was
// first observed.
func buildProcessingActivities(findings []schemas.Finding) []schemas.ProcessingActivity {
	firstSource := map[schemas.Category]string{}
	for _, f := range findings {
		if _, ok := activityRules[f.Category]; !ok {
			continue
		}
		if _, seen := firstSource[f.Category]; !seen {
			firstSource[f.Category] = f.File
		}
	}

	var out []schemas.ProcessingActivity
	for _, cat := range categoryOrder {
		src, ok := firstSource[cat]
		if !ok {
			continue
		}
		rule := activityRules[cat]
		out = append(out, schemas.ProcessingActivity{
			PIICategory: rule.piiCategory,
			Purpose:     rule.purpose,
			DataSubject: rule.dataSubject,
			LawfulBasis: rule.lawfulBasis,
			Retention:   rule.retention,
			Transfer:    rule.transfer,
			Source:      src,
		})
	}
	return out
}
