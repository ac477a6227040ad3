// Package scanerrors defines the tagged error kinds surfaced at the scanning
// core boundary. Callers match on the kind; the HTTP layer translates kinds
// to status codes.
package scanerrors

import (
	"errors"
	"fmt"
)

// AcquireKind tags the failure modes of target materialization.
type AcquireKind string

const (
	UnsupportedHost AcquireKind = "unsupported_host"
	NetworkError    AcquireKind = "network_error"
	AuthFailure     AcquireKind = "auth_failure"
	CloneFailed     AcquireKind = "clone_failed"
	ExtractFailed   AcquireKind = "extract_failed"
)

// AcquireError aborts a scan: if the target cannot be materialized there is
// nothing for the adapters to do.
type AcquireError struct {
	Kind AcquireKind
	// Detail is safe to show to a user; it never contains credentials.
	Detail string
	Err    error
}

func (e *AcquireError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("acquire failed (%s): %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("acquire failed (%s)", e.Kind)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// NewAcquireError builds a tagged acquire failure.
func NewAcquireError(kind AcquireKind, detail string, err error) *AcquireError {
	return &AcquireError{Kind: kind, Detail: detail, Err: err}
}

// AsAcquireError unwraps err into an *AcquireError if it is one.
func AsAcquireError(err error) (*AcquireError, bool) {
	var ae *AcquireError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// ToolErrorKind tags external-tool failures. These are captured into the
// per-tool ScanResult and never abort sibling adapters.
type ToolErrorKind string

const (
	ToolMissing      ToolErrorKind = "missing"
	ToolTimeout      ToolErrorKind = "timeout"
	ToolNonZeroExit  ToolErrorKind = "non_zero_exit"
	ToolParseFailure ToolErrorKind = "parse_failure"
)

// ToolError describes a failed external-tool invocation.
type ToolError struct {
	Kind       ToolErrorKind
	Tool       string
	ReturnCode int
	StderrTail string
	Reason     string
	Err        error
}

func (e *ToolError) Error() string {
	switch e.Kind {
	case ToolNonZeroExit:
		return fmt.Sprintf("tool %s exited with code %d: %s", e.Tool, e.ReturnCode, e.StderrTail)
	case ToolParseFailure:
		return fmt.Sprintf("tool %s output could not be parsed: %s", e.Tool, e.Reason)
	default:
		return fmt.Sprintf("tool %s failed (%s)", e.Tool, e.Kind)
	}
}

func (e *ToolError) Unwrap() error { return e.Err }

// ServiceErrorKind tags failures of the external mobile analysis service.
type ServiceErrorKind string

const (
	ServiceUnreachable      ServiceErrorKind = "unreachable"
	ServiceBadStatus        ServiceErrorKind = "bad_status"
	ServiceAnalysisRejected ServiceErrorKind = "analysis_rejected"
)

// ExternalServiceError describes a failed call to an external HTTP service.
type ExternalServiceError struct {
	Kind       ServiceErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	switch e.Kind {
	case ServiceBadStatus:
		return fmt.Sprintf("external service returned status %d: %s", e.StatusCode, e.Message)
	case ServiceAnalysisRejected:
		return fmt.Sprintf("external service rejected analysis: %s", e.Message)
	default:
		return fmt.Sprintf("external service unreachable: %s", e.Message)
	}
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ErrCancelled is returned when the caller cancels a scan. No partial bundle
// accompanies it.
var ErrCancelled = errors.New("scan cancelled")
