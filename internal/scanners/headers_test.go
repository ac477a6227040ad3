package scanners

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
)

func newHeadersForTest(t *testing.T) *HeadersAdapter {
	t.Helper()
	return NewHeadersAdapter(newProbeClient(5*time.Second, zap.NewNop()), zap.NewNop())
}

func TestHeadersProbe(t *testing.T) {
	// Eight of the ten canonical headers set securely; HSTS and CSP absent.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "geolocation=()")
		h.Set("Cross-Origin-Embedder-Policy", "require-corp")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newHeadersForTest(t)
	res := a.Run(context.Background(), Input{URL: srv.URL})

	require.Equal(t, schemas.StatusCompleted, res.Status)
	require.NotNil(t, res.HeaderProbe)
	assert.Equal(t, 8, res.HeaderProbe.SecureCount)
	assert.Equal(t, 80, res.HeaderProbe.SecurityScore)
	assert.Equal(t, schemas.HeaderMissing, res.HeaderProbe.Headers["Strict-Transport-Security"])
	assert.Equal(t, schemas.HeaderMissing, res.HeaderProbe.Headers["Content-Security-Policy"])

	require.Len(t, res.Findings, 2)
	for _, f := range res.Findings {
		assert.Equal(t, schemas.SeverityMedium, f.Severity)
		assert.Equal(t, schemas.CategoryMissingSecurityHeader, f.Category)
		assert.Equal(t, "header_missing", f.RuleID)
	}
}

func TestHeadersProbeWeakHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self' 'unsafe-inline'")
		w.Header().Set("Strict-Transport-Security", "max-age=300")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newHeadersForTest(t)
	res := a.Run(context.Background(), Input{URL: srv.URL})

	require.Equal(t, schemas.StatusCompleted, res.Status)
	require.NotNil(t, res.HeaderProbe)
	assert.Equal(t, schemas.HeaderWeak, res.HeaderProbe.Headers["Content-Security-Policy"])
	assert.Equal(t, schemas.HeaderWeak, res.HeaderProbe.Headers["Strict-Transport-Security"])
	assert.Equal(t, 0, res.HeaderProbe.SecurityScore)

	weak := 0
	for _, f := range res.Findings {
		if f.RuleID == "header_weak" {
			weak++
			assert.Equal(t, schemas.SeverityLow, f.Severity)
		}
	}
	assert.Equal(t, 2, weak)
}

func TestHeadersProbeRequiresURL(t *testing.T) {
	a := newHeadersForTest(t)
	res := a.Run(context.Background(), Input{})
	assert.Equal(t, schemas.StatusError, res.Status)
}

func TestHeadersProbeUnreachable(t *testing.T) {
	a := newHeadersForTest(t)
	res := a.Run(context.Background(), Input{URL: "http://127.0.0.1:1/nothing"})
	assert.Equal(t, schemas.StatusError, res.Status)
}

func TestGradeHeader(t *testing.T) {
	cases := []struct {
		header, value string
		want          schemas.HeaderStatus
	}{
		{"Content-Security-Policy", "", schemas.HeaderMissing},
		{"Content-Security-Policy", "default-src 'self'", schemas.HeaderSecure},
		{"Content-Security-Policy", "script-src 'unsafe-eval'", schemas.HeaderWeak},
		{"X-Frame-Options", "SAMEORIGIN", schemas.HeaderSecure},
		{"X-Frame-Options", "allow-from https://x", schemas.HeaderWeak},
		{"Strict-Transport-Security", "max-age=63072000; includeSubDomains", schemas.HeaderSecure},
		{"Strict-Transport-Security", "max-age=63072000", schemas.HeaderWeak},
		{"Referrer-Policy", "no-referrer", schemas.HeaderSecure},
		{"Referrer-Policy", "unsafe-url", schemas.HeaderWeak},
		{"X-Content-Type-Options", "nosniff", schemas.HeaderSecure},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, gradeHeader(tc.header, tc.value), "%s: %q", tc.header, tc.value)
	}
}
