package scanners

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/config"
)

// mobileServiceStub answers the four service endpoints with canned JSON.
type mobileServiceStub struct {
	report    map[string]any
	scorecard map[string]any
	apiKey    string
	gotKey    string
}

func (s *mobileServiceStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		s.gotKey = r.Header.Get("Authorization")
		writeJSON(w, map[string]any{"hash": "f00dfeed"})
	})
	mux.HandleFunc("/scan", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ok"})
	})
	mux.HandleFunc("/report_json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.report)
	})
	mux.HandleFunc("/scorecard", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.scorecard)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	data, _ := json.Marshal(v)
	w.Write(data)
}

func newMobileForTest(t *testing.T, baseURL string) *MobileAdapter {
	t.Helper()
	cfg := config.MobileConfig{BaseURL: baseURL, APIKey: "test-key"}
	timeouts := config.TimeoutConfig{
		MobileUpload: 5 * time.Second,
		MobileScan:   5 * time.Second,
		MobileReport: 5 * time.Second,
	}
	return NewMobileAdapter(NewMobileClient(cfg, timeouts, zap.NewNop()), zap.NewNop())
}

func writeArtifact(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04fake"), 0o644))
	return path
}

func androidReport() map[string]any {
	return map[string]any{
		"app_name":     "Demo",
		"package_name": "com.example.demo",
		"version_name": "2.1.0",
		"target_sdk":   "34",
		"min_sdk":      "24",
		"permissions": map[string]any{
			"android.permission.READ_CONTACTS": map[string]any{
				"status":      "dangerous",
				"description": "Read the user's contacts data",
			},
			"android.permission.INTERNET": map[string]any{
				"status":      "normal",
				"description": "Full network access",
			},
		},
		"emails":  []any{map[string]any{"emails": []any{"dev@example.com"}}},
		"urls":    []any{map[string]any{"urls": []any{"https://api.example.com"}}},
		"domains": map[string]any{"api.example.com": map[string]any{}},
		"secrets": []any{"firebase_key=AIza..."},
		"trackers": map[string]any{
			"trackers": []any{
				map[string]any{"name": "Google Analytics", "url": "https://analytics.example"},
			},
		},
		"libraries": []any{"okhttp", "retrofit"},
		"strings":   []any{"a", "b", "c"},
	}
}

func TestMobileRunAndroid(t *testing.T) {
	stub := &mobileServiceStub{
		report: androidReport(),
		scorecard: map[string]any{
			"security_score": float64(61),
			"high": []any{
				map[string]any{"title": "Clear text traffic is Enabled", "section": "network", "description": "usesCleartextTraffic=true"},
			},
			"warning": []any{
				map[string]any{"title": "App data backup is allowed", "section": "manifest"},
			},
			"info": []any{
				map[string]any{"title": "Debug certificate", "section": "certificate"},
			},
		},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	a := newMobileForTest(t, srv.URL)
	res := a.Run(context.Background(), Input{ScanPath: writeArtifact(t, "demo.apk")})

	require.Equal(t, schemas.StatusCompleted, res.Status)
	assert.Equal(t, "test-key", stub.gotKey)

	require.NotNil(t, res.Mobile)
	assert.Equal(t, "android", res.Mobile.Platform)
	assert.Equal(t, "com.example.demo", res.Mobile.PackageName)
	assert.Equal(t, "2.1.0", res.Mobile.Version)
	assert.Equal(t, "34", res.Mobile.TargetSDK)
	assert.Equal(t, 61, res.Mobile.SecurityScore)
	assert.Equal(t, []string{"dev@example.com"}, res.Mobile.Emails)
	assert.Equal(t, []string{"api.example.com"}, res.Mobile.Domains)
	assert.Equal(t, []string{"Google Analytics"}, res.Mobile.Trackers)
	assert.Equal(t, 3, res.Mobile.Strings)

	bySeverity := map[schemas.Severity]int{}
	byCategory := map[schemas.Category]int{}
	for _, f := range res.Findings {
		bySeverity[f.Severity]++
		byCategory[f.Category]++
	}
	// One dangerous permission (HIGH) plus the high scorecard entry.
	assert.Equal(t, 2, bySeverity[schemas.SeverityHigh])
	// One warning entry and one tracker (both MEDIUM).
	assert.Equal(t, 2, bySeverity[schemas.SeverityMedium])
	assert.Equal(t, 1, bySeverity[schemas.SeverityInfo])

	assert.Equal(t, 1, byCategory[schemas.CategoryOverPermission])
	assert.Equal(t, 1, byCategory[schemas.CategoryInsecureTransport])
	assert.Equal(t, 1, byCategory[schemas.CategoryThirdPartySDK])
}

func TestMobileRunIOSIdentity(t *testing.T) {
	stub := &mobileServiceStub{
		report: map[string]any{
			"app_name":       "DemoApp",
			"bundle_id":      "com.example.ios",
			"app_version":    "3.0",
			"sdk_name":       "iphoneos17.0",
			"min_os_version": "15.0",
		},
		scorecard: map[string]any{"security_score": float64(72)},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	a := newMobileForTest(t, srv.URL)
	res := a.Run(context.Background(), Input{ScanPath: writeArtifact(t, "demo.ipa")})

	require.Equal(t, schemas.StatusCompleted, res.Status)
	require.NotNil(t, res.Mobile)
	assert.Equal(t, "ios", res.Mobile.Platform)
	assert.Equal(t, "com.example.ios", res.Mobile.PackageName)
	assert.Equal(t, "3.0", res.Mobile.Version)
	assert.Equal(t, "iphoneos17.0", res.Mobile.TargetSDK)
	assert.Equal(t, "15.0", res.Mobile.MinSDK)
}

func TestMobileRunHollowReport(t *testing.T) {
	stub := &mobileServiceStub{
		report:    map[string]any{},
		scorecard: map[string]any{"security_score": float64(0)},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	a := newMobileForTest(t, srv.URL)
	res := a.Run(context.Background(), Input{ScanPath: writeArtifact(t, "broken.apk")})

	assert.Equal(t, schemas.StatusCompletedNoResults, res.Status)
	assert.Empty(t, res.Findings)
	require.NotNil(t, res.Mobile)
	assert.Zero(t, res.Mobile.SecurityScore)
}

func TestMobileRunNotConfigured(t *testing.T) {
	a := newMobileForTest(t, "")
	res := a.Run(context.Background(), Input{ScanPath: writeArtifact(t, "demo.apk")})
	assert.Equal(t, schemas.StatusToolMissing, res.Status)
}

func TestMobileRunRejectsNonMobileArtifact(t *testing.T) {
	a := newMobileForTest(t, "http://127.0.0.1:1")
	res := a.Run(context.Background(), Input{ScanPath: writeArtifact(t, "repo.zip")})
	assert.Equal(t, schemas.StatusError, res.Status)
}

func TestMobileRunServiceUnreachable(t *testing.T) {
	a := newMobileForTest(t, "http://127.0.0.1:1")
	res := a.Run(context.Background(), Input{ScanPath: writeArtifact(t, "demo.apk")})
	assert.Equal(t, schemas.StatusError, res.Status)
	assert.Contains(t, res.Message, "upload failed")
}

func TestMobileUploadMissingHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "queued"})
	}))
	defer srv.Close()

	a := newMobileForTest(t, srv.URL)
	res := a.Run(context.Background(), Input{ScanPath: writeArtifact(t, "demo.apk")})
	assert.Equal(t, schemas.StatusError, res.Status)
	assert.Contains(t, res.Message, "hash")
}
