package scanners

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/config"
	"github.com/privascan/privascan/internal/scanerrors"
)

// MobileClient talks to the external mobile analysis service. It is created
// per request scope and holds no session state; the service keys everything
// on the artifact hash.
type MobileClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger

	uploadTimeout time.Duration
	scanTimeout   time.Duration
	reportTimeout time.Duration
}

// NewMobileClient builds the client from configuration.
func NewMobileClient(cfg config.MobileConfig, timeouts config.TimeoutConfig, logger *zap.Logger) *MobileClient {
	return &MobileClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		http:          &http.Client{},
		logger:        logger.Named("mobile-client"),
		uploadTimeout: timeouts.MobileUpload,
		scanTimeout:   timeouts.MobileScan,
		reportTimeout: timeouts.MobileReport,
	}
}

// Configured reports whether a service base URL is set.
func (c *MobileClient) Configured() bool { return c.baseURL != "" }

// Upload posts the artifact as multipart and returns the service's hash for
// it. The salted file name guarantees a fresh hash per upload.
func (c *MobileClient) Upload(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to buffer artifact: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	resp, err := c.post(ctx, "/upload", mw.FormDataContentType(), &body, c.uploadTimeout)
	if err != nil {
		return "", err
	}

	hash, _ := resp["hash"].(string)
	if hash == "" {
		return "", &scanerrors.ExternalServiceError{
			Kind:    scanerrors.ServiceAnalysisRejected,
			Message: "upload response missing artifact hash",
		}
	}
	return hash, nil
}

// Scan queues the analysis. The call blocks until the service accepts it.
func (c *MobileClient) Scan(ctx context.Context, hash, scanType string) error {
	_, err := c.postForm(ctx, "/scan", url.Values{"hash": {hash}, "scan_type": {scanType}}, c.scanTimeout)
	return err
}

// ReportJSON fetches the full analysis report.
func (c *MobileClient) ReportJSON(ctx context.Context, hash string) (map[string]any, error) {
	return c.postForm(ctx, "/report_json", url.Values{"hash": {hash}}, c.reportTimeout)
}

// Scorecard fetches the appsec scorecard.
func (c *MobileClient) Scorecard(ctx context.Context, hash string) (map[string]any, error) {
	return c.postForm(ctx, "/scorecard", url.Values{"hash": {hash}}, c.reportTimeout)
}

func (c *MobileClient) postForm(ctx context.Context, path string, form url.Values, timeout time.Duration) (map[string]any, error) {
	return c.post(ctx, path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()), timeout)
}

// post sends one request with the shared API key and decodes the JSON body.
func (c *MobileClient) post(ctx context.Context, path, contentType string, body io.Reader, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &scanerrors.ExternalServiceError{
			Kind:    scanerrors.ServiceUnreachable,
			Message: "mobile analysis service unreachable at " + c.baseURL + path,
			Err:     err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, &scanerrors.ExternalServiceError{
			Kind:    scanerrors.ServiceUnreachable,
			Message: "failed to read mobile service response",
			Err:     err,
		}
	}

	if resp.StatusCode >= 400 {
		return nil, &scanerrors.ExternalServiceError{
			Kind:       scanerrors.ServiceBadStatus,
			StatusCode: resp.StatusCode,
			Message:    schemas.Truncate(string(data), 256),
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &scanerrors.ExternalServiceError{
			Kind:    scanerrors.ServiceAnalysisRejected,
			Message: "mobile service returned non-JSON payload",
			Err:     err,
		}
	}
	return decoded, nil
}
