package scanners

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// probeUserAgent makes the probers look like a browser; several sites serve
// stripped header sets to unknown agents.
const probeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// probeClient is the HTTP client shared by the headers and cookies probers.
// A small rate limiter keeps repeated scans of the same host polite.
type probeClient struct {
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

func newProbeClient(timeout time.Duration, logger *zap.Logger) *probeClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &probeClient{
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		logger:  logger.Named("probe"),
	}
}

// get issues a browser-like GET through the given client. Cookie handling
// differs between the two probers, so the client comes from the caller.
func (p *probeClient) get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	resp, err := p.do(reqCtx, client, url)
	if err != nil {
		cancel()
		return nil, err
	}
	// The caller closes the body; tie the context's release to it.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (p *probeClient) do(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", probeUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	return client.Do(req)
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
