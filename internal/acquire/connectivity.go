package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v58/github"

	"github.com/privascan/privascan/internal/scanerrors"
)

// ConnectionResult is the outcome of a pre-scan connectivity probe. No clone
// is performed; only the hosting platform's metadata API is consulted.
type ConnectionResult struct {
	OK       bool           `json:"ok"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// TestConnection validates that the repository URL resolves and the token
// (when given) grants access. GitHub goes through the typed API client;
// GitLab and Bitbucket through their public REST endpoints.
func (a *Acquirer) TestConnection(ctx context.Context, rawURL, token string) (ConnectionResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ConnectionResult{Error: "invalid repository URL"},
			scanerrors.NewAcquireError(scanerrors.NetworkError, "invalid repository URL", err)
	}

	host := strings.ToLower(u.Hostname())
	owner, repo, ok := splitRepoPath(u.Path)
	if !ok {
		return ConnectionResult{Error: "URL does not name a repository"},
			scanerrors.NewAcquireError(scanerrors.UnsupportedHost, "URL does not name a repository", nil)
	}

	switch host {
	case "github.com":
		return a.testGitHub(ctx, owner, repo, token)
	case "gitlab.com":
		endpoint := fmt.Sprintf("https://gitlab.com/api/v4/projects/%s", url.PathEscape(owner+"/"+repo))
		return a.testRESTHost(ctx, endpoint, map[string]string{"PRIVATE-TOKEN": token})
	case "bitbucket.org":
		endpoint := fmt.Sprintf("https://api.bitbucket.org/2.0/repositories/%s/%s", owner, repo)
		headers := map[string]string{}
		if token != "" {
			headers["Authorization"] = "Bearer " + token
		}
		return a.testRESTHost(ctx, endpoint, headers)
	default:
		return ConnectionResult{Error: fmt.Sprintf("unsupported hosting platform: %s", host)},
			scanerrors.NewAcquireError(scanerrors.UnsupportedHost, host, nil)
	}
}

func (a *Acquirer) testGitHub(ctx context.Context, owner, repo, token string) (ConnectionResult, error) {
	client := github.NewClient(a.httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	r, resp, err := client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return ConnectionResult{Error: "authentication failed"},
				scanerrors.NewAcquireError(scanerrors.AuthFailure, "authentication failed", err)
		}
		return ConnectionResult{Error: "repository metadata request failed"},
			scanerrors.NewAcquireError(scanerrors.NetworkError, "repository metadata request failed", err)
	}

	return ConnectionResult{
		OK: true,
		Metadata: map[string]any{
			"full_name":      r.GetFullName(),
			"private":        r.GetPrivate(),
			"default_branch": r.GetDefaultBranch(),
			"description":    r.GetDescription(),
		},
	}, nil
}

// testRESTHost probes a plain JSON metadata endpoint.
func (a *Acquirer) testRESTHost(ctx context.Context, endpoint string, headers map[string]string) (ConnectionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ConnectionResult{Error: err.Error()},
			scanerrors.NewAcquireError(scanerrors.NetworkError, "failed to build metadata request", err)
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return ConnectionResult{Error: "network error"},
			scanerrors.NewAcquireError(scanerrors.NetworkError, "network error", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ConnectionResult{Error: "authentication failed"},
			scanerrors.NewAcquireError(scanerrors.AuthFailure, "authentication failed", nil)
	case resp.StatusCode >= 400:
		msg := fmt.Sprintf("metadata request returned status %d", resp.StatusCode)
		return ConnectionResult{Error: msg},
			scanerrors.NewAcquireError(scanerrors.NetworkError, msg, nil)
	}

	var metadata map[string]any
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(body, &metadata); err != nil {
		// Reachable but unparseable metadata still proves connectivity.
		metadata = nil
	}
	return ConnectionResult{OK: true, Metadata: metadata}, nil
}

// splitRepoPath turns "/owner/repo.git" into its components.
func splitRepoPath(p string) (owner, repo string, ok bool) {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
