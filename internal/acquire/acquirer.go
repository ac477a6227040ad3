// Package acquire materializes a scan target into a workspace: git clone via
// the external git binary, or salted write + extraction of an uploaded
// archive. It also hosts the pre-scan repository connectivity probe.
package acquire

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"

	"github.com/privascan/privascan/api/schemas"
	"github.com/privascan/privascan/internal/procrunner"
	"github.com/privascan/privascan/internal/scanerrors"
	"github.com/privascan/privascan/internal/workspace"
)

// recognizedHosts are the hosting platforms for which a token is inlined
// into the clone URL and a metadata API is known.
var recognizedHosts = map[string]bool{
	"github.com":    true,
	"gitlab.com":    true,
	"bitbucket.org": true,
}

const stderrTailBytes = 1024

// Acquirer materializes targets. It is stateless between scans.
type Acquirer struct {
	runner       *procrunner.Runner
	logger       *zap.Logger
	cloneTimeout time.Duration
	httpClient   *http.Client
}

// New creates an Acquirer. cloneTimeout bounds git clone; zero means the
// 120 second default.
func New(runner *procrunner.Runner, cloneTimeout time.Duration, logger *zap.Logger) *Acquirer {
	if cloneTimeout <= 0 {
		cloneTimeout = 120 * time.Second
	}
	return &Acquirer{
		runner:       runner,
		logger:       logger.Named("acquire"),
		cloneTimeout: cloneTimeout,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Git clones the repository into <workspace>/repo and returns the clone path
// together with HEAD metadata for the target descriptor. The token, when
// present and the host is recognized, is inlined between scheme and host; it
// never appears in errors or logs.
func (a *Acquirer) Git(ctx context.Context, ws *workspace.Workspace, target *schemas.GitTarget) (string, schemas.TargetDescriptor, error) {
	desc := schemas.TargetDescriptor{
		Kind:   schemas.TargetGit,
		URL:    target.URL,
		Branch: target.Branch,
	}

	cloneURL, err := authenticatedURL(target.URL, target.AccessToken)
	if err != nil {
		return "", desc, scanerrors.NewAcquireError(scanerrors.NetworkError, "invalid repository URL", err)
	}

	dest := ws.Join("repo")
	argv := []string{"git", "clone"}
	if target.Branch != "" {
		argv = append(argv, "--branch", target.Branch)
	}
	argv = append(argv, cloneURL, dest)

	a.logger.Info("Cloning repository",
		zap.String("url", target.URL),
		zap.String("branch", target.Branch))

	res, err := a.runner.Run(ctx, procrunner.Spec{
		Argv:    argv,
		Timeout: a.cloneTimeout,
		// Never let git prompt for credentials inside a scan.
		Env: map[string]string{"GIT_TERMINAL_PROMPT": "0"},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", desc, scanerrors.ErrCancelled
		}
		return "", desc, scanerrors.NewAcquireError(scanerrors.NetworkError, "failed to invoke git", err)
	}
	if res.TimedOut {
		return "", desc, scanerrors.NewAcquireError(scanerrors.NetworkError,
			fmt.Sprintf("git clone exceeded %s", a.cloneTimeout), nil)
	}
	if res.ExitCode != 0 {
		tail := sanitizeSecret(procrunner.Tail(res.Stderr, stderrTailBytes), target.AccessToken)
		kind := scanerrors.CloneFailed
		if strings.Contains(tail, "Authentication failed") || strings.Contains(tail, "could not read Username") {
			kind = scanerrors.AuthFailure
		}
		return "", desc, scanerrors.NewAcquireError(kind, tail, nil)
	}

	if commit, branch, err := headMetadata(dest); err == nil {
		desc.Commit = commit
		desc.ResolvedBranch = branch
	} else {
		a.logger.Debug("Could not read clone HEAD metadata", zap.Error(err))
	}

	return dest, desc, nil
}

// headMetadata opens the fresh clone with go-git and reads the HEAD commit
// hash and branch name.
func headMetadata(repoPath string) (commit, branch string, err error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", "", err
	}
	commit = head.Hash().String()
	if name := head.Name(); name.IsBranch() {
		branch = name.Short()
	} else if name == plumbing.HEAD {
		branch = "HEAD"
	}
	return commit, branch, nil
}

// authenticatedURL inlines the token between scheme and host for recognized
// hosts. Unrecognized hosts and empty tokens get the URL verbatim.
func authenticatedURL(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if token == "" || !recognizedHosts[strings.ToLower(u.Hostname())] {
		return rawURL, nil
	}
	u.User = url.User(token)
	return u.String(), nil
}

// sanitizeSecret scrubs a credential out of tool output before it reaches a
// user-visible error.
func sanitizeSecret(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}
