// Package gitops is the output gatekeeper: it owns the working tree the
// listings are written into, and commits only when the tree actually
// differs from HEAD. "No changes" is a defined success outcome, never an
// error. Commit signing is the surrounding environment's business; the
// gatekeeper only sets the commit identity.
package gitops

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/gofrs/flock"

	"shelfsync/internal/config"
	"shelfsync/internal/liberr"
	"shelfsync/internal/logfields"
)

// Client handles Git operations on the output repository.
type Client struct {
	repoPath  string
	remote    string
	push      bool
	committer config.Committer
	auth      *config.GitAuth
	lock      *flock.Flock
}

// NewClient creates a gatekeeper for the configured output repository.
func NewClient(cfg config.OutputConfig) *Client {
	return &Client{
		repoPath:  cfg.Repository,
		remote:    cfg.Remote,
		push:      cfg.Push,
		committer: cfg.Committer,
		auth:      cfg.Auth,
		lock:      flock.New(filepath.Join(cfg.Repository, ".git", "shelfsync.lock")),
	}
}

// Path returns the working tree path.
func (c *Client) Path() string { return c.repoPath }

// EnsureRepository opens the output repository, initializing it if the
// directory is not one yet.
func (c *Client) EnsureRepository() error {
	if err := os.MkdirAll(c.repoPath, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if _, err := git.PlainOpen(c.repoPath); err == nil {
		return nil
	}
	if _, err := git.PlainInit(c.repoPath, false); err != nil {
		return fmt.Errorf("init output repository: %w", err)
	}
	slog.Info("Initialized output repository", logfields.Path(c.repoPath))
	return nil
}

// CommitResult reports the outcome of a commit-if-changed operation.
type CommitResult struct {
	Committed bool
	Ref       plumbing.Hash
}

// CommitIfChanged stages all changes in the working tree and commits them
// under the configured identity, pushing if configured. When the tree is
// clean it returns a zero-value result with Committed false. At most one
// commit operation runs at a time; concurrent callers serialize on a
// repository lock.
func (c *Client) CommitIfChanged(ctx context.Context, message string) (CommitResult, error) {
	locked, err := c.lock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil || !locked {
		return CommitResult{}, liberr.CommitFailed(fmt.Errorf("acquire repository lock: %w", err))
	}
	defer func() {
		if err := c.lock.Unlock(); err != nil {
			slog.Warn("Failed to release repository lock", logfields.Error(err))
		}
	}()

	repo, err := git.PlainOpen(c.repoPath)
	if err != nil {
		return CommitResult{}, liberr.CommitFailed(fmt.Errorf("open repository: %w", err))
	}
	wt, err := repo.Worktree()
	if err != nil {
		return CommitResult{}, liberr.CommitFailed(fmt.Errorf("get worktree: %w", err))
	}

	status, err := wt.Status()
	if err != nil {
		return CommitResult{}, liberr.CommitFailed(fmt.Errorf("compute status: %w", err))
	}
	if status.IsClean() {
		slog.Info("Working tree unchanged, nothing to commit", logfields.Path(c.repoPath))
		return CommitResult{}, nil
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return CommitResult{}, liberr.CommitFailed(fmt.Errorf("stage changes: %w", err))
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.committer.Name,
			Email: c.committer.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitResult{}, liberr.CommitFailed(fmt.Errorf("commit: %w", err))
	}

	slog.Info("Committed generated output",
		logfields.Path(c.repoPath),
		slog.String("commit", hash.String()[:8]),
		slog.Int("files", len(status)))

	if c.push {
		if err := c.pushChanges(ctx, repo); err != nil {
			return CommitResult{}, err
		}
	}

	return CommitResult{Committed: true, Ref: hash}, nil
}

func (c *Client) pushChanges(ctx context.Context, repo *git.Repository) error {
	opts := &git.PushOptions{RemoteName: c.remote}
	if c.auth != nil {
		auth, err := authentication(c.auth)
		if err != nil {
			return liberr.CommitFailed(fmt.Errorf("setup push authentication: %w", err))
		}
		opts.Auth = auth
	}
	if err := repo.PushContext(ctx, opts); err != nil && err != git.NoErrAlreadyUpToDate {
		return liberr.CommitFailed(fmt.Errorf("push to %s: %w", c.remote, err))
	}
	return nil
}

// authentication creates a transport auth method from config.
func authentication(auth *config.GitAuth) (transport.AuthMethod, error) {
	switch auth.Type {
	case "none", "":
		return nil, nil

	case "ssh":
		keyPath := auth.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		publicKeys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key from %s: %w", keyPath, err)
		}
		return publicKeys, nil

	case "token":
		if auth.Token == "" {
			return nil, fmt.Errorf("token authentication requires a token")
		}
		return &http.BasicAuth{
			Username: "token", // GitHub/GitLab use "token" as username
			Password: auth.Token,
		}, nil

	case "basic":
		if auth.Username == "" || auth.Password == "" {
			return nil, fmt.Errorf("basic authentication requires username and password")
		}
		return &http.BasicAuth{
			Username: auth.Username,
			Password: auth.Password,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported authentication type: %s", auth.Type)
	}
}
