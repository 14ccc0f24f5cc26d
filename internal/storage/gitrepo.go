package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/tmartens/keepsake/internal/errors"
)

// gitBackend uses a git repository as object storage: every upload is a
// commit on a single branch, pushed immediately. A shallow working clone
// lives in a temp directory for the lifetime of the backend.
//
// Options:
//   - url (required): remote repository URL
//   - branch: branch to commit to (default "main")
//   - username, password: HTTP basic auth (a token goes in password)
type gitBackend struct {
	repo    *git.Repository
	workdir string
	branch  string
	auth    *githttp.BasicAuth
	closed  bool
}

// OpenGit clones the remote repository into a temp directory. An empty
// remote is initialized locally and receives its first commit on upload.
func OpenGit(ctx context.Context, opts Options) (Backend, error) {
	if err := opts.Require("url"); err != nil {
		return nil, err
	}
	branch := opts.Get("branch", "main")

	var auth *githttp.BasicAuth
	if user := opts.Get("username", ""); user != "" {
		auth = &githttp.BasicAuth{Username: user, Password: opts.Get("password", "")}
	}

	workdir, err := os.MkdirTemp("", "keepsake-git-*")
	if err != nil {
		return nil, errors.Wrap(err, "creating work directory")
	}

	repo, err := git.PlainCloneContext(ctx, workdir, false, &git.CloneOptions{
		URL:           opts["url"],
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		repo, err = initEmptyClone(workdir, opts["url"], branch)
	}
	if err != nil {
		os.RemoveAll(workdir)
		return nil, errors.Transfer(err, "cloning %s", opts["url"])
	}

	return &gitBackend{repo: repo, workdir: workdir, branch: branch, auth: auth}, nil
}

// initEmptyClone prepares a local repository tracking an empty remote.
func initEmptyClone(workdir, url, branch string) (*git.Repository, error) {
	repo, err := git.PlainInit(workdir, false)
	if err != nil {
		return nil, err
	}
	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{url},
	}); err != nil {
		return nil, err
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, err
	}
	return repo, nil
}

// refresh pulls the tracked branch. An up-to-date or still-empty remote
// is not an error.
func (b *gitBackend) refresh(ctx context.Context) error {
	wt, err := b.repo.Worktree()
	if err != nil {
		return errors.Wrap(err, "opening worktree")
	}
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    git.DefaultRemoteName,
		ReferenceName: plumbing.NewBranchReferenceName(b.branch),
		SingleBranch:  true,
		Auth:          b.auth,
	})
	if err != nil &&
		!errors.Is(err, git.NoErrAlreadyUpToDate) &&
		!errors.Is(err, transport.ErrEmptyRemoteRepository) &&
		!errors.Is(err, plumbing.ErrReferenceNotFound) {
		return errors.Transfer(err, "pulling %s", b.branch)
	}
	return nil
}

// commitAndPush stages rel, commits, and pushes the branch.
func (b *gitBackend) commitAndPush(ctx context.Context, rel, message string) error {
	wt, err := b.repo.Worktree()
	if err != nil {
		return errors.Wrap(err, "opening worktree")
	}
	if _, err := wt.Add(rel); err != nil {
		return errors.Wrapf(err, "staging %s", rel)
	}
	sig := &object.Signature{Name: "keepsake", Email: "keepsake@localhost", When: time.Now()}
	if _, err := wt.Commit(message, &git.CommitOptions{Author: sig}); err != nil {
		return errors.Wrapf(err, "committing %s", rel)
	}
	err = b.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: git.DefaultRemoteName,
		Auth:       b.auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return errors.Transfer(err, "pushing %s", b.branch)
	}
	return nil
}

func (b *gitBackend) abs(remotePath string) (string, string) {
	rel := filepath.FromSlash(cleanRemote(remotePath))
	return filepath.Join(b.workdir, rel), rel
}

func (b *gitBackend) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := b.refresh(ctx); err != nil {
		return err
	}
	dst, rel := b.abs(remotePath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", remotePath)
	}
	if err := copyFile(localPath, dst); err != nil {
		return errors.Wrapf(err, "staging %s", remotePath)
	}
	return b.commitAndPush(ctx, rel, "store "+cleanRemote(remotePath))
}

func (b *gitBackend) Download(ctx context.Context, remotePath, localPath string) error {
	if err := b.refresh(ctx); err != nil {
		return err
	}
	src, _ := b.abs(remotePath)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound("object %s does not exist", remotePath)
		}
		return errors.Transfer(err, "stat %s", remotePath)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Transfer(err, "creating local directory for %s", localPath)
	}
	if err := copyFile(src, localPath); err != nil {
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	return nil
}

func (b *gitBackend) Exists(ctx context.Context, remotePath string) (bool, error) {
	if err := b.refresh(ctx); err != nil {
		return false, err
	}
	src, _ := b.abs(remotePath)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Transfer(err, "stat %s", remotePath)
	}
	return true, nil
}

func (b *gitBackend) Delete(ctx context.Context, remotePath string) error {
	exists, err := b.Exists(ctx, remotePath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	src, rel := b.abs(remotePath)
	if err := os.Remove(src); err != nil {
		return errors.Wrapf(err, "removing %s", remotePath)
	}
	return b.commitAndPush(ctx, rel, "delete "+cleanRemote(remotePath))
}

func (b *gitBackend) SupportsSharing() bool { return false }

func (b *gitBackend) ShareLink(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errUnsupportedShare(b.Name())
}

func (b *gitBackend) Name() string { return "git" }

func (b *gitBackend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return os.RemoveAll(b.workdir)
}
