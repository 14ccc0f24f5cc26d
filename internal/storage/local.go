package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tmartens/keepsake/internal/errors"
)

// localBackend stores objects under a directory on the local filesystem.
//
// Options:
//   - root (required): base directory; created if absent.
type localBackend struct {
	root string
}

// OpenLocal opens a local-disk backend.
func OpenLocal(_ context.Context, opts Options) (Backend, error) {
	if err := opts.Require("root"); err != nil {
		return nil, err
	}
	root := opts["root"]
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating storage root %s", root)
	}
	return &localBackend{root: root}, nil
}

func (b *localBackend) abs(remotePath string) string {
	return filepath.Join(b.root, filepath.FromSlash(cleanRemote(remotePath)))
}

func (b *localBackend) Upload(_ context.Context, localPath, remotePath string) error {
	dst := b.abs(remotePath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Transfer(err, "creating remote directory for %s", remotePath)
	}
	if err := copyFile(localPath, dst); err != nil {
		return errors.Transfer(err, "uploading %s", remotePath)
	}
	return nil
}

func (b *localBackend) Download(_ context.Context, remotePath, localPath string) error {
	src := b.abs(remotePath)
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

func (b *localBackend) Exists(_ context.Context, remotePath string) (bool, error) {
	_, err := os.Stat(b.abs(remotePath))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Transfer(err, "stat %s", remotePath)
}

func (b *localBackend) Delete(_ context.Context, remotePath string) error {
	err := os.Remove(b.abs(remotePath))
	if err != nil && !os.IsNotExist(err) {
		return errors.Transfer(err, "deleting %s", remotePath)
	}
	return nil
}

func (b *localBackend) SupportsSharing() bool { return false }

func (b *localBackend) ShareLink(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errUnsupportedShare(b.Name())
}

func (b *localBackend) Name() string { return "local" }

func (b *localBackend) Close() error { return nil }

// copyFile copies src to dst, truncating dst if it exists.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
