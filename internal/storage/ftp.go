package storage

import (
	"context"
	"net"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/tmartens/keepsake/internal/errors"
)

// ftpBackend stores objects on a plain FTP server.
//
// Options:
//   - host (required)
//   - username (required)
//   - password (required)
//   - port: default 21
//   - root: directory prefix on the server
type ftpBackend struct {
	conn   *ftp.ServerConn
	root   string
	closed bool
}

// OpenFTP dials the server and logs in.
func OpenFTP(ctx context.Context, opts Options) (Backend, error) {
	if err := opts.Require("host", "username", "password"); err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(opts["host"], opts.Get("port", "21"))

	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, errors.Transfer(err, "connecting to %s", addr)
	}
	if err := conn.Login(opts["username"], opts["password"]); err != nil {
		conn.Quit()
		return nil, errors.Transfer(err, "logging in to %s", addr)
	}

	return &ftpBackend{conn: conn, root: opts.Get("root", "")}, nil
}

func (b *ftpBackend) remote(remotePath string) string {
	return path.Join(b.root, cleanRemote(remotePath))
}

// isFTPNotFound matches 550 replies (file unavailable).
func isFTPNotFound(err error) bool {
	var protoErr *textproto.Error
	return errors.As(err, &protoErr) && protoErr.Code == ftp.StatusFileUnavailable
}

// mkdirAll creates every directory segment leading to p. Replies for
// already-existing directories are ignored.
func (b *ftpBackend) mkdirAll(p string) {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return
	}
	segments := strings.Split(dir, "/")
	cur := ""
	for _, s := range segments {
		if s == "" {
			continue
		}
		cur = path.Join(cur, s)
		_ = b.conn.MakeDir(cur)
	}
}

func (b *ftpBackend) Upload(_ context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", localPath)
	}
	defer f.Close()

	target := b.remote(remotePath)
	b.mkdirAll(target)

	if err := b.conn.Stor(target, f); err != nil {
		return errors.Transfer(err, "uploading %s", remotePath)
	}
	return nil
}

func (b *ftpBackend) Download(_ context.Context, remotePath, localPath string) error {
	resp, err := b.conn.Retr(b.remote(remotePath))
	if err != nil {
		if isFTPNotFound(err) {
			return errors.NotFound("object %s does not exist", remotePath)
		}
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	defer resp.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Transfer(err, "creating local directory for %s", localPath)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", localPath)
	}
	if _, err := out.ReadFrom(resp); err != nil {
		out.Close()
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	return out.Close()
}

func (b *ftpBackend) Exists(_ context.Context, remotePath string) (bool, error) {
	_, err := b.conn.FileSize(b.remote(remotePath))
	if err != nil {
		if isFTPNotFound(err) {
			return false, nil
		}
		return false, errors.Transfer(err, "checking %s", remotePath)
	}
	return true, nil
}

func (b *ftpBackend) Delete(_ context.Context, remotePath string) error {
	err := b.conn.Delete(b.remote(remotePath))
	if err != nil && !isFTPNotFound(err) {
		return errors.Transfer(err, "deleting %s", remotePath)
	}
	return nil
}

func (b *ftpBackend) SupportsSharing() bool { return false }

func (b *ftpBackend) ShareLink(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errUnsupportedShare(b.Name())
}

func (b *ftpBackend) Name() string { return "ftp" }

func (b *ftpBackend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.conn.Quit()
}
