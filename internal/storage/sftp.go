package storage

import (
	"context"
	"net"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/tmartens/keepsake/internal/errors"
)

// sftpBackend stores objects on an SSH file transfer server.
//
// Options:
//   - host (required)
//   - username (required)
//   - password or key_file (one required): key_file is a PEM private key path
//   - port: default 22
//   - root: directory prefix on the server
//   - known_hosts_file: verify the host key against this file; without it
//     the host key is not checked
type sftpBackend struct {
	ssh    *ssh.Client
	client *sftp.Client
	root   string
	closed bool
}

// OpenSFTP dials the server and starts an SFTP session.
func OpenSFTP(_ context.Context, opts Options) (Backend, error) {
	if err := opts.Require("host", "username"); err != nil {
		return nil, err
	}
	if opts.Get("password", "") == "" && opts.Get("key_file", "") == "" {
		return nil, errors.Configuration("missing required options: one of password, key_file")
	}

	var auth []ssh.AuthMethod
	if keyFile := opts.Get("key_file", ""); keyFile != "" {
		pem, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, errors.Configuration("key file %s is not readable: %v", keyFile, err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, errors.Configuration("parsing key file %s: %v", keyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if pw := opts.Get("password", ""); pw != "" {
		auth = append(auth, ssh.Password(pw))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if kh := opts.Get("known_hosts_file", ""); kh != "" {
		cb, err := knownhosts.New(kh)
		if err != nil {
			return nil, errors.Configuration("loading known hosts %s: %v", kh, err)
		}
		hostKeyCallback = cb
	}

	addr := net.JoinHostPort(opts["host"], opts.Get("port", "22"))
	sshConn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            opts["username"],
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         30 * time.Second,
	})
	if err != nil {
		return nil, errors.Transfer(err, "connecting to %s", addr)
	}

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, errors.Transfer(err, "starting sftp session on %s", addr)
	}

	return &sftpBackend{ssh: sshConn, client: client, root: opts.Get("root", "")}, nil
}

func (b *sftpBackend) remote(remotePath string) string {
	return path.Join(b.root, cleanRemote(remotePath))
}

func (b *sftpBackend) Upload(_ context.Context, localPath, remotePath string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", localPath)
	}
	defer in.Close()

	target := b.remote(remotePath)
	if err := b.client.MkdirAll(path.Dir(target)); err != nil {
		return errors.Transfer(err, "creating remote directory for %s", remotePath)
	}

	out, err := b.client.Create(target)
	if err != nil {
		return errors.Transfer(err, "uploading %s", remotePath)
	}
	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		return errors.Transfer(err, "uploading %s", remotePath)
	}
	return errors.Transfer(out.Close(), "finalizing upload of %s", remotePath)
}

func (b *sftpBackend) Download(_ context.Context, remotePath, localPath string) error {
	in, err := b.client.Open(b.remote(remotePath))
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound("object %s does not exist", remotePath)
		}
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Transfer(err, "creating local directory for %s", localPath)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", localPath)
	}
	if _, err := in.WriteTo(out); err != nil {
		out.Close()
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	return out.Close()
}

func (b *sftpBackend) Exists(_ context.Context, remotePath string) (bool, error) {
	_, err := b.client.Stat(b.remote(remotePath))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Transfer(err, "checking %s", remotePath)
}

func (b *sftpBackend) Delete(_ context.Context, remotePath string) error {
	err := b.client.Remove(b.remote(remotePath))
	if err != nil && !os.IsNotExist(err) {
		return errors.Transfer(err, "deleting %s", remotePath)
	}
	return nil
}

func (b *sftpBackend) SupportsSharing() bool { return false }

func (b *sftpBackend) ShareLink(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errUnsupportedShare(b.Name())
}

func (b *sftpBackend) Name() string { return "sftp" }

func (b *sftpBackend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.client.Close()
	return b.ssh.Close()
}
