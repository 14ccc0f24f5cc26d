package storage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"

	"github.com/tmartens/keepsake/internal/errors"
)

// dropboxBackend stores objects in a Dropbox app folder.
//
// Options:
//   - token (required): OAuth2 access token
//   - root: path prefix inside the Dropbox namespace
type dropboxBackend struct {
	client files.Client
	root   string
}

// OpenDropbox opens a Dropbox backend and verifies the token works.
func OpenDropbox(_ context.Context, opts Options) (Backend, error) {
	if err := opts.Require("token"); err != nil {
		return nil, err
	}

	cfg := dropbox.Config{Token: opts["token"]}
	client := files.New(cfg)

	b := &dropboxBackend{client: client, root: opts.Get("root", "")}

	// A metadata call on the root exercises the token without transferring data.
	if _, err := client.ListFolder(files.NewListFolderArg(b.dropboxPath(""))); err != nil && !isDropboxNotFound(err) {
		return nil, errors.Transfer(err, "verifying dropbox access")
	}

	return b, nil
}

// dropboxPath renders a remote path in Dropbox form (leading slash).
func (b *dropboxBackend) dropboxPath(remotePath string) string {
	p := path.Join("/", b.root, cleanRemote(remotePath))
	if p == "/" {
		return ""
	}
	return p
}

// isDropboxNotFound matches the API's path lookup "not_found" failures.
func isDropboxNotFound(err error) bool {
	var metaErr files.GetMetadataAPIError
	if errors.As(err, &metaErr) {
		return metaErr.EndpointError != nil &&
			metaErr.EndpointError.Path != nil &&
			metaErr.EndpointError.Path.Tag == files.LookupErrorNotFound
	}
	var dlErr files.DownloadAPIError
	if errors.As(err, &dlErr) {
		return dlErr.EndpointError != nil &&
			dlErr.EndpointError.Path != nil &&
			dlErr.EndpointError.Path.Tag == files.LookupErrorNotFound
	}
	var lfErr files.ListFolderAPIError
	if errors.As(err, &lfErr) {
		return lfErr.EndpointError != nil &&
			lfErr.EndpointError.Path != nil &&
			lfErr.EndpointError.Path.Tag == files.LookupErrorNotFound
	}
	return false
}

func (b *dropboxBackend) Upload(_ context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", localPath)
	}
	defer f.Close()

	arg := files.NewUploadArg(b.dropboxPath(remotePath))
	arg.Mode = &files.WriteMode{Tagged: dropbox.Tagged{Tag: files.WriteModeOverwrite}}

	if _, err := b.client.Upload(arg, f); err != nil {
		return errors.Transfer(err, "uploading %s", remotePath)
	}
	return nil
}

func (b *dropboxBackend) Download(_ context.Context, remotePath, localPath string) error {
	_, content, err := b.client.Download(files.NewDownloadArg(b.dropboxPath(remotePath)))
	if err != nil {
		if isDropboxNotFound(err) {
			return errors.NotFound("object %s does not exist", remotePath)
		}
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	defer content.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Transfer(err, "creating local directory for %s", localPath)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", localPath)
	}
	if _, err := io.Copy(out, content); err != nil {
		out.Close()
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	return out.Close()
}

func (b *dropboxBackend) Exists(_ context.Context, remotePath string) (bool, error) {
	_, err := b.client.GetMetadata(files.NewGetMetadataArg(b.dropboxPath(remotePath)))
	if err != nil {
		if isDropboxNotFound(err) {
			return false, nil
		}
		return false, errors.Transfer(err, "checking %s", remotePath)
	}
	return true, nil
}

func (b *dropboxBackend) Delete(ctx context.Context, remotePath string) error {
	exists, err := b.Exists(ctx, remotePath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if _, err := b.client.DeleteV2(files.NewDeleteArg(b.dropboxPath(remotePath))); err != nil {
		return errors.Transfer(err, "deleting %s", remotePath)
	}
	return nil
}

func (b *dropboxBackend) SupportsSharing() bool { return true }

// ShareLink issues a temporary link. Dropbox fixes the lifetime of
// temporary links at four hours; longer expiry requests are capped there.
func (b *dropboxBackend) ShareLink(_ context.Context, remotePath string, _ time.Duration) (string, error) {
	res, err := b.client.GetTemporaryLink(files.NewGetTemporaryLinkArg(b.dropboxPath(remotePath)))
	if err != nil {
		return "", errors.Transfer(err, "signing link for %s", remotePath)
	}
	return res.Link, nil
}

func (b *dropboxBackend) Name() string { return "dropbox" }

func (b *dropboxBackend) Close() error { return nil }
