package storage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/tmartens/keepsake/internal/errors"
)

// gcsBackend stores objects in a Google Cloud Storage bucket.
//
// Options:
//   - bucket (required)
//   - credentials_file (required): path to a service account key
//   - prefix: object name prefix inside the bucket
type gcsBackend struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
	prefix string
}

// OpenGCS opens a Google Cloud Storage backend and verifies the bucket exists.
func OpenGCS(ctx context.Context, opts Options) (Backend, error) {
	if err := opts.Require("bucket", "credentials_file"); err != nil {
		return nil, err
	}
	keyPath := opts["credentials_file"]
	if _, err := os.Stat(keyPath); err != nil {
		return nil, errors.Configuration("credentials file %s is not readable: %v", keyPath, err)
	}

	client, err := gcs.NewClient(ctx, option.WithCredentialsFile(keyPath))
	if err != nil {
		return nil, errors.Transfer(err, "creating GCS client")
	}

	b := &gcsBackend{
		client: client,
		bucket: client.Bucket(opts["bucket"]),
		name:   opts["bucket"],
		prefix: opts.Get("prefix", ""),
	}

	if _, err := b.bucket.Attrs(ctx); err != nil {
		client.Close()
		return nil, errors.Transfer(err, "verifying bucket %s", b.name)
	}

	return b, nil
}

func (b *gcsBackend) object(remotePath string) *gcs.ObjectHandle {
	return b.bucket.Object(path.Join(b.prefix, cleanRemote(remotePath)))
}

func (b *gcsBackend) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", localPath)
	}
	defer f.Close()

	w := b.object(remotePath).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return errors.Transfer(err, "uploading %s", remotePath)
	}
	return errors.Transfer(w.Close(), "finalizing upload of %s", remotePath)
}

func (b *gcsBackend) Download(ctx context.Context, remotePath, localPath string) error {
	r, err := b.object(remotePath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return errors.NotFound("object %s does not exist", remotePath)
		}
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Transfer(err, "creating local directory for %s", localPath)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", localPath)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	return f.Close()
}

func (b *gcsBackend) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := b.object(remotePath).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	return false, errors.Transfer(err, "checking %s", remotePath)
}

func (b *gcsBackend) Delete(ctx context.Context, remotePath string) error {
	err := b.object(remotePath).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return errors.Transfer(err, "deleting %s", remotePath)
	}
	return nil
}

func (b *gcsBackend) SupportsSharing() bool { return true }

func (b *gcsBackend) ShareLink(_ context.Context, remotePath string, expiry time.Duration) (string, error) {
	url, err := b.bucket.SignedURL(path.Join(b.prefix, cleanRemote(remotePath)), &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		return "", errors.Transfer(err, "signing link for %s", remotePath)
	}
	return url, nil
}

func (b *gcsBackend) Name() string { return "gcs" }

func (b *gcsBackend) Close() error { return b.client.Close() }
