package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/tmartens/keepsake/internal/errors"
)

// azureBackend stores objects in an Azure Blob Storage container.
//
// Options:
//   - account (required): storage account name
//   - key (required): shared account key
//   - container (required)
//   - prefix: blob name prefix inside the container
type azureBackend struct {
	client    *azblob.Client
	container string
	prefix    string
}

// OpenAzure opens an Azure Blob Storage backend and verifies the container exists.
func OpenAzure(ctx context.Context, opts Options) (Backend, error) {
	if err := opts.Require("account", "key", "container"); err != nil {
		return nil, err
	}

	cred, err := azblob.NewSharedKeyCredential(opts["account"], opts["key"])
	if err != nil {
		return nil, errors.Configuration("invalid azure credentials: %v", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", opts["account"])
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, errors.Transfer(err, "creating azure client")
	}

	b := &azureBackend{
		client:    client,
		container: opts["container"],
		prefix:    opts.Get("prefix", ""),
	}

	containerClient := client.ServiceClient().NewContainerClient(b.container)
	if _, err := containerClient.GetProperties(ctx, nil); err != nil {
		return nil, errors.Transfer(err, "verifying container %s", b.container)
	}

	return b, nil
}

func (b *azureBackend) blobName(remotePath string) string {
	return path.Join(b.prefix, cleanRemote(remotePath))
}

func (b *azureBackend) blobClient(remotePath string) *blob.Client {
	return b.client.ServiceClient().NewContainerClient(b.container).NewBlobClient(b.blobName(remotePath))
}

func (b *azureBackend) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", localPath)
	}
	defer f.Close()

	_, err = b.client.UploadFile(ctx, b.container, b.blobName(remotePath), f, nil)
	return errors.Transfer(err, "uploading %s", remotePath)
}

func (b *azureBackend) Download(ctx context.Context, remotePath, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Transfer(err, "creating local directory for %s", localPath)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", localPath)
	}
	defer f.Close()

	_, err = b.client.DownloadFile(ctx, b.container, b.blobName(remotePath), f, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return errors.NotFound("object %s does not exist", remotePath)
		}
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	return nil
}

func (b *azureBackend) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := b.blobClient(remotePath).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, errors.Transfer(err, "checking %s", remotePath)
	}
	return true, nil
}

func (b *azureBackend) Delete(ctx context.Context, remotePath string) error {
	_, err := b.client.DeleteBlob(ctx, b.container, b.blobName(remotePath), nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return errors.Transfer(err, "deleting %s", remotePath)
	}
	return nil
}

func (b *azureBackend) SupportsSharing() bool { return true }

func (b *azureBackend) ShareLink(_ context.Context, remotePath string, expiry time.Duration) (string, error) {
	url, err := b.blobClient(remotePath).GetSASURL(
		sas.BlobPermissions{Read: true}, time.Now().Add(expiry), nil)
	if err != nil {
		return "", errors.Transfer(err, "signing link for %s", remotePath)
	}
	return url, nil
}

func (b *azureBackend) Name() string { return "azure" }

func (b *azureBackend) Close() error { return nil }
