package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tmartens/keepsake/internal/errors"
)

// s3Backend stores objects in an S3 (or S3-compatible) bucket.
//
// Options:
//   - bucket (required)
//   - region (required)
//   - access_key_id (required)
//   - secret_access_key (required)
//   - endpoint: custom endpoint for S3-compatible services (MinIO, R2, ...)
//   - prefix: key prefix inside the bucket
type s3Backend struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
	prefix     string
}

// OpenS3 opens an S3 backend and verifies the bucket is reachable.
func OpenS3(ctx context.Context, opts Options) (Backend, error) {
	if err := opts.Require("bucket", "region", "access_key_id", "secret_access_key"); err != nil {
		return nil, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts["region"]),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts["access_key_id"], opts["secret_access_key"], "")),
	)
	if err != nil {
		return nil, errors.Transfer(err, "building AWS config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := opts.Get("endpoint", ""); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	b := &s3Backend{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     opts["bucket"],
		prefix:     opts.Get("prefix", ""),
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)}); err != nil {
		return nil, errors.Transfer(err, "verifying bucket %s", b.bucket)
	}

	return b, nil
}

func (b *s3Backend) key(remotePath string) string {
	return path.Join(b.prefix, cleanRemote(remotePath))
}

func (b *s3Backend) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", localPath)
	}
	defer f.Close()

	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(remotePath)),
		Body:   f,
	})
	return errors.Transfer(err, "uploading %s", remotePath)
}

func (b *s3Backend) Download(ctx context.Context, remotePath, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Transfer(err, "creating local directory for %s", localPath)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", localPath)
	}
	defer f.Close()

	_, err = b.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(remotePath)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return errors.NotFound("object %s does not exist", remotePath)
		}
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	return nil
}

func (b *s3Backend) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(remotePath)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, errors.Transfer(err, "checking %s", remotePath)
	}
	return true, nil
}

func (b *s3Backend) Delete(ctx context.Context, remotePath string) error {
	// S3 DeleteObject succeeds for absent keys, which matches the
	// idempotent delete contract.
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(remotePath)),
	})
	return errors.Transfer(err, "deleting %s", remotePath)
}

func (b *s3Backend) SupportsSharing() bool { return true }

func (b *s3Backend) ShareLink(ctx context.Context, remotePath string, expiry time.Duration) (string, error) {
	presign := s3.NewPresignClient(b.client)
	req, err := presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(remotePath)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", errors.Transfer(err, "signing link for %s", remotePath)
	}
	return req.URL, nil
}

func (b *s3Backend) Name() string { return "s3" }

func (b *s3Backend) Close() error { return nil }
