// Package storage defines the backend contract for remote backup storage
// and its adapters: local disk, S3-compatible object storage, Google Cloud
// Storage, Azure Blob Storage, Google Drive, Dropbox, git repositories,
// FTP, and SFTP.
//
// Backends are opened through a [Registry], which resolves a provider name
// case-insensitively and returns a caller-owned handle:
//
//	backend, err := storage.DefaultRegistry().Open(ctx, "s3", opts)
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
// All adapters share the same semantics: uploads overwrite, downloads
// create missing local parent directories, deletes are idempotent, and
// Exists maps "not found" to false rather than an error. Share links are
// an optional capability gated by SupportsSharing.
package storage
