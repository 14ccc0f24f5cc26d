// Package engine ties the archive pipeline, the storage backends, and the
// state store together into the backup, restore, and share operations.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tmartens/keepsake/internal/archive"
	"github.com/tmartens/keepsake/internal/config"
	"github.com/tmartens/keepsake/internal/crypt"
	"github.com/tmartens/keepsake/internal/errors"
	"github.com/tmartens/keepsake/internal/logging"
	"github.com/tmartens/keepsake/internal/secret"
	"github.com/tmartens/keepsake/internal/state"
	"github.com/tmartens/keepsake/internal/storage"
)

// timestampFormat renders UTC times in compact ISO form for remote names.
const timestampFormat = "20060102T150405Z"

// Engine executes backups, restores, and share-link issuance.
type Engine struct {
	Registry *storage.Registry
	Config   *config.Config
	State    *state.Store
	Secrets  secret.Provider
	Logger   *slog.Logger

	// Now is overridable for deterministic remote names in tests.
	Now func() time.Time
}

// New wires an Engine with the standard clock.
func New(registry *storage.Registry, cfg *config.Config, store *state.Store, secrets secret.Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Engine{
		Registry: registry,
		Config:   cfg,
		State:    store,
		Secrets:  secrets,
		Logger:   logger,
		Now:      time.Now,
	}
}

func (e *Engine) open(ctx context.Context, name string) (storage.Backend, error) {
	return e.Registry.Open(ctx, name, e.Config.OptionsFor(strings.ToLower(name)))
}

// BackupDirectory archives sourceDir, optionally encrypts it, and uploads it
// to the resolved backend. The state record is appended only after the upload
// succeeds. storageOverride, when non-empty, wins over configuration.
func (e *Engine) BackupDirectory(ctx context.Context, sourceDir, storageOverride string) (state.Record, error) {
	var rec state.Record

	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return rec, errors.Wrapf(err, "resolving %s", sourceDir)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return rec, errors.NotFound("source directory %s does not exist", abs)
		}
		return rec, errors.Wrapf(err, "stat %s", abs)
	}
	if !info.IsDir() {
		return rec, errors.NotFound("%s is not a directory", abs)
	}

	storageName := e.Config.StorageFor(abs, storageOverride)
	backend, err := e.open(ctx, storageName)
	if err != nil {
		return rec, err
	}
	defer backend.Close()

	workDir, err := os.MkdirTemp("", "keepsake-backup-*")
	if err != nil {
		return rec, errors.Wrap(err, "creating work directory")
	}
	defer os.RemoveAll(workDir)

	started := time.Now()
	dirName := sanitizeName(filepath.Base(abs))
	createdAt := e.Now().UTC()
	archiveName := fmt.Sprintf("backup_%s_%s.tar.gz", dirName, createdAt.Format(timestampFormat))
	archivePath := filepath.Join(workDir, archiveName)

	stats, err := archive.Pack(ctx, abs, archivePath)
	if err != nil {
		return rec, errors.Wrapf(err, "archiving %s", abs)
	}

	uploadPath := archivePath
	if e.Config.Encrypt {
		password, err := e.Secrets.Password()
		if err != nil {
			return rec, err
		}
		encPath := archivePath + crypt.Suffix
		if err := crypt.EncryptFile(archivePath, encPath, password); err != nil {
			return rec, errors.Wrapf(err, "encrypting %s", archiveName)
		}
		uploadPath = encPath
	}

	stored, err := os.Stat(uploadPath)
	if err != nil {
		return rec, errors.Wrapf(err, "stat %s", uploadPath)
	}

	remotePath := path.Join(dirName, filepath.Base(uploadPath))
	if err := backend.Upload(ctx, uploadPath, remotePath); err != nil {
		return rec, errors.Wrapf(err, "uploading %s", remotePath)
	}

	rec = state.Record{
		SourcePath:    abs,
		RemotePath:    remotePath,
		Storage:       storageName,
		CreatedAt:     createdAt,
		OriginalBytes: stats.Bytes,
		StoredBytes:   stored.Size(),
		FileCount:     stats.Files,
		Encrypted:     e.Config.Encrypt,
	}
	if err := e.State.Record(rec); err != nil {
		return rec, err
	}

	e.Logger.Info("backup complete",
		"source", abs,
		"storage", storageName,
		"remote", remotePath,
		"files", stats.Files,
		"original_bytes", stats.Bytes,
		"stored_bytes", stored.Size(),
		"encrypted", e.Config.Encrypt,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return rec, nil
}

// sanitizeName keeps remote names portable across backends: anything outside
// letters, digits, dot, underscore, and hyphen becomes a hyphen.
func sanitizeName(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			out[i] = '-'
		}
	}
	return string(out)
}

// RestoreFromBackup downloads remotePath from the resolved backend, decrypts
// it when it carries the encrypted suffix, and unpacks it into targetDir.
func (e *Engine) RestoreFromBackup(ctx context.Context, remotePath, targetDir, storageOverride string) (archive.Stats, error) {
	var stats archive.Stats

	storageName := storageOverride
	if storageName == "" {
		storageName = e.Config.DefaultStorage
	}
	backend, err := e.open(ctx, storageName)
	if err != nil {
		return stats, err
	}
	defer backend.Close()

	workDir, err := os.MkdirTemp("", "keepsake-restore-*")
	if err != nil {
		return stats, errors.Wrap(err, "creating work directory")
	}
	defer os.RemoveAll(workDir)

	localPath := filepath.Join(workDir, path.Base(remotePath))
	if err := backend.Download(ctx, remotePath, localPath); err != nil {
		return stats, errors.Wrapf(err, "downloading %s", remotePath)
	}

	archivePath := localPath
	if strings.HasSuffix(localPath, crypt.Suffix) {
		password, err := e.Secrets.Password()
		if err != nil {
			return stats, err
		}
		plainPath := strings.TrimSuffix(localPath, crypt.Suffix)
		if err := crypt.DecryptFile(localPath, plainPath, password); err != nil {
			return stats, err
		}
		archivePath = plainPath
	}

	stats, err = archive.Unpack(ctx, archivePath, targetDir)
	if err != nil {
		return stats, errors.Wrapf(err, "unpacking %s", remotePath)
	}

	e.Logger.Info("restore complete",
		"remote", remotePath,
		"storage", storageName,
		"target", targetDir,
		"files", stats.Files,
		"bytes", stats.Bytes,
	)
	return stats, nil
}

// ShareFile uploads localPath under a fresh shared/ prefix and returns a
// pre-authorized link valid for expiry. Backends without sharing are rejected
// before anything is uploaded. If link issuance fails after the upload, the
// uploaded object is deleted best-effort and the issuance error is returned.
func (e *Engine) ShareFile(ctx context.Context, localPath, storageOverride string, expiry time.Duration) (string, error) {
	storageName := storageOverride
	if storageName == "" {
		storageName = e.Config.DefaultStorage
	}

	if _, err := os.Stat(localPath); err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFound("file %s does not exist", localPath)
		}
		return "", errors.Wrapf(err, "stat %s", localPath)
	}

	backend, err := e.open(ctx, storageName)
	if err != nil {
		return "", err
	}
	defer backend.Close()

	if !backend.SupportsSharing() {
		return "", errors.Unsupported("%s storage does not support share links", backend.Name())
	}

	remotePath := path.Join("shared", uuid.NewString(), filepath.Base(localPath))
	if err := backend.Upload(ctx, localPath, remotePath); err != nil {
		return "", errors.Wrapf(err, "uploading %s", remotePath)
	}

	link, err := backend.ShareLink(ctx, remotePath, expiry)
	if err != nil {
		if cleanupErr := backend.Delete(ctx, remotePath); cleanupErr != nil {
			e.Logger.Warn("could not remove uploaded file after link failure",
				"remote", remotePath, "error", cleanupErr)
		}
		return "", errors.Wrapf(err, "issuing share link for %s", remotePath)
	}

	e.Logger.Info("share link issued",
		"file", localPath,
		"storage", storageName,
		"remote", remotePath,
		"expiry", expiry,
	)
	return link, nil
}
