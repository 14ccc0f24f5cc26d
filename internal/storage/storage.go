package storage

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/tmartens/keepsake/internal/errors"
)

// Options carries backend-specific settings as string key/value pairs.
// An Options map is supplied once when a backend is opened and is never
// mutated afterwards.
type Options map[string]string

// Get returns the value for key, or def when the key is absent or empty.
func (o Options) Get(key, def string) string {
	if v, ok := o[key]; ok && v != "" {
		return v
	}
	return def
}

// Require verifies that every listed key is present and non-empty.
// All missing keys are reported in a single configuration error, not
// just the first one.
func (o Options) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if o[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Configuration("missing required options: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Backend is the contract every storage adapter implements.
//
// A Backend owns one remote session. It is created per logical unit of
// work and is not safe for concurrent use by multiple simultaneous
// operations; callers open a fresh instance per in-flight operation and
// Close it on every exit path.
type Backend interface {
	// Upload stores the local file at remotePath, replacing any existing
	// object. Network or remote-auth failures are marked ErrTransfer.
	Upload(ctx context.Context, localPath, remotePath string) error

	// Download fetches remotePath into localPath, creating missing local
	// parent directories. A missing remote object is marked ErrNotFound;
	// any other failure is marked ErrTransfer.
	Download(ctx context.Context, remotePath, localPath string) error

	// Exists reports whether remotePath exists. Backend "not found"
	// responses map to (false, nil); other errors propagate.
	Exists(ctx context.Context, remotePath string) (bool, error)

	// Delete removes remotePath. Deleting an absent object is not an error.
	Delete(ctx context.Context, remotePath string) error

	// SupportsSharing reports whether ShareLink is available.
	SupportsSharing() bool

	// ShareLink returns a time-bounded externally accessible URL for
	// remotePath. On a backend without sharing it fails immediately with
	// ErrUnsupported and performs no network call.
	ShareLink(ctx context.Context, remotePath string, expiry time.Duration) (string, error)

	// Name returns the backend identifier, e.g. "s3".
	Name() string

	// Close releases the session. It is idempotent.
	Close() error
}

// cleanRemote normalizes a remote path to slash-separated form without a
// leading slash, so adapters can join it under their configured root.
func cleanRemote(p string) string {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "/")
	for strings.HasPrefix(p, "../") {
		p = strings.TrimPrefix(p, "../")
	}
	if p == "." || p == ".." {
		return ""
	}
	return p
}

// errUnsupportedShare is the uniform failure for backends without sharing.
func errUnsupportedShare(name string) error {
	return errors.Unsupported("backend %q does not support share links", name)
}
