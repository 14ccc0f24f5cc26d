package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tmartens/keepsake/internal/errors"
)

// Factory opens a ready-to-use backend from its options. Opening
// validates required options and establishes the remote session, which
// may involve a network round-trip.
type Factory func(ctx context.Context, opts Options) (Backend, error)

// Registry maps provider names to backend factories. Lookups are
// case-insensitive. The zero value is not usable; use NewRegistry or
// DefaultRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every built-in backend registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("local", OpenLocal)
	r.Register("s3", OpenS3)
	r.Register("gcs", OpenGCS)
	r.Register("azure", OpenAzure)
	r.Register("gdrive", OpenGoogleDrive)
	r.Register("dropbox", OpenDropbox)
	r.Register("git", OpenGit)
	r.Register("ftp", OpenFTP)
	r.Register("sftp", OpenSFTP)
	return r
}

// Register adds or replaces a factory under name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open resolves name case-insensitively, instantiates the backend, and
// hands back a ready-to-use, caller-owned handle. An unknown name fails
// with a configuration error listing the valid set. The caller is
// responsible for closing the returned backend.
func (r *Registry) Open(ctx context.Context, name string, opts Options) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Configuration(
			"unknown storage type %q (valid: %s)", name, strings.Join(r.Names(), ", "))
	}
	backend, err := f(ctx, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s storage", strings.ToLower(name))
	}
	return backend, nil
}
