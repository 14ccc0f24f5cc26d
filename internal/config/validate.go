package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmartens/keepsake/internal/storage"
)

// Validate checks a Config for validity against the known backends.
// Returns nil if valid, or a slice of validation errors.
func Validate(cfg *Config, registry *storage.Registry) []error {
	if cfg == nil {
		return []error{fmt.Errorf("config is nil")}
	}

	var errs []error
	known := make(map[string]bool)
	for _, name := range registry.Names() {
		known[name] = true
	}

	if cfg.Version < 1 {
		errs = append(errs, fmt.Errorf("version must be >= 1"))
	}
	if cfg.DefaultStorage == "" {
		errs = append(errs, fmt.Errorf("default_storage is required"))
	} else if !known[strings.ToLower(cfg.DefaultStorage)] {
		errs = append(errs, fmt.Errorf("default_storage: unknown backend %q", cfg.DefaultStorage))
	}
	if cfg.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce must not be negative"))
	}

	for i, t := range cfg.Targets {
		if err := validatePath(t.Path); err != nil {
			errs = append(errs, fmt.Errorf("targets[%d].path: %w", i, err))
		}
		if t.Storage != "" && !known[strings.ToLower(t.Storage)] {
			errs = append(errs, fmt.Errorf("targets[%d].storage: unknown backend %q", i, t.Storage))
		}
	}

	for name := range cfg.StorageOptions {
		if !known[strings.ToLower(name)] {
			errs = append(errs, fmt.Errorf("storage.%s: unknown backend", name))
		}
	}

	return errs
}

// validatePath checks if a path string is well-formed.
// It does not check if the path exists, only that it's syntactically valid.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path contains a null byte")
	}
	if cleaned := filepath.Clean(path); cleaned == "" || cleaned == "." {
		return fmt.Errorf("path %q is not usable", path)
	}
	return nil
}
