// Package paths resolves default file system locations for keepsake
// following the XDG base directory specification.
package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// AppName is the directory name used under the XDG base directories.
const AppName = "keepsake"

// DefaultDirPerm is the default permission for newly created directories.
const DefaultDirPerm = 0o700

// ConfigDir returns the directory holding the keepsake config file,
// typically ~/.config/keepsake.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// StateFile returns the default location of the persisted backup state,
// typically ~/.local/state/keepsake/state.json.
func StateFile() string {
	return filepath.Join(xdg.StateHome, AppName, "state.json")
}

// CacheDir returns the scratch directory for temporary archive artifacts,
// typically ~/.cache/keepsake.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// EnsureDir creates the directory and any necessary parents.
// It is idempotent; it returns nil if the directory already exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, DefaultDirPerm)
}
