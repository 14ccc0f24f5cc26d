package config

import (
	"os"

	"github.com/tmartens/keepsake/internal/errors"
	"github.com/tmartens/keepsake/pkg/fileutil"
)

// defaultYAML is the commented starter config written by `keepsake config init`.
const defaultYAML = `# keepsake configuration
version: 1

# Backend used when a target does not name its own and no --storage flag is
# given. Run "keepsake storage list" for the available backends.
default_storage: local

# Encrypt archives before upload. The password comes from the
# KEEPSAKE_PASSWORD environment variable or an interactive prompt.
encrypt: false

# How long "keepsake watch" waits after the last filesystem event before
# starting a backup.
debounce: 5s

# Directories to back up. Each may override the default backend.
targets: []
#  - path: ~/Documents
#  - path: ~/Projects/notes
#    storage: s3

# Per-backend options, keyed by backend name.
storage:
  local:
    root: ~/keepsake-backups
#  s3:
#    bucket: my-backups
#    region: eu-central-1
#    access_key_id: ...
#    secret_access_key: ...
#  sftp:
#    host: backup.example.com
#    username: me
#    key_file: ~/.ssh/id_ed25519
`

// WriteDefault writes the starter config to path. It refuses to overwrite an
// existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Configuration("config file already exists at %s", path)
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "checking %s", path)
	}
	if err := fileutil.AtomicWriteFile(path, []byte(defaultYAML), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
