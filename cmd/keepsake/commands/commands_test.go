package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tmartens/keepsake/internal/errors"
)

func TestCommandMetadata(t *testing.T) {
	if backupCmd.Use != "backup <directory>" {
		t.Errorf("backup Use = %q", backupCmd.Use)
	}
	if backupCmd.Flags().Lookup("storage") == nil {
		t.Error("backup should define --storage")
	}
	if restoreCmd.Flags().Lookup("storage") == nil {
		t.Error("restore should define --storage")
	}
	if shareCmd.Flags().Lookup("expiry") == nil {
		t.Error("share should define --expiry")
	}
	for _, name := range []string{"verbose", "quiet", "log-format", "config"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("root should define --%s", name)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStorageList(t *testing.T) {
	var buf bytes.Buffer
	storageListCmd.SetOut(&buf)
	if err := storageListCmd.RunE(storageListCmd, nil); err != nil {
		t.Fatalf("storage list: %v", err)
	}
	out := buf.String()
	for _, name := range []string{"local", "s3", "gcs", "azure", "gdrive", "dropbox", "git", "ftp", "sftp"} {
		if !strings.Contains(out, name) {
			t.Errorf("storage list output missing %q:\n%s", name, out)
		}
	}
}

func TestConfigInit(t *testing.T) {
	orig := cfgFile
	t.Cleanup(func() { cfgFile = orig })
	cfgFile = filepath.Join(t.TempDir(), "keepsake.yaml")

	var buf bytes.Buffer
	configInitCmd.SetOut(&buf)
	if err := runConfigInit(configInitCmd, nil); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(buf.String(), cfgFile) {
		t.Errorf("output should name the written file: %s", buf.String())
	}

	// second run refuses to overwrite
	if err := runConfigInit(configInitCmd, nil); !errors.Is(err, errors.ErrConfiguration) {
		t.Errorf("expected refusal to overwrite, got %v", err)
	}
}

func TestSetupLogging_RejectsQuietAndVerbose(t *testing.T) {
	origQuiet, origVerbosity := quiet, verbosity
	t.Cleanup(func() { quiet, verbosity = origQuiet, origVerbosity })

	quiet, verbosity = true, 1
	err := setupLogging(rootCmd)
	if err == nil {
		t.Fatal("expected an error for --quiet with --verbose")
	}
	if errors.ExitCode(err) != errors.ExitUser {
		t.Errorf("exit code %d, want %d", errors.ExitCode(err), errors.ExitUser)
	}
}
