package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tmartens/keepsake/internal/errors"
)

func openLocalForTest(t *testing.T) Backend {
	t.Helper()
	b, err := OpenLocal(context.Background(), Options{"root": t.TempDir()})
	if err != nil {
		t.Fatalf("OpenLocal() error = %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenLocal_MissingRoot(t *testing.T) {
	_, err := OpenLocal(context.Background(), Options{})
	if !errors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLocal_RoundTrip(t *testing.T) {
	ctx := context.Background()
	b := openLocalForTest(t)

	src := writeTempFile(t, "backup payload")
	if err := b.Upload(ctx, src, "docs/backup_docs_20260102T030405Z.tar.gz"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	exists, err := b.Exists(ctx, "docs/backup_docs_20260102T030405Z.tar.gz")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Fatal("uploaded object reported as absent")
	}

	dst := filepath.Join(t.TempDir(), "nested", "dir", "restored")
	if err := b.Download(ctx, "docs/backup_docs_20260102T030405Z.tar.gz", dst); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "backup payload" {
		t.Errorf("content = %q, want %q", data, "backup payload")
	}
}

func TestLocal_UploadOverwrites(t *testing.T) {
	ctx := context.Background()
	b := openLocalForTest(t)

	if err := b.Upload(ctx, writeTempFile(t, "first"), "obj"); err != nil {
		t.Fatal(err)
	}
	if err := b.Upload(ctx, writeTempFile(t, "second"), "obj"); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "out")
	if err := b.Download(ctx, "obj", dst); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}
}

func TestLocal_DownloadMissing(t *testing.T) {
	b := openLocalForTest(t)

	err := b.Download(context.Background(), "no/such/object", filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestLocal_ExistsMissing(t *testing.T) {
	b := openLocalForTest(t)

	exists, err := b.Exists(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("absent object reported as existing")
	}
}

func TestLocal_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	b := openLocalForTest(t)

	if err := b.Upload(ctx, writeTempFile(t, "x"), "obj"); err != nil {
		t.Fatal(err)
	}
	if err := b.Delete(ctx, "obj"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// Deleting again must not error.
	if err := b.Delete(ctx, "obj"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
}

func TestLocal_ShareUnsupported(t *testing.T) {
	b := openLocalForTest(t)

	if b.SupportsSharing() {
		t.Fatal("local backend must not report sharing support")
	}
	_, err := b.ShareLink(context.Background(), "obj", 0)
	if !errors.Is(err, errors.ErrUnsupported) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestLocal_CloseIdempotent(t *testing.T) {
	b := openLocalForTest(t)
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestCleanRemote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"docs/a.tar.gz", "docs/a.tar.gz"},
		{"/docs/a.tar.gz", "docs/a.tar.gz"},
		{"../../etc/passwd", "etc/passwd"},
		{"a//b", "a/b"},
		{".", ""},
	}
	for _, tt := range tests {
		if got := cleanRemote(tt.in); got != tt.want {
			t.Errorf("cleanRemote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
