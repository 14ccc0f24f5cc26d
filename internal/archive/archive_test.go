package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tmartens/keepsake/internal/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestPackUnpack_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "notes.txt"), "hello")
	writeFile(t, filepath.Join(src, "docs", "deep", "report.md"), "# report")
	if err := os.Mkdir(filepath.Join(src, "empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	archivePath := filepath.Join(t.TempDir(), "backup.tar.gz")
	packed, err := Pack(ctx, src, archivePath)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if packed.Files != 2 {
		t.Errorf("packed %d files, want 2", packed.Files)
	}
	if want := int64(len("hello") + len("# report")); packed.Bytes != want {
		t.Errorf("packed %d bytes, want %d", packed.Bytes, want)
	}

	dst := t.TempDir()
	unpacked, err := Unpack(ctx, archivePath, dst)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if unpacked.Files != packed.Files || unpacked.Bytes != packed.Bytes {
		t.Errorf("unpack stats %+v, want %+v", unpacked, packed)
	}

	got, err := os.ReadFile(filepath.Join(dst, "docs", "deep", "report.md"))
	if err != nil {
		t.Fatalf("reading restored file: %v", err)
	}
	if string(got) != "# report" {
		t.Errorf("restored content %q, want %q", got, "# report")
	}
	if fi, err := os.Stat(filepath.Join(dst, "empty")); err != nil || !fi.IsDir() {
		t.Errorf("empty directory not restored: %v", err)
	}
}

func TestPack_SourceMissing(t *testing.T) {
	_, err := Pack(context.Background(), filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "out.tar.gz"))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestPack_SourceIsFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, src, "data")
	_, err := Pack(context.Background(), src, filepath.Join(t.TempDir(), "out.tar.gz"))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestUnpack_OverwritesExisting(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "config.yaml"), "new")

	archivePath := filepath.Join(t.TempDir(), "backup.tar.gz")
	if _, err := Pack(ctx, src, archivePath); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	dst := t.TempDir()
	writeFile(t, filepath.Join(dst, "config.yaml"), "old contents that are longer")
	if _, err := Unpack(ctx, archivePath, dst); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dst, "config.yaml"))
	if err != nil {
		t.Fatalf("reading restored file: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("restored content %q, want %q", got, "new")
	}
}

func TestUnpack_ArchiveMissing(t *testing.T) {
	_, err := Unpack(context.Background(), filepath.Join(t.TempDir(), "missing.tar.gz"), t.TempDir())
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestUnpack_NotGzip(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "bogus.tar.gz")
	writeFile(t, archivePath, "this is not a gzip stream")
	_, err := Unpack(context.Background(), archivePath, t.TempDir())
	if err == nil {
		t.Fatal("expected error for non-gzip input")
	}
	if errors.Is(err, errors.ErrAuthentication) {
		t.Errorf("format error must not look like an authentication failure: %v", err)
	}
}

func TestSecurePath_RejectsEscapes(t *testing.T) {
	tests := []string{"../evil", "/etc/passwd", "a/../../evil", ".."}
	for _, name := range tests {
		if _, err := securePath("/restore", name); err == nil {
			t.Errorf("securePath(%q) accepted an escaping entry", name)
		}
	}
	if _, err := securePath("/restore", "docs/ok.txt"); err != nil {
		t.Errorf("securePath rejected a safe entry: %v", err)
	}
}

// writeTamperedArchive builds a .tar.gz whose symlink entry points at
// linkTarget and whose regular entry routes a write through that symlink.
func writeTamperedArchive(t *testing.T, archivePath, linkTarget string) {
	t.Helper()
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	if err := tw.WriteHeader(&tar.Header{
		Name:     "s",
		Typeflag: tar.TypeSymlink,
		Linkname: linkTarget,
		Mode:     0o777,
	}); err != nil {
		t.Fatalf("write symlink header: %v", err)
	}
	body := []byte("escaped")
	if err := tw.WriteHeader(&tar.Header{
		Name:     "s/escape.txt",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(body)),
	}); err != nil {
		t.Fatalf("write file header: %v", err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatalf("write file body: %v", err)
	}
	for _, c := range []interface{ Close() error }{tw, gz, f} {
		if err := c.Close(); err != nil {
			t.Fatalf("close archive: %v", err)
		}
	}
}

func TestUnpack_SymlinkChainStaysInTarget(t *testing.T) {
	tests := []struct {
		name string
		// linkTarget reaches the sibling "outside" directory from within dst.
		linkTarget func(outside string) string
	}{
		{name: "absolute link", linkTarget: func(outside string) string { return outside }},
		{name: "relative link", linkTarget: func(string) string { return filepath.Join("..", "outside") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			outside := filepath.Join(base, "outside")
			dst := filepath.Join(base, "target")
			for _, dir := range []string{outside, dst} {
				if err := os.Mkdir(dir, 0o755); err != nil {
					t.Fatalf("mkdir: %v", err)
				}
			}

			archivePath := filepath.Join(t.TempDir(), "tampered.tar.gz")
			writeTamperedArchive(t, archivePath, tt.linkTarget(outside))

			if _, err := Unpack(context.Background(), archivePath, dst); err != nil {
				t.Fatalf("Unpack: %v", err)
			}
			if _, err := os.Stat(filepath.Join(outside, "escape.txt")); !os.IsNotExist(err) {
				t.Fatalf("extraction wrote through the symlink outside the target directory")
			}
		})
	}
}

func TestPack_PreservesSymlinks(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "real.txt"), "target")
	if err := os.Symlink("real.txt", filepath.Join(src, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	archivePath := filepath.Join(t.TempDir(), "backup.tar.gz")
	if _, err := Pack(ctx, src, archivePath); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	dst := t.TempDir()
	if _, err := Unpack(ctx, archivePath, dst); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	linkTarget, err := os.Readlink(filepath.Join(dst, "link.txt"))
	if err != nil {
		t.Fatalf("restored link: %v", err)
	}
	if linkTarget != "real.txt" {
		t.Errorf("link target %q, want %q", linkTarget, "real.txt")
	}
}
