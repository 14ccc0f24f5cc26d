package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tmartens/keepsake/internal/logging"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Load(path, logging.ForTest(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, path
}

func sampleRecord(source string) Record {
	return Record{
		SourcePath:    source,
		RemotePath:    "docs/backup_docs_20260826T120000Z.tar.gz",
		Storage:       "local",
		CreatedAt:     time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
		OriginalBytes: 4096,
		StoredBytes:   1024,
		FileCount:     7,
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s, _ := testStore(t)
	if got := s.All(); len(got) != 0 {
		t.Errorf("expected empty store, got %d records", len(got))
	}
}

func TestRecord_SurvivesReload(t *testing.T) {
	s, path := testStore(t)
	rec := sampleRecord("/home/user/docs")
	if err := s.Record(rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	reloaded, err := Load(path, logging.ForTest(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := reloaded.Get("/home/user/docs")
	if !ok {
		t.Fatal("record missing after reload")
	}
	if got != rec {
		t.Errorf("reloaded record %+v, want %+v", got, rec)
	}
}

func TestRecord_ReplacesPreviousForSamePath(t *testing.T) {
	s, _ := testStore(t)
	first := sampleRecord("/home/user/docs")
	second := first
	second.RemotePath = "docs/backup_docs_20260826T130000Z.tar.gz"
	second.StoredBytes = 2048

	if err := s.Record(first); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(second); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if got := s.All(); len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got, _ := s.Get("/home/user/docs"); got.RemotePath != second.RemotePath {
		t.Errorf("record not replaced: %+v", got)
	}
}

func TestLoad_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := Load(path, logging.ForTest(t))
	if err != nil {
		t.Fatalf("Load must tolerate corrupt state: %v", err)
	}
	if got := s.All(); len(got) != 0 {
		t.Errorf("expected empty store, got %d records", len(got))
	}

	// a fresh record must replace the corrupt file
	if err := s.Record(sampleRecord("/home/user/docs")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	reloaded, err := Load(path, logging.ForTest(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := reloaded.Get("/home/user/docs"); !ok {
		t.Error("record missing after recovering from corruption")
	}
}

func TestLoad_UnreadableFileStartsEmpty(t *testing.T) {
	// A directory at the state path makes os.ReadFile fail with something
	// other than ENOENT, like a permission error would.
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	s, err := Load(path, logging.ForTest(t))
	if err != nil {
		t.Fatalf("Load must tolerate an unreadable state file: %v", err)
	}
	if got := s.All(); len(got) != 0 {
		t.Errorf("expected empty store, got %d records", len(got))
	}
}

func TestAll_SortedBySourcePath(t *testing.T) {
	s, _ := testStore(t)
	for _, p := range []string{"/z", "/a", "/m"} {
		if err := s.Record(sampleRecord(p)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	got := s.All()
	want := []string{"/a", "/m", "/z"}
	for i, rec := range got {
		if rec.SourcePath != want[i] {
			t.Fatalf("All()[%d].SourcePath = %q, want %q", i, rec.SourcePath, want[i])
		}
	}
}

func TestForget(t *testing.T) {
	s, path := testStore(t)
	if err := s.Record(sampleRecord("/home/user/docs")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Forget("/home/user/docs"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, ok := s.Get("/home/user/docs"); ok {
		t.Error("record still present after Forget")
	}
	if err := s.Forget("/never/recorded"); err != nil {
		t.Errorf("Forget of unknown path: %v", err)
	}

	reloaded, err := Load(path, logging.ForTest(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.All(); len(got) != 0 {
		t.Errorf("Forget not persisted, %d records remain", len(got))
	}
}
