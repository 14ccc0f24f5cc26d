package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tmartens/keepsake/internal/errors"
)

// stubBackend is a minimal backend used to observe registry behavior.
type stubBackend struct {
	opts Options
}

func (s *stubBackend) Upload(context.Context, string, string) error   { return nil }
func (s *stubBackend) Download(context.Context, string, string) error { return nil }
func (s *stubBackend) Exists(context.Context, string) (bool, error)   { return false, nil }
func (s *stubBackend) Delete(context.Context, string) error           { return nil }
func (s *stubBackend) SupportsSharing() bool                          { return false }
func (s *stubBackend) ShareLink(context.Context, string, time.Duration) (string, error) {
	return "", errUnsupportedShare("stub")
}
func (s *stubBackend) Name() string { return "stub" }
func (s *stubBackend) Close() error { return nil }

func TestRegistry_OpenCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register("MyStore", func(_ context.Context, opts Options) (Backend, error) {
		return &stubBackend{opts: opts}, nil
	})

	for _, name := range []string{"mystore", "MYSTORE", "MyStore"} {
		b, err := r.Open(context.Background(), name, Options{"k": "v"})
		if err != nil {
			t.Fatalf("Open(%q) error = %v", name, err)
		}
		if b.Name() != "stub" {
			t.Errorf("Open(%q) returned wrong backend", name)
		}
	}
}

func TestRegistry_UnknownName(t *testing.T) {
	r := NewRegistry()
	r.Register("local", OpenLocal)
	r.Register("s3", OpenS3)

	_, err := r.Open(context.Background(), "tape", nil)
	if !errors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	// The valid set must be listed for the user.
	msg := err.Error()
	if !strings.Contains(msg, "local") || !strings.Contains(msg, "s3") {
		t.Errorf("error does not list valid backends: %q", msg)
	}
}

func TestRegistry_OptionsPassedThrough(t *testing.T) {
	r := NewRegistry()
	var got Options
	r.Register("probe", func(_ context.Context, opts Options) (Backend, error) {
		got = opts
		return &stubBackend{}, nil
	})

	want := Options{"bucket": "b", "region": "r"}
	if _, err := r.Open(context.Background(), "probe", want); err != nil {
		t.Fatal(err)
	}
	if got["bucket"] != "b" || got["region"] != "r" {
		t.Errorf("options not passed through: %v", got)
	}
}

func TestDefaultRegistry_Names(t *testing.T) {
	names := DefaultRegistry().Names()
	want := []string{"azure", "dropbox", "ftp", "gcs", "gdrive", "git", "local", "s3", "sftp"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
}

func TestOptions_Require(t *testing.T) {
	tests := []struct {
		name        string
		opts        Options
		keys        []string
		wantErr     bool
		wantMention []string
	}{
		{
			name: "all present",
			opts: Options{"bucket": "b", "region": "r"},
			keys: []string{"bucket", "region"},
		},
		{
			name:        "one missing",
			opts:        Options{"bucket": "b"},
			keys:        []string{"bucket", "region"},
			wantErr:     true,
			wantMention: []string{"region"},
		},
		{
			name:        "all missing named at once",
			opts:        Options{},
			keys:        []string{"bucket", "region", "access_key_id"},
			wantErr:     true,
			wantMention: []string{"access_key_id", "bucket", "region"},
		},
		{
			name:        "empty value counts as missing",
			opts:        Options{"bucket": ""},
			keys:        []string{"bucket"},
			wantErr:     true,
			wantMention: []string{"bucket"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Require(tt.keys...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Require() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, errors.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
			for _, key := range tt.wantMention {
				if !strings.Contains(err.Error(), key) {
					t.Errorf("error %q does not name missing key %q", err.Error(), key)
				}
			}
		})
	}
}
