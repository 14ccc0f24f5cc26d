package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// waitEvent waits for an event matching path, draining unrelated ones.
func waitEvent(t *testing.T, n Notifier, path string, timeout time.Duration) bool {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case got, ok := <-n.Events():
			if !ok {
				return false
			}
			if got == path {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

func TestNotifier_ReportsFileChanges(t *testing.T) {
	root := t.TempDir()
	n, err := NewNotifier([]string{root})
	require.NoError(t, err)
	defer n.Close()

	path := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.True(t, waitEvent(t, n, path, 2*time.Second),
		"no event for %s", path)
}

func TestNotifier_WatchesDirectoriesCreatedLater(t *testing.T) {
	root := t.TempDir()
	n, err := NewNotifier([]string{root})
	require.NoError(t, err)
	defer n.Close()

	sub := filepath.Join(root, "newdir")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.True(t, waitEvent(t, n, sub, 2*time.Second), "no event for the new directory")

	// the new directory must itself be watched now; creation events can
	// race with the recursive add, so retry briefly
	path := filepath.Join(sub, "inner.txt")
	seen := false
	for i := 0; i < 20 && !seen; i++ {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		seen = waitEvent(t, n, path, 100*time.Millisecond)
	}
	require.True(t, seen, "no event for a file in the new directory")
}

func TestNotifier_MissingRootFails(t *testing.T) {
	_, err := NewNotifier([]string{filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}

func TestNotifier_CloseEndsStreams(t *testing.T) {
	n, err := NewNotifier([]string{t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, n.Close())

	select {
	case _, ok := <-n.Events():
		require.False(t, ok, "events channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("events channel not closed after Close")
	}
}
