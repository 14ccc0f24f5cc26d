package watch

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/tmartens/keepsake/internal/errors"
)

// Notifier delivers the paths of changed files. The orchestrator consumes
// this interface so tests can drive it without a real filesystem watcher.
type Notifier interface {
	// Events yields absolute paths of files that changed.
	Events() <-chan string
	// Errors yields watcher failures.
	Errors() <-chan error
	// Close shuts the notifier down and closes both channels.
	Close() error
}

// fsNotifier watches a set of directory trees with fsnotify. Each tree is
// watched recursively; directories created while watching are added as they
// appear, since inotify-style watches are per directory, not per tree.
type fsNotifier struct {
	watcher *fsnotify.Watcher
	events  chan string
	errs    chan error
	done    chan struct{}
}

// NewNotifier starts watching the given directory trees.
func NewNotifier(roots []string) (Notifier, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating filesystem watcher")
	}

	n := &fsNotifier{
		watcher: watcher,
		events:  make(chan string, 256),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	for _, root := range roots {
		if err := n.addRecursive(root); err != nil {
			watcher.Close()
			return nil, errors.Wrapf(err, "watching %s", root)
		}
	}

	go n.loop()
	return n, nil
}

func (n *fsNotifier) Events() <-chan string { return n.events }
func (n *fsNotifier) Errors() <-chan error  { return n.errs }

func (n *fsNotifier) Close() error {
	err := n.watcher.Close()
	<-n.done
	return err
}

func (n *fsNotifier) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// a subdirectory vanished mid-walk; keep going
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return n.watcher.Add(path)
	})
}

func (n *fsNotifier) loop() {
	defer close(n.done)
	defer close(n.events)
	defer close(n.errs)

	for {
		select {
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := n.addRecursive(event.Name); err != nil {
						n.reportError(err)
					}
				}
			}
			if event.Op.Has(fsnotify.Chmod) {
				continue
			}
			select {
			case n.events <- event.Name:
			default:
				// the orchestrator coalesces anyway; dropping under
				// pressure only shortens the burst
			}
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.reportError(err)
		}
	}
}

func (n *fsNotifier) reportError(err error) {
	select {
	case n.errs <- err:
	default:
	}
}
