// Package watch turns filesystem activity into backups. Each watched
// directory gets its own debounce loop so a noisy target never delays the
// others, and at most one backup per directory runs at a time.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tmartens/keepsake/internal/errors"
	"github.com/tmartens/keepsake/internal/state"
)

// BackupFunc runs one backup cycle for a watched directory.
type BackupFunc func(ctx context.Context, path string) error

// Options configures an Orchestrator.
type Options struct {
	// Targets are the directories to watch, resolved to absolute paths.
	Targets []string
	// Debounce is how long a directory must stay quiet before a backup runs.
	Debounce time.Duration
	// Backup executes one backup cycle.
	Backup BackupFunc
	// State is consulted at startup to catch changes made while not running.
	State *state.Store
	// Notifier overrides the fsnotify-based default. Used by tests.
	Notifier Notifier

	Logger *slog.Logger
}

// Orchestrator owns one watch loop per target directory.
type Orchestrator struct {
	targets  []string
	debounce time.Duration
	backup   BackupFunc
	store    *state.Store
	notifier Notifier
	logger   *slog.Logger

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	kicks    map[string]chan struct{}
	stopOnce sync.Once
}

// New validates opts and builds an Orchestrator. Start must be called to
// begin watching.
func New(opts Options) (*Orchestrator, error) {
	if len(opts.Targets) == 0 {
		return nil, errors.Configuration("no directories to watch; add targets to the config")
	}
	if opts.Backup == nil {
		return nil, errors.Configuration("no backup function configured")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	targets := make([]string, 0, len(opts.Targets))
	for _, t := range opts.Targets {
		abs, err := filepath.Abs(t)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving %s", t)
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return nil, errors.NotFound("watch target %s is not a directory", abs)
		}
		targets = append(targets, abs)
	}
	// longest first so nested targets route to the deepest owner
	sort.Slice(targets, func(i, j int) bool { return len(targets[i]) > len(targets[j]) })

	return &Orchestrator{
		targets:  targets,
		debounce: opts.Debounce,
		backup:   opts.Backup,
		store:    opts.State,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		kicks:    make(map[string]chan struct{}, len(targets)),
	}, nil
}

// Start spawns the watch loops and the event dispatcher, then reconciles
// against the state store so changes made while the watcher was down are
// backed up without waiting for a new event.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.notifier == nil {
		n, err := NewNotifier(o.targets)
		if err != nil {
			return err
		}
		o.notifier = n
	}

	ctx, o.cancel = context.WithCancel(ctx)

	for _, target := range o.targets {
		kick := make(chan struct{}, 1)
		o.kicks[target] = kick
		o.wg.Add(1)
		go o.run(ctx, target, kick)
	}

	o.wg.Add(1)
	go o.dispatch(ctx)

	o.reconcile()
	return nil
}

// Stop cancels all loops, waits for in-flight backups, and closes the
// filesystem subscription.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		if o.cancel != nil {
			o.cancel()
		}
		if o.notifier != nil {
			o.notifier.Close()
		}
		o.wg.Wait()
	})
}

// reconcile kicks every target that was never backed up or whose tree
// changed since its last record.
func (o *Orchestrator) reconcile() {
	if o.store == nil {
		return
	}
	for _, target := range o.targets {
		rec, ok := o.store.Get(target)
		if !ok {
			o.logger.Info("never backed up, scheduling initial backup", "path", target)
			o.kick(target)
			continue
		}
		if treeModTime(target).After(rec.CreatedAt) {
			o.logger.Info("changed while not watching, scheduling backup", "path", target)
			o.kick(target)
		}
	}
}

// dispatch routes notifier events to the owning target's loop.
func (o *Orchestrator) dispatch(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-o.notifier.Events():
			if !ok {
				return
			}
			if target := o.owner(path); target != "" {
				o.kick(target)
			}
		case err, ok := <-o.notifier.Errors():
			if !ok {
				return
			}
			o.logger.Warn("filesystem watcher error", "error", err)
		}
	}
}

// owner returns the watched target containing path. Targets are sorted
// longest first, so the deepest match wins.
func (o *Orchestrator) owner(path string) string {
	for _, target := range o.targets {
		if path == target || strings.HasPrefix(path, target+string(os.PathSeparator)) {
			return target
		}
	}
	return ""
}

// kick signals the target's loop. The channel holds one slot; a kick during
// an undelivered kick coalesces with it.
func (o *Orchestrator) kick(target string) {
	select {
	case o.kicks[target] <- struct{}{}:
	default:
	}
}

// run is the per-target state machine: idle, waiting out the debounce, or
// backing up. Events during a backup set a pending flag that drives exactly
// one follow-up cycle, however many events arrived.
func (o *Orchestrator) run(ctx context.Context, target string, kick <-chan struct{}) {
	defer o.wg.Done()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		done    chan error
		pending bool
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	armTimer := func() {
		stopTimer()
		timer = time.NewTimer(o.debounce)
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			if done != nil {
				<-done
			}
			return

		case <-kick:
			if done != nil {
				pending = true
				continue
			}
			armTimer()

		case <-timerC:
			timer, timerC = nil, nil
			done = make(chan error, 1)
			o.logger.Info("starting backup", "path", target)
			go func() { done <- o.backup(ctx, target) }()

		case err := <-done:
			done = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("backup failed", "path", target, "error", err)
			}
			if pending {
				pending = false
				armTimer()
			}
		}
	}
}

// treeModTime returns the newest modification time in the tree.
func treeModTime(root string) time.Time {
	var newest time.Time
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := d.Info(); err == nil && info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest
}
