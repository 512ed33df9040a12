// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs work when files under a set of root directories
// change. Events are coalesced over a debounce window so the callback fires
// once with every path that changed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/parastep/parastep/pkg/fspath"
	"github.com/parastep/parastep/pkg/types"
)

const defaultDebounce = 300 * time.Millisecond

// defaultIgnores are matched against paths relative to their root and are
// always applied.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

var (
	// ErrInvalidWatchConfig is the sentinel wrapped by InvalidWatchConfigError.
	ErrInvalidWatchConfig = errors.New("invalid watch configuration")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watcher is already running")
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Roots are absolute directories watched recursively. Nested roots
		// are watched once.
		Roots []string

		// Patterns are doublestar globs, relative to the root, selecting the
		// files that trigger the callback. Empty means every file.
		Patterns []string

		// Ignore are extra doublestar globs merged with the default ignores.
		Ignore []string

		// Exclude is consulted with the absolute path of every event; true
		// drops the event. Used to ignore files the callback itself writes.
		Exclude func(path string) bool

		// Debounce is the quiet period after the last event. Zero or negative
		// uses the default.
		Debounce time.Duration

		// OnChange receives the sorted, deduplicated absolute paths that
		// changed. It never runs concurrently with itself.
		OnChange func(ctx context.Context, changed []string) error

		Logger *log.Logger
	}

	// InvalidWatchConfigError lists every invalid field of a Config.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}

	// Watcher monitors Roots and fires a debounced callback. Run may be
	// called once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		roots    []string
		ignores  []string
		logger   *log.Logger
		debounce time.Duration
		started  atomic.Bool
	}
)

// Error implements the error interface.
func (e *InvalidWatchConfigError) Error() string {
	return fmt.Sprintf("invalid watch configuration: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidWatchConfig followed by the field errors.
func (e *InvalidWatchConfigError) Unwrap() []error {
	return append([]error{ErrInvalidWatchConfig}, e.FieldErrors...)
}

// Validate checks roots and glob patterns and reports every problem found.
func (c Config) Validate() error {
	var errs []error
	if len(c.Roots) == 0 {
		errs = append(errs, errors.New("at least one root is required"))
	}
	for _, root := range c.Roots {
		p := types.FilesystemPath(root)
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("root: %w", err))
			continue
		}
		if !fspath.IsAbs(p) {
			errs = append(errs, fmt.Errorf("root %q is not absolute", root))
		}
	}
	for _, pat := range c.Patterns {
		if pat == "" || !doublestar.ValidatePattern(pat) {
			errs = append(errs, fmt.Errorf("invalid watch pattern %q", pat))
		}
	}
	for _, pat := range c.Ignore {
		if pat == "" || !doublestar.ValidatePattern(pat) {
			errs = append(errs, fmt.Errorf("invalid ignore pattern %q", pat))
		}
	}
	if len(errs) > 0 {
		return &InvalidWatchConfigError{FieldErrors: errs}
	}
	return nil
}

// New validates cfg and registers every non-ignored directory under its roots.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		roots:    collapseRoots(cfg.Roots),
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		logger:   logger,
		debounce: debounce,
	}

	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Roots returns the watched roots after nested ones were collapsed.
func (w *Watcher) Roots() []string { return slices.Clone(w.roots) }

// Run processes events until ctx is done. It returns nil on cancellation and
// an error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire runs on the timer goroutine. A busy callback reschedules it so
	// pending paths are not lost.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("previous run still in progress, rescheduling")
			mu.Lock()
			timer.Reset(w.debounce)
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 {
			return
		}

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("change handler failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("closing fsnotify watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			if !w.relevant(evt.Name) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			if fatalWatchError(err) {
				return fmt.Errorf("watch resources exhausted: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// fatalWatchError reports whether err is one of the platform's
// resource-exhaustion errors.
func fatalWatchError(err error) bool {
	return slices.ContainsFunc(fatalErrnos, func(target error) bool { return errors.Is(err, target) })
}

// relevant reports whether an event on path should schedule the callback.
func (w *Watcher) relevant(path string) bool {
	if w.cfg.Exclude != nil && w.cfg.Exclude(path) {
		return false
	}
	rel, ok := w.relative(path)
	if !ok || w.isIgnored(rel) {
		return false
	}
	return w.matchesPatterns(rel)
}

// relative returns path relative to the root containing it.
func (w *Watcher) relative(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !hasParentPrefix(rel) {
			return filepath.ToSlash(rel), true
		}
	}
	return "", false
}

func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			w.logger.Warn("skipping inaccessible path", "path", path, "err", walkErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(path); ok && rel != "." && (w.isIgnored(rel) || w.isIgnored(rel+"/")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %q: %w", root, err)
	}
	return nil
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil {
		w.logger.Warn("watching new directory", "path", path, "err", err)
	}
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) matchesPatterns(rel string) bool {
	return len(w.cfg.Patterns) == 0 || matchAny(w.cfg.Patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if doublestar.MatchUnvalidated(pat, rel) {
			return true
		}
	}
	return false
}

// collapseRoots cleans and deduplicates roots and drops any root nested in
// another one.
func collapseRoots(roots []string) []string {
	cleaned := make([]string, len(roots))
	for i, r := range roots {
		cleaned[i] = filepath.Clean(r)
	}
	slices.Sort(cleaned)
	cleaned = slices.Compact(cleaned)

	var out []string
	for _, r := range cleaned {
		nested := slices.ContainsFunc(out, func(parent string) bool {
			rel, err := filepath.Rel(parent, r)
			return err == nil && rel != ".." && !hasParentPrefix(rel)
		})
		if !nested {
			out = append(out, r)
		}
	}
	return out
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
