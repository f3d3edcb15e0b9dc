package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
)

// Watcher watches a directory tree with fsnotify. New directories are added
// as they appear; files already inside them are reported as created.
type Watcher struct {
	root      string
	opts      Options
	logger    *slog.Logger
	fs        *fsnotify.Watcher
	debouncer *Debouncer

	stopOnce sync.Once
	stopErr  error
}

// New starts watching root and every directory below it that Skip accepts.
func New(root string, opts Options) (*Watcher, error) {
	opts = opts.withDefaults()
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, cserrors.New(cserrors.ErrCodeInvalidPath, "resolve watch root", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, cserrors.InternalError("create file watcher", err)
	}

	logger := opts.Logger.With("component", "watcher")
	w := &Watcher{
		root:      abs,
		opts:      opts,
		logger:    logger,
		fs:        fsw,
		debouncer: NewDebouncer(opts.Debounce, opts.BufferSize, logger),
	}
	if err := w.addTree(abs, false); err != nil {
		_ = fsw.Close()
		return nil, cserrors.IOError("watch directory", err).WithDetail("path", abs)
	}
	return w, nil
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Events delivers debounced batches. It is closed by Stop.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Run processes file system events until ctx is done or Stop is called.
// Watch errors are logged and do not end the loop.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.Stop() }()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// Stop releases the fsnotify watcher and closes Events.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		w.stopErr = w.fs.Close()
		w.debouncer.Stop()
	})
	return w.stopErr
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	if op == OpDelete {
		// The path is gone, so only exclusion rules can be checked. Removing
		// an untracked path is harmless downstream.
		if w.opts.Skip(ev.Name, true) {
			return
		}
		w.debouncer.Add(FileEvent{Path: ev.Name, Operation: OpDelete, Timestamp: time.Now()})
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if op == OpCreate {
			if err := w.addTree(ev.Name, true); err != nil {
				w.logger.Warn("watch_add_failed",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
		}
		return
	}
	if w.opts.Skip(ev.Name, false) {
		return
	}
	w.debouncer.Add(FileEvent{Path: ev.Name, Operation: op, Timestamp: time.Now()})
}

// addTree watches dir and its subdirectories. With announce set, files found
// on the way are reported as created.
func (w *Watcher) addTree(dir string, announce bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if p != w.root && w.opts.Skip(p, true) {
				return filepath.SkipDir
			}
			if err := w.fs.Add(p); err != nil {
				if p == dir && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				w.logger.Debug("watch_add_skipped", slog.String("path", p), slog.String("error", err.Error()))
			}
			return nil
		}
		if announce && d.Type().IsRegular() && !w.opts.Skip(p, false) {
			w.debouncer.Add(FileEvent{Path: p, Operation: OpCreate, Timestamp: time.Now()})
		}
		return nil
	})
}
