// Package watch registers files dropped into a directory as kbase file items.
//
// The watcher records metadata only: the file stays where it is and its
// absolute path becomes the item's storage path. Modified files that were
// already processed are reset to pending so the pipeline picks them up again.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
	"github.com/custodia-labs/kbase/internal/normalisers"
)

// ErrClosed is returned when the watcher has been closed.
var ErrClosed = errors.New("watcher is closed")

// Op describes what the watcher did with a filesystem event.
type Op string

const (
	// OpRegistered means a new file item was created.
	OpRegistered Op = "registered"

	// OpRequeued means a known item was reset to pending after a write.
	OpRequeued Op = "requeued"

	// OpRemoved means a known file disappeared. The item is kept.
	OpRemoved Op = "removed"
)

// Event reports one handled filesystem change.
type Event struct {
	Op   Op
	Path string
	Ref  domain.ContentRef
}

// Watcher turns files under a root directory into file content items.
type Watcher struct {
	root    string
	content driving.ContentService
	newName func(ext string) string

	mu      sync.Mutex
	known   map[string]domain.ContentRef
	fsw     *fsnotify.Watcher
	closed  bool
	watched bool
}

// New creates a watcher for root that registers items through content.
func New(root string, content driving.ContentService) *Watcher {
	return &Watcher{
		root:    root,
		content: content,
		newName: func(ext string) string { return uuid.NewString() + ext },
		known:   make(map[string]domain.ContentRef),
	}
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Seed loads existing file items so their paths are not registered twice.
func (w *Watcher) Seed(ctx context.Context) error {
	items, err := w.content.List(ctx, domain.KindFile)
	if err != nil {
		return fmt.Errorf("listing file items: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range items {
		if items[i].File == nil || items[i].File.StoragePath == "" {
			continue
		}
		w.known[filepath.Clean(items[i].File.StoragePath)] = items[i].Ref()
	}
	logger.Debug("Seeded watcher with %d known files", len(w.known))
	return nil
}

// Scan registers every visible file under root that is not yet known.
// It returns the number of items created.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	root, err := w.absRoot()
	if err != nil {
		return 0, err
	}

	created := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ev, err := w.register(ctx, path)
		if err != nil {
			logger.Warn("skipping %s: %v", path, err)
			return nil
		}
		if ev != nil {
			created++
		}
		return nil
	})
	if err != nil {
		return created, fmt.Errorf("scanning %s: %w", root, err)
	}
	return created, nil
}

// Watch starts watching root and its subdirectories.
// The returned channel is closed when ctx is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, error) {
	root, err := w.absRoot()
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	if w.watched {
		w.mu.Unlock()
		return nil, errors.New("watcher already started")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w.fsw = fsw
	w.watched = true
	w.mu.Unlock()

	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}

	events := make(chan Event, 16)
	go w.loop(ctx, fsw, events)
	return events, nil
}

// Run seeds, scans and then watches until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Seed(ctx); err != nil {
		return err
	}
	n, err := w.Scan(ctx)
	if err != nil {
		return err
	}
	logger.Info("Registered %d existing files under %s", n, w.root)

	events, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	for ev := range events {
		logger.Info("%s %s (%s)", ev.Op, ev.Path, ev.Ref)
	}
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Event) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			fsw.Close()
			return
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error: %v", err)
		case fsEvent, ok := <-fsw.Events:
			if !ok {
				return
			}
			ev, err := w.handleFsEvent(ctx, fsEvent)
			if err != nil {
				logger.Warn("handling %s: %v", fsEvent.Name, err)
				continue
			}
			if ev == nil {
				continue
			}
			select {
			case out <- *ev:
			case <-ctx.Done():
				fsw.Close()
				return
			}
		}
	}
}

// handleFsEvent maps one fsnotify event onto the content service.
func (w *Watcher) handleFsEvent(ctx context.Context, event fsnotify.Event) (*Event, error) {
	path := filepath.Clean(event.Name)
	if isHidden(filepath.Base(path)) {
		return nil, nil
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return nil, nil
		}
		if info.IsDir() {
			return nil, w.addTree(path)
		}
		return w.register(ctx, path)

	case event.Has(fsnotify.Write):
		return w.requeue(ctx, path)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.mu.Lock()
		ref, ok := w.known[path]
		delete(w.known, path)
		w.mu.Unlock()
		if !ok {
			return nil, nil
		}
		return &Event{Op: OpRemoved, Path: path, Ref: ref}, nil
	}
	return nil, nil
}

// register creates a file item for path unless it is already known.
func (w *Watcher) register(ctx context.Context, path string) (*Event, error) {
	path = filepath.Clean(path)

	w.mu.Lock()
	_, seen := w.known[path]
	w.mu.Unlock()
	if seen {
		return nil, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil
	}
	if info.Size() == 0 {
		// Editors create empty files before writing; the write event registers them.
		return nil, nil
	}

	name := filepath.Base(path)
	item, err := w.content.CreateFile(ctx, domain.NewFile{
		Filename:     w.newName(strings.ToLower(filepath.Ext(name))),
		OriginalName: name,
		Size:         info.Size(),
		MIMEType:     normalisers.MIMETypeFor(name),
		StoragePath:  path,
	})
	if err != nil {
		return nil, err
	}

	ref := item.Ref()
	w.mu.Lock()
	w.known[path] = ref
	w.mu.Unlock()
	return &Event{Op: OpRegistered, Path: path, Ref: ref}, nil
}

// requeue resets a finished item after its file changed, or registers an unknown one.
func (w *Watcher) requeue(ctx context.Context, path string) (*Event, error) {
	w.mu.Lock()
	ref, ok := w.known[path]
	w.mu.Unlock()
	if !ok {
		return w.register(ctx, path)
	}

	item, err := w.content.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !item.Status.IsTerminal() {
		return nil, nil
	}
	if _, err := w.content.ResetToPending(ctx, ref); err != nil {
		return nil, err
	}
	return &Event{Op: OpRequeued, Path: path, Ref: ref}, nil
}

// addTree watches dir and every visible directory below it.
func (w *Watcher) addTree(dir string) error {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return ErrClosed
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) absRoot() (string, error) {
	root, err := filepath.Abs(w.root)
	if err != nil {
		return "", fmt.Errorf("root path error: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root path error: %s is not a directory", root)
	}
	return root, nil
}

// isHidden reports whether a path element starts with a dot.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
