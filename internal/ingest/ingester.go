package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/wakaru/internal/knowledge"
	"github.com/hyperjump/wakaru/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// Ingester watches note directories and mirrors matching files into the
// knowledge store. Edits are debounced so a burst of writes from an editor
// produces one re-ingest.
type Ingester struct {
	store      *knowledge.Store
	roots      []string
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
}

// NewIngester creates an ingester for the given roots. extensions filter
// which files are ingested (empty matches all).
func NewIngester(store *knowledge.Store, roots, extensions []string, recursive bool, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		store:       store,
		roots:       roots,
		extensions:  extensions,
		recursive:   recursive,
		debounce:    defaultDebounce,
		logger:      logger,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Missing roots are created so a fresh deployment can drop files in later.
func (in *Ingester) Start(ctx context.Context) error {
	in.mu.Lock()
	if in.started {
		in.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		in.mu.Unlock()
		return err
	}
	in.watcher = watcher
	in.started = true
	for _, root := range in.roots {
		if err := in.addRootLocked(root); err != nil {
			_ = in.watcher.Close()
			in.watcher = nil
			in.started = false
			in.mu.Unlock()
			return err
		}
	}
	in.mu.Unlock()

	in.logger.Info("ingest watching directories",
		zap.Strings("roots", in.roots),
		zap.Strings("extensions", in.extensions))
	go in.run(ctx)
	return nil
}

func (in *Ingester) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			in.handleEvent(ctx, ev)
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				in.logger.Debug("ingest watch error", zap.Error(err))
			}
		}
	}
}

func (in *Ingester) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			in.handleNewDirectory(ctx, path)
			return
		}
		if in.matchExtension(path) {
			in.debounceIngest(ctx, path)
		}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		in.cancelDebounce(path)
		if in.matchExtension(path) {
			in.removeFile(ctx, path)
		} else {
			// The path is gone, so it cannot be stat'd: treat anything that
			// does not look like an ingested file as a possible directory and
			// drop the entries that were ingested from under it.
			in.removeSubtree(ctx, path)
		}
	}
}

// handleNewDirectory watches a directory that appeared under a root and
// ingests any files already inside it.
func (in *Ingester) handleNewDirectory(ctx context.Context, dir string) {
	in.mu.Lock()
	recursive := in.recursive
	watcher := in.watcher
	in.mu.Unlock()
	if watcher == nil || !recursive {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				in.logger.Debug("ingest failed to watch directory", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
	in.syncDirectory(ctx, dir)
}

func (in *Ingester) debounceIngest(ctx context.Context, path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.debounceMap[path]; ok {
		t.Stop()
	}
	in.debounceMap[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.debounceMap, path)
		in.mu.Unlock()
		in.ingestFile(ctx, path)
	})
}

func (in *Ingester) cancelDebounce(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.debounceMap[path]; ok {
		t.Stop()
		delete(in.debounceMap, path)
	}
}

// ingestFile reads path and adds or replaces its knowledge entry. Files with
// no usable text are skipped rather than stored as empty entries.
func (in *Ingester) ingestFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		in.logger.Warn("ingest read failed", zap.String("path", path), zap.Error(err))
		return
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		in.logger.Debug("ingest skipping empty file", zap.String("path", path))
		return
	}
	entry, err := in.store.Add(ctx, &models.EntryInput{
		ID:      EntryID(path),
		Title:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Content: content,
		Source:  "file",
		Metadata: map[string]interface{}{
			"path": filepath.Clean(path),
		},
	})
	if err != nil {
		in.logger.Warn("ingest add failed", zap.String("path", path), zap.Error(err))
		return
	}
	in.logger.Debug("ingested file", zap.String("path", path), zap.String("id", entry.ID))
}

// removeSubtree deletes the entries of files ingested from under dir. Fired
// on directory removes and renames, which never produce per-file events.
func (in *Ingester) removeSubtree(ctx context.Context, dir string) {
	entries, err := in.store.GetAll(ctx)
	if err != nil {
		in.logger.Warn("ingest subtree cleanup failed", zap.String("path", dir), zap.Error(err))
		return
	}
	prefix := filepath.Clean(dir) + string(filepath.Separator)
	for _, e := range entries {
		if e.Source != "file" {
			continue
		}
		p, _ := e.Metadata["path"].(string)
		if p == "" || !strings.HasPrefix(p, prefix) {
			continue
		}
		if _, err := in.store.Delete(ctx, e.ID); err != nil {
			in.logger.Warn("ingest remove failed", zap.String("path", p), zap.Error(err))
			continue
		}
		in.logger.Debug("removed ingested file", zap.String("path", p))
	}
}

func (in *Ingester) removeFile(ctx context.Context, path string) {
	found, err := in.store.Delete(ctx, EntryID(path))
	if err != nil {
		in.logger.Warn("ingest remove failed", zap.String("path", path), zap.Error(err))
		return
	}
	if found {
		in.logger.Debug("removed ingested file", zap.String("path", path))
	}
}

func (in *Ingester) matchExtension(path string) bool {
	if len(in.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range in.extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (in *Ingester) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	if !in.recursive {
		return in.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return in.watcher.Add(path)
		}
		return nil
	})
}

// SyncExisting ingests all matching files already present under the watched
// roots. Call after Start so files predating the watcher are not missed.
func (in *Ingester) SyncExisting(ctx context.Context) {
	in.mu.Lock()
	roots := append([]string(nil), in.roots...)
	in.mu.Unlock()
	for _, root := range roots {
		in.syncDirectory(ctx, root)
	}
}

func (in *Ingester) syncDirectory(ctx context.Context, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if !in.recursive && path != filepath.Clean(root) {
				return fs.SkipDir
			}
			return nil
		}
		if in.matchExtension(path) {
			in.ingestFile(ctx, path)
		}
		return nil
	})
}

// Stop stops watching and cancels pending debounced ingests.
func (in *Ingester) Stop() {
	in.mu.Lock()
	if !in.started || in.watcher == nil {
		in.mu.Unlock()
		return
	}
	for path, t := range in.debounceMap {
		t.Stop()
		delete(in.debounceMap, path)
	}
	_ = in.watcher.Close()
	in.watcher = nil
	in.started = false
	in.mu.Unlock()
	in.stopOnce.Do(func() { close(in.done) })
}
