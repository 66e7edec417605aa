package registry

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits after the last write to a
// file before reloading it, coalescing a burst of writes into one reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger overrides the watcher's logger.
func WithLogger(l *log.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithOnReload sets a callback invoked after every (re)load attempt.
func WithOnReload(fn func(name string, err error)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// Watcher hot-reloads the native plugin directory: a new or rewritten
// shared library is loaded and swapped into the registry; a removed one is
// unregistered under its file name without the extension. When that differs
// from the name the plugin reports through VTable.Name, the registry entry
// is left in place. Adapted from the teacher's dynamic.PluginWatcher, narrowed
// to a single directory and to NativeLoader's shared-library scan instead
// of source-file recompilation.
type Watcher struct {
	loader   *NativeLoader
	registry *Registry
	debounce time.Duration
	logger   *log.Logger
	onReload func(name string, err error)

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher builds a Watcher over loader's directory, feeding the given
// registry.
func NewWatcher(loader *NativeLoader, reg *Registry, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		loader:   loader,
		registry: reg,
		debounce: 500 * time.Millisecond,
		logger:   log.New(os.Stderr, "[plugin-watcher] ", log.LstdFlags),
		done:     make(chan struct{}),
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching the plugin directory. Existing libraries are
// loaded synchronously before Start returns.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.loader.Dir, 0o755); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsWatcher = fsw
	if err := fsw.Add(w.loader.Dir); err != nil {
		_ = fsw.Close()
		return err
	}

	plugins, errs := w.loader.LoadAll()
	for _, err := range errs {
		w.logger.Printf("initial load error: %v", err)
	}
	for _, p := range plugins {
		w.registry.Replace(p)
		w.notify(p.Name, nil)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop terminates the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !isSharedLibrary(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.mu.Lock()
				w.pending[event.Name] = time.Now()
				w.mu.Unlock()
			}
			if event.Op&fsnotify.Remove != 0 {
				w.handleRemove(event.Name)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("watcher error: %v", err)
		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *Watcher) processPending() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.handleChange(path)
	}
}

func (w *Watcher) handleChange(path string) {
	p, err := w.loader.LoadFile(path)
	if err != nil {
		w.logger.Printf("failed to load %s: %v", path, err)
		name := pluginFileToName(path)
		w.notify(name, err)
		return
	}
	w.registry.Replace(p)
	w.logger.Printf("loaded plugin %q from %s", p.Name, path)
	w.notify(p.Name, nil)
}

func (w *Watcher) handleRemove(path string) {
	name := pluginFileToName(path)
	if err := w.registry.Unregister(name); err != nil {
		w.logger.Printf("failed to unregister %s: %v", name, err)
		return
	}
	w.logger.Printf("unregistered plugin %q (file removed)", name)
}

func (w *Watcher) notify(name string, err error) {
	if w.onReload != nil {
		w.onReload(name, err)
	}
}

func pluginFileToName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
