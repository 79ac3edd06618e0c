package schedule

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of write events editors and scp
// produce when the bundle file is replaced.
const reloadDebounce = 500 * time.Millisecond

// Watcher reloads the store when the bundle file changes on disk. A load
// failure keeps the previous bundle active; the error is only logged.
type Watcher struct {
	store  *Store
	path   string
	logger *log.Logger
	fsw    *fsnotify.Watcher
	done   chan struct{}
}

func NewWatcher(store *Store, path string, logger *log.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace the file by rename, which drops
	// a watch registered on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		store:  store,
		path:   path,
		logger: logger,
		fsw:    fsw,
		done:   make(chan struct{}),
	}, nil
}

// Start begins the watch loop. It exits when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
	w.logger.Printf("schedule watcher started on %s", w.path)
}

// Stop closes the underlying watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	_ = w.fsw.Close()
	<-w.done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			pending = time.After(reloadDebounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("schedule watcher error: %v", err)

		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	b, err := Load(w.path)
	if err != nil {
		w.logger.Printf("schedule reload failed, keeping previous bundle: %v", err)
		return
	}
	w.store.Replace(b)
	w.logger.Printf("schedule bundle reloaded (%d rooms, version %d)", len(b.Rooms()), w.store.Version())
}
