package topology

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/testbench-tools/taco/internal/logging"
)

// debounce collapses the burst of events editors produce for one save.
const debounce = 100 * time.Millisecond

// Watcher signals when a topology file changes on disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	changes chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
	once    sync.Once
	logger  *logging.Logger
}

// Watch starts watching the file at path. The containing directory is
// watched so that files replaced by rename are still seen. Watch errors are
// logged to logger, which may be nil.
func Watch(path string, logger *logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	w := newWatcher(abs, logger)
	w.watcher = fw
	go w.loop(fw.Events, fw.Errors)
	return w, nil
}

func newWatcher(path string, logger *logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Watcher{
		path:    path,
		changes: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		logger:  logger.WithComponent("topology-watch").With("path", path),
	}
}

// Changes receives a value after the file has been written, created or
// replaced. Signals not yet received are coalesced.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) loop(events <-chan fsnotify.Event, errs <-chan error) {
	defer close(w.done)
	timer := time.NewTimer(0)
	<-timer.C // drain initial timer
	pending := false

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = true
			timer.Reset(debounce)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			select {
			case w.changes <- struct{}{}:
			default:
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logger.Warn("topology watch error", "error", err)
		}
	}
}
