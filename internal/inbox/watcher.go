package inbox

import (
	"strings"

	"github.com/fsnotify/fsnotify"
)

// dirWatcher is a thin fsnotify wrapper over a single flat directory. Unlike
// a recursive source-tree watcher, the inbox directory never nests and
// batches already drain one at a time, so no debouncing is needed: every
// create/rename event just wakes the drain loop, which is idempotent to
// spurious wakeups (it no-ops when the directory is empty).
type dirWatcher struct {
	w *fsnotify.Watcher
}

// newDirWatcher watches dir non-recursively and returns a channel that
// receives a value whenever a *.gz file is created or moved into dir.
func newDirWatcher(dir string) (*dirWatcher, <-chan string, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, nil, err
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if !strings.HasSuffix(ev.Name, ".gz") {
					continue
				}
				select {
				case out <- ev.Name:
				default:
					// a drain is already pending, coalesce
				}
			case _, ok := <-fw.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return &dirWatcher{w: fw}, out, nil
}

func (d *dirWatcher) Close() error {
	return d.w.Close()
}
