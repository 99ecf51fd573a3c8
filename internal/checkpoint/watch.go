package checkpoint

import (
	"github.com/fsnotify/fsnotify"

	"github.com/schmitthub/clawker-bridge/internal/logger"
)

// Watcher logs a diagnostic line whenever a file under the project root
// changes outside of a tracked agent write: useful for noticing an
// agent's subprocess children, or a human editing the tree concurrently,
// touching files the turn's write-tracking set never saw.
//
// This is pure diagnostics, never consulted for correctness.
type Watcher struct {
	w *fsnotify.Watcher
}

// WatchProject starts watching root (non-recursively: only root itself is
// added, so changes inside subdirectories are not seen) and logs every
// event it sees. Tracked is
// consulted only to avoid double-logging a write the supervisor's own
// file-tool emulation already recorded.
func WatchProject(root string, tracked func(path string) bool) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(root); err != nil {
		w.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if tracked != nil && tracked(ev.Name) {
					continue
				}
				logger.Log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("checkpoint: untracked project change")
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Log.Warn().Err(err).Msg("checkpoint: project watch error")
			}
		}
	}()

	return &Watcher{w: w}, nil
}

// Close stops the watcher.
func (pw *Watcher) Close() error {
	if pw == nil || pw.w == nil {
		return nil
	}
	return pw.w.Close()
}
