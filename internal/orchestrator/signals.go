package orchestrator

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// SignalWatcher drives the pause controller from signal files dropped into
// the working directory's .pmcore/signals directory. Creating "pause"
// pauses dispatch, "resume" resumes it, and "cancel" stops the run.
type SignalWatcher struct {
	signalsDir string
	pause      *PauseController
	emitter    *EventEmitter

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewSignalWatcher creates a watcher over workDir/.pmcore/signals.
// A nil watcher (with no error) is returned when the platform does not
// support file watching; the run simply cannot be signalled externally.
func NewSignalWatcher(workDir string, pause *PauseController, emitter *EventEmitter) (*SignalWatcher, error) {
	signalsDir := filepath.Join(workDir, ".pmcore", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		return nil, nil
	}

	sw := &SignalWatcher{
		signalsDir: signalsDir,
		pause:      pause,
		emitter:    emitter,
		watcher:    watcher,
		done:       make(chan struct{}),
	}
	go sw.watch()
	return sw, nil
}

// watch monitors the signals directory for pause/resume/cancel files.
func (sw *SignalWatcher) watch() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			switch filepath.Base(event.Name) {
			case "pause":
				sw.pause.Pause()
				sw.emit(Event{Type: EventPaused, Message: "pause signal received"})
			case "resume":
				sw.pause.Resume()
				sw.emit(Event{Type: EventResumed, Message: "resume signal received"})
				os.Remove(filepath.Join(sw.signalsDir, "pause"))
				os.Remove(filepath.Join(sw.signalsDir, "resume"))
			case "cancel":
				sw.pause.Stop()
			}
		case <-sw.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

func (sw *SignalWatcher) emit(e Event) {
	if sw.emitter != nil {
		sw.emitter.Emit(e)
	}
}

// Close stops watching. Safe to call on a nil watcher, and more than once.
func (sw *SignalWatcher) Close() {
	if sw == nil || sw.watcher == nil {
		return
	}
	sw.closeOnce.Do(func() {
		close(sw.done)
		sw.watcher.Close()
		os.Remove(filepath.Join(sw.signalsDir, "cancel"))
	})
}
