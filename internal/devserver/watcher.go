package devserver

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fileEvent is one debounced batch of on-disk changes (grounded on
// bennypowers-cem/serve's fileWatcher: a single fsnotify.Watcher feeding a
// debounce timer so a save-triggered burst of CREATE/WRITE/RENAME events -
// editors routinely write a temp file then rename it over the original -
// collapses into one rebuild instead of several).
type fileEvent struct {
	Paths []string
}

// ignoredDirs are never descended into or watched; node_modules churns
// constantly during an install and never contains source the bundler
// itself watches, and .git's object writes would otherwise fire on every
// commit made in another terminal.
var ignoredDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
}

type watcher struct {
	fsw      *fsnotify.Watcher
	events   chan fileEvent
	done     chan struct{}
	debounce time.Duration
	outdir   string
}

func newWatcher(debounce time.Duration, outdir string) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		fsw:      fsw,
		events:   make(chan fileEvent, 8),
		done:     make(chan struct{}),
		debounce: debounce,
		outdir:   outdir,
	}
	go w.run()
	return w, nil
}

// addRoot registers root and every non-ignored subdirectory beneath it with
// the underlying fsnotify.Watcher. fsnotify watches directories, not files,
// and doesn't recurse on its own, so new subdirectories created after a
// build won't be picked up until the next addRoot call.
func (w *watcher) addRoot(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if ignoredDirs[base] || (w.outdir != "" && path == w.outdir) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *watcher) Events() <-chan fileEvent { return w.events }

func (w *watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *watcher) run() {
	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	flush := func() {
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		pending = make(map[string]bool)
		select {
		case w.events <- fileEvent{Paths: paths}:
		default:
		}
	}

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ignoredDirs[filepath.Base(filepath.Dir(ev.Name))] {
				continue
			}
			pending[ev.Name] = true
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRoot(ev.Name)
				}
			}
			if armed {
				if !timer.Stop() {
					<-timer.C
				}
			}
			timer.Reset(w.debounce)
			armed = true
		case <-timer.C:
			armed = false
			flush()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.done:
			if armed {
				timer.Stop()
			}
			return
		}
	}
}
