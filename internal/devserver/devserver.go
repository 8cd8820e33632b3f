// Package devserver implements spec §6's hot-reload dispatch layer: a thin
// wrapper that re-invokes the bundler's Build on every watcher notification
// and pushes the resulting diff to every connected browser client over a
// websocket, grounded on bennypowers-cem/serve (its fileWatcher debounce
// loop and its websocket connection manager, neither of which the original
// bundler's own source material carries - it predates dev-server mode).
//
// The dispatch is the explicit state machine spec §9's Design Notes call
// for: Idle -> Building -> {Success -> Idle | Failed -> Idle}, with watcher
// events queued between transitions rather than handled through callback
// chains that implicitly capture build state.
package devserver

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/ruidosujeira/kona/internal/bundler"
	"github.com/ruidosujeira/kona/internal/bundlerror"
	"github.com/ruidosujeira/kona/internal/config"
	"github.com/ruidosujeira/kona/internal/emitter"
	"github.com/ruidosujeira/kona/internal/fs"
)

// State is the dispatch loop's current position in the Idle/Building state
// machine (spec §9).
type State uint8

const (
	StateIdle State = iota
	StateBuilding
)

// Options configures one Server instance.
type Options struct {
	// Addr is the "host:port" the HTTP+WebSocket listener binds to.
	Addr string

	// DebounceWindow batches a burst of filesystem events - an editor's
	// save-then-rename, a `git checkout` touching many files at once -
	// into a single rebuild. Zero means a 75ms default.
	DebounceWindow time.Duration
}

// Server is one running dev-server instance: a Bundle it rebuilds on every
// watcher event, an HTTP listener serving the most recent build's output
// files plus the HMR websocket endpoint, and the Idle/Building state
// machine coordinating the two.
type Server struct {
	bundle *bundler.Bundle
	fsys   fs.FS
	opts   config.Options

	watcher *watcher
	hub     *hub
	http    *http.Server

	mu      sync.RWMutex
	state   State
	served  map[string]*emitter.OutputFile
	result  *bundler.Result
}

// New constructs a Server ready for Run. It does not start watching or
// listening yet - Run does both and blocks until ctx is canceled or a
// Config.Invalid rebuild terminates the process (spec §7's dev-mode
// policy).
func New(bundle *bundler.Bundle, fsys fs.FS, opts config.Options, options Options) (*Server, error) {
	debounce := options.DebounceWindow
	if debounce <= 0 {
		debounce = 75 * time.Millisecond
	}

	w, err := newWatcher(debounce, opts.Outdir)
	if err != nil {
		return nil, fmt.Errorf("starting file watcher: %w", err)
	}

	s := &Server{
		bundle:  bundle,
		fsys:    fsys,
		opts:    opts,
		watcher: w,
		hub:     newHub(),
		served:  make(map[string]*emitter.OutputFile),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/__kona/hmr", s.hub.ServeHTTP)
	mux.HandleFunc("/", s.serveOutput)
	s.http = &http.Server{Addr: options.Addr, Handler: mux}

	return s, nil
}

func (s *Server) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State reports the dispatch loop's current position, mainly for tests.
func (s *Server) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// serveOutput serves the most recent successful build's files from memory;
// it never touches disk, so a build that fails leaves the previous good
// emission servable exactly as spec §7's dev-mode policy requires.
func (s *Server) serveOutput(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	f, ok := s.served[path.Clean(r.URL.Path)]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(f.Code))
}

// Run watches the project tree rooted at every entry point's directory,
// rebuilding on every debounced change and broadcasting the result until
// ctx is canceled. It returns nil on a clean shutdown, or the terminating
// build error if a rebuild's Kind is one bundlerror.TerminatesProcess
// reports true for (spec §7: "Config.Invalid in dev mode terminates the
// process").
func (s *Server) Run(ctx context.Context) error {
	for _, root := range watchRoots(s.fsys, s.opts) {
		if err := s.watcher.addRoot(root); err != nil {
			return fmt.Errorf("watching %s: %w", root, err)
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	if err := s.rebuild(ctx); err != nil {
		s.shutdown()
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case err := <-serveErr:
			s.shutdown()
			return err
		case <-s.watcher.Events():
			if err := s.rebuild(ctx); err != nil {
				s.shutdown()
				return err
			}
		}
	}
}

func (s *Server) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.http.Shutdown(shutdownCtx)
	s.hub.closeAll()
	_ = s.watcher.Close()
}

// rebuild runs exactly one Idle->Building->{Success|Failed}->Idle cycle.
func (s *Server) rebuild(ctx context.Context) error {
	s.setState(StateBuilding)
	defer s.setState(StateIdle)

	result, err := s.bundle.Build(ctx)
	if err != nil {
		kind := bundlerror.Classify(err)
		s.broadcastFailure(err)
		if bundlerror.TerminatesProcess(kind) {
			return err
		}
		return nil
	}

	updates, fullReload := diffResults(s.currentResult(), result)
	s.setResult(result)

	now := time.Now().UnixMilli()
	switch {
	case fullReload:
		s.hub.broadcast(marshalFullReload(now))
	case len(updates) > 0:
		s.hub.broadcast(marshalUpdate(now, updates))
	}
	return nil
}

func (s *Server) broadcastFailure(err error) {
	msg := errorMessage{Message: err.Error()}
	s.hub.broadcast(marshalError(msg))
}

func (s *Server) currentResult() *bundler.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

func (s *Server) setResult(result *bundler.Result) {
	served := make(map[string]*emitter.OutputFile, len(result.Files))
	for i := range result.Files {
		f := &result.Files[i]
		served["/"+path.Base(f.Path)] = f
		served[f.Path] = f
	}

	s.mu.Lock()
	s.result = result
	s.served = served
	s.mu.Unlock()
}

// diffResults compares two builds' output files and decides whether the
// change set can be expressed as a list of per-chunk patches or needs a
// full-reload message: any chunk appearing, disappearing, or changing path
// is structural and can't be patched (spec §6's `update` message only
// carries a chunk-id's new bytes, not a way to add or remove one).
func diffResults(prev, curr *bundler.Result) (updates []update, fullReload bool) {
	if prev == nil {
		return nil, false
	}

	prevByPath := make(map[string]string, len(prev.Files))
	for _, f := range prev.Files {
		prevByPath[f.Path] = f.Code
	}

	seen := make(map[string]bool, len(curr.Files))
	for _, f := range curr.Files {
		seen[f.Path] = true
		prevCode, existed := prevByPath[f.Path]
		if !existed {
			return nil, true
		}
		if prevCode == f.Code {
			continue
		}
		updates = append(updates, update{
			Kind:      kindForPath(f.Path),
			ChunkID:   f.ChunkID,
			ModuleIDs: moduleIDsForChunk(curr, f.ChunkID),
			NewBytes:  f.Code,
		})
	}
	for p := range prevByPath {
		if !seen[p] {
			return nil, true
		}
	}
	return updates, false
}

func kindForPath(p string) string {
	if path.Ext(p) == ".css" {
		return "css"
	}
	return "js"
}

func moduleIDsForChunk(result *bundler.Result, chunkID string) []string {
	for _, c := range result.Chunks {
		if c.ID != chunkID {
			continue
		}
		ids := make([]string, len(c.ModuleIDs))
		for i, id := range c.ModuleIDs {
			ids[i] = strconv.FormatUint(uint64(id), 10)
		}
		return ids
	}
	return nil
}

// watchRoots derives the directories to watch from the build's entry
// points: each entry's containing directory, deduplicated, since that's
// the smallest set of roots guaranteed to cover every local source file a
// rebuild can depend on (node_modules dependencies are assumed immutable
// during a dev session and are skipped by the watcher's ignore list
// regardless).
func watchRoots(fsys fs.FS, opts config.Options) []string {
	seen := make(map[string]bool)
	var roots []string
	for _, entry := range opts.EntryPoints {
		dir := fsys.Dir(entry)
		if !fsys.IsAbs(dir) {
			dir = fsys.Join(fsys.Cwd(), dir)
		}
		if !seen[dir] {
			seen[dir] = true
			roots = append(roots, dir)
		}
	}
	return roots
}
