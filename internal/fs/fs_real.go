package fs

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
)

type entriesOrErr struct {
	entries DirEntries
	err     error
}

type realFS struct {
	entriesMutex sync.Mutex
	entries      map[string]entriesOrErr
	cwd          string
}

// RealFS returns an FS backed by the OS filesystem. Directory listings are
// cached for the process lifetime and never invalidated (internal/devserver
// does not reset them between rebuilds either) and are
// populated with godirwalk.ReadDirents, which avoids the extra per-entry
// lstat that os.ReadDir performs internally.
func RealFS() FS {
	cwd, _ := os.Getwd()
	return &realFS{
		entries: make(map[string]entriesOrErr),
		cwd:     cwd,
	}
}

func (r *realFS) ReadDirectory(dir string) (DirEntries, error) {
	r.entriesMutex.Lock()
	if cached, ok := r.entries[dir]; ok {
		r.entriesMutex.Unlock()
		return cached.entries, cached.err
	}
	r.entriesMutex.Unlock()

	dirents, err := godirwalk.ReadDirents(dir, nil)
	entries := DirEntries{dir: dir, data: make(map[string]*Entry)}
	if err == nil {
		for _, dirent := range dirents {
			kind := FileEntry
			if dirent.IsDir() {
				kind = DirEntry
			}
			needStat := dirent.ModeType()&os.ModeSymlink != 0
			entries.data[strings.ToLower(dirent.Name())] = &Entry{
				dir:      dir,
				base:     dirent.Name(),
				kind:     kind,
				needStat: needStat,
			}
		}
	} else {
		entries.data = nil
	}

	r.entriesMutex.Lock()
	r.entries[dir] = entriesOrErr{entries: entries, err: err}
	r.entriesMutex.Unlock()
	return entries, err
}

func (r *realFS) ReadFile(path string) (string, error) {
	contents, err := os.ReadFile(path)
	return string(contents), err
}

func (r *realFS) ModKey(path string) (ModKey, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ModKey{}, err
	}
	return ModKey{
		Size:       info.Size(),
		ModTimeSec: info.ModTime().Unix(),
	}, nil
}

func (r *realFS) IsAbs(p string) bool { return filepath.IsAbs(p) }

func (r *realFS) Abs(p string) (string, bool) {
	abs, err := filepath.Abs(p)
	return abs, err == nil
}

func (r *realFS) Dir(p string) string  { return filepath.Dir(p) }
func (r *realFS) Base(p string) string { return filepath.Base(p) }
func (r *realFS) Ext(p string) string  { return filepath.Ext(p) }

func (r *realFS) Join(parts ...string) string {
	return filepath.Clean(filepath.Join(parts...))
}

func (r *realFS) Rel(base string, target string) (string, bool) {
	rel, err := filepath.Rel(base, target)
	return rel, err == nil
}

func (r *realFS) Cwd() string { return r.cwd }

func (r *realFS) kind(dir string, base string) EntryKind {
	info, err := os.Lstat(filepath.Join(dir, base))
	if err != nil {
		return 0
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if target, err := os.Stat(filepath.Join(dir, base)); err == nil && target.IsDir() {
			return DirEntry
		}
		return FileEntry
	}
	if info.IsDir() {
		return DirEntry
	}
	return FileEntry
}
