// Package fs abstracts the filesystem so the Resolver and Graph Builder can
// be driven by a real OS-backed tree during normal builds and by an
// in-memory tree during tests, without either caring which one it has.
package fs

import (
	"sort"
	"strings"
	"sync"
)

type EntryKind uint8

const (
	DirEntry EntryKind = 1 + iota
	FileEntry
)

// Entry is a lazily-stat'd directory entry: listing a directory is cheap,
// but most entries in node_modules are never individually stat'd during a
// given resolve, so the Kind is only computed on first access.
type Entry struct {
	mutex    sync.Mutex
	dir      string
	base     string
	kind     EntryKind
	needStat bool
}

func (e *Entry) Kind(fsys FS) EntryKind {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.needStat {
		e.needStat = false
		e.kind = fsys.kind(e.dir, e.base)
	}
	return e.kind
}

// DirEntries is case-insensitively keyed so resolution behaves the same on
// case-insensitive filesystems (macOS, Windows) as on case-sensitive ones,
// surfacing a DifferentCase diagnostic instead of silently resolving.
type DirEntries struct {
	dir  string
	data map[string]*Entry
}

func MakeEmptyDirEntries(dir string) DirEntries {
	return DirEntries{dir: dir, data: make(map[string]*Entry)}
}

type DifferentCase struct {
	Dir    string
	Query  string
	Actual string
}

func (entries DirEntries) Get(query string) (*Entry, *DifferentCase) {
	if entries.data == nil {
		return nil, nil
	}
	key := strings.ToLower(query)
	entry := entries.data[key]
	if entry == nil {
		return nil, nil
	}
	if entry.base != query {
		return entry, &DifferentCase{Dir: entries.dir, Query: query, Actual: entry.base}
	}
	return entry, nil
}

func (entries DirEntries) SortedKeys() []string {
	keys := make([]string, 0, len(entries.data))
	for _, e := range entries.data {
		keys = append(keys, e.base)
	}
	sort.Strings(keys)
	return keys
}

// ModKey is a cheap, comparable fingerprint of a file's on-disk state, used
// by the content-addressed cache to short-circuit a hash recompute when the
// file hasn't changed at all since the last build. RealFS fills Size and
// ModTimeSec only; Inode stays zero.
type ModKey struct {
	Inode      uint64
	Size       int64
	ModTimeSec int64
}

// FS is the full abstraction surface the Resolver and Graph Builder program
// against. Never call os.* directly outside fs_real.go.
type FS interface {
	ReadDirectory(dir string) (entries DirEntries, err error)
	ReadFile(path string) (contents string, err error)
	ModKey(path string) (ModKey, error)

	IsAbs(p string) bool
	Abs(p string) (string, bool)
	Dir(p string) string
	Base(p string) string
	Ext(p string) string
	Join(parts ...string) string
	Rel(base string, target string) (string, bool)
	Cwd() string

	kind(dir string, base string) EntryKind
}
