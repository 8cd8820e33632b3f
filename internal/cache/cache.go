// Package cache implements the three caches the bundle pipeline relies on for
// incremental speed: a filesystem read cache keyed by ModKey (spec §4.4
// "Cache policy" discusses content hashing; this is the layer in front of
// it that avoids re-reading unchanged files), a content-addressed
// transform cache keyed by (source hash, transform-options fingerprint),
// and the module-id table that gives each absolute path a stable id.
package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/ruidosujeira/kona/internal/fs"
)

// FSCache skips re-reading a file from disk if its ModKey (size/mtime; RealFS leaves the inode zero)
// is unchanged since the last time it was read.
type FSCache struct {
	mutex   sync.Mutex
	entries map[string]*fsEntry
}

type fsEntry struct {
	contents       string
	modKey         fs.ModKey
	isModKeyUsable bool
}

func (c *FSCache) ReadFile(fsys fs.FS, path string) (string, error) {
	c.mutex.Lock()
	entry := c.entries[path]
	c.mutex.Unlock()

	modKey, modKeyErr := fsys.ModKey(path)
	if entry != nil && entry.isModKeyUsable && modKeyErr == nil && entry.modKey == modKey {
		return entry.contents, nil
	}

	contents, err := fsys.ReadFile(path)
	if err != nil {
		return "", err
	}

	c.mutex.Lock()
	c.entries[path] = &fsEntry{
		contents:       contents,
		modKey:         modKey,
		isModKeyUsable: modKeyErr == nil,
	}
	c.mutex.Unlock()
	return contents, nil
}

// ContentHash returns a stable digest of source text. xxhash is used instead
// of a cryptographic hash because the only requirement (spec §3, Module's
// "content hash") is stability and speed, not collision-resistance against
// an adversary.
func ContentHash(contents string) uint64 {
	return xxhash.Sum64String(contents)
}

// TransformKey addresses the parse+transform cache. Two modules with
// identical source text but different paths still get independent graph
// Module records (spec §8 boundary behaviour), but if their content hash and
// transform options match they reuse one cached transform output.
type TransformKey struct {
	ContentHash  uint64
	OptionsHash  uint64
}

type TransformOutput struct {
	Code       string
	Imports    interface{} // *scan.Table, kept as interface{} to avoid an import cycle
	HasJSX     bool
	HasTS      bool
	SourceMap  []byte
}

// TransformCache is multi-writer: two workers computing the same key must
// produce byte-identical output, so concurrent writes to the same key are
// safe and the last one simply wins (spec §5 "Shared resources").
type TransformCache struct {
	mutex   sync.RWMutex
	entries map[TransformKey]*TransformOutput
}

func NewTransformCache() *TransformCache {
	return &TransformCache{entries: make(map[TransformKey]*TransformOutput)}
}

func (c *TransformCache) Get(key TransformKey) (*TransformOutput, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out, ok := c.entries[key]
	return out, ok
}

func (c *TransformCache) Put(key TransformKey, out *TransformOutput) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[key] = out
}

// ModuleIDCache assigns a dense, deterministic-within-a-process ModuleID to
// each absolute path the first time it's seen, so that two workers resolving
// the same path concurrently converge on one id (spec §4.4 invariant: "Two
// modules that resolve to the same absolute path MUST produce a single
// shared Module").
type ModuleIDCache struct {
	mutex   sync.Mutex
	entries map[string]uint32
	next    uint32
}

func NewModuleIDCache() *ModuleIDCache {
	return &ModuleIDCache{entries: make(map[string]uint32)}
}

// GetOrCreate returns the existing id for path, or allocates a fresh one.
// The second return value is true only the first time a path is seen, which
// callers use to decide whether to enqueue the module for discovery.
func (c *ModuleIDCache) GetOrCreate(path string) (id uint32, created bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if id, ok := c.entries[path]; ok {
		return id, false
	}
	id = c.next
	c.next++
	c.entries[path] = id
	return id, true
}

// CacheSet bundles the caches that persist across an incremental build's
// lifetime. internal/bundler holds one of these for the whole process.
type CacheSet struct {
	FS        FSCache
	Transform *TransformCache
	ModuleIDs *ModuleIDCache
}

func NewCacheSet() *CacheSet {
	return &CacheSet{
		FS:        FSCache{entries: make(map[string]*fsEntry)},
		Transform: NewTransformCache(),
		ModuleIDs: NewModuleIDCache(),
	}
}
