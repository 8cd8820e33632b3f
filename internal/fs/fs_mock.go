package fs

import (
	"errors"
	"path"
	"strings"
)

// mockFS lets resolver/graph/bundler tests describe a whole project as a
// map literal instead of touching the real filesystem.
type mockFS struct {
	dirs  map[string]DirEntries
	files map[string]string
}

func MockFS(input map[string]string) FS {
	dirs := make(map[string]DirEntries)
	files := make(map[string]string)

	for k, v := range input {
		files[k] = v
		original := k

		for {
			kDir := path.Dir(k)
			dir, ok := dirs[kDir]
			if !ok {
				dir = DirEntries{dir: kDir, data: make(map[string]*Entry)}
				dirs[kDir] = dir
			}
			if kDir == k {
				break
			}
			base := path.Base(k)
			if k == original {
				dir.data[strings.ToLower(base)] = &Entry{kind: FileEntry, base: base}
			} else {
				dir.data[strings.ToLower(base)] = &Entry{kind: DirEntry, base: base}
			}
			k = kDir
		}
	}

	return &mockFS{dirs: dirs, files: files}
}

func (m *mockFS) ReadDirectory(p string) (DirEntries, error) {
	if dir, ok := m.dirs[p]; ok {
		return dir, nil
	}
	return DirEntries{}, errors.New("no such directory")
}

func (m *mockFS) ReadFile(p string) (string, error) {
	contents, ok := m.files[p]
	if !ok {
		return "", errors.New("no such file")
	}
	return contents, nil
}

func (m *mockFS) ModKey(p string) (ModKey, error) {
	return ModKey{}, errors.New("not available in mock fs")
}

func (*mockFS) IsAbs(p string) bool { return path.IsAbs(p) }

func (*mockFS) Abs(p string) (string, bool) {
	return path.Clean(path.Join("/", p)), true
}

func (*mockFS) Dir(p string) string  { return path.Dir(p) }
func (*mockFS) Base(p string) string { return path.Base(p) }
func (*mockFS) Ext(p string) string  { return path.Ext(p) }

func (*mockFS) Join(parts ...string) string {
	return path.Clean(path.Join(parts...))
}

func (*mockFS) Cwd() string { return "/" }

func splitOnSlash(p string) (string, string) {
	if slash := strings.IndexByte(p, '/'); slash != -1 {
		return p[:slash], p[slash+1:]
	}
	return p, ""
}

func (*mockFS) Rel(base string, target string) (string, bool) {
	base = path.Clean(base)
	target = path.Clean(target)

	if base == "" || base == "." {
		return target, true
	}
	if base == target {
		return ".", true
	}

	for {
		bHead, bTail := splitOnSlash(base)
		tHead, tTail := splitOnSlash(target)
		if bHead != tHead {
			break
		}
		base = bTail
		target = tTail
	}

	if base == "" {
		return target, true
	}

	commonParent := strings.Repeat("../", strings.Count(base, "/")+1)

	if target == "" {
		return commonParent[:len(commonParent)-1], true
	}

	return commonParent + target, true
}

func (m *mockFS) kind(dir string, base string) EntryKind {
	panic("kind() should never be called on mockFS; entries are pre-populated")
}
