package bundler

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ruidosujeira/kona/internal/config"
	"github.com/ruidosujeira/kona/internal/fs"
)

func sortedPaths(t *testing.T, result *Result) []string {
	t.Helper()
	paths := make([]string, 0, len(result.Files))
	for _, f := range result.Files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	return paths
}

func TestBuildEndToEnd(t *testing.T) {
	mock := fs.MockFS(map[string]string{
		"/p/package.json": `{"name":"p"}`,
		"/p/a.js":         `import { b } from "./b.js"; console.log(b);`,
		"/p/b.js":         `export const b = 1;`,
	})

	bundle, err := New(mock, config.Options{
		EntryPoints: []string{"/p/a.js"},
		Target:      config.PlatformBrowser,
		Format:      config.FormatESM,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := bundle.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v (diagnostics: %+v)", err, bundle.Diagnostics)
	}
	if len(result.Files) == 0 {
		t.Fatalf("expected at least one output file")
	}
	if len(result.Graph.Modules) != 2 {
		t.Fatalf("expected both modules discovered, got %d", len(result.Graph.Modules))
	}

	// Rebuilding the same Bundle with nothing changed must reproduce the
	// exact same set of output paths (spec §8 invariant: repeat build,
	// same input, byte-identical output) - go-cmp catches a reordering or
	// a spurious extra/missing file a plain len() check would miss.
	again, err := bundle.Build(context.Background())
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if diff := cmp.Diff(sortedPaths(t, result), sortedPaths(t, again)); diff != "" {
		t.Fatalf("repeat build produced a different file set (-first +second):\n%s", diff)
	}
	for i := range result.Files {
		if result.Files[i].Code != again.Files[i].Code {
			t.Fatalf("repeat build produced different code for %s", result.Files[i].Path)
		}
	}
}

func TestBuildNoEntryPointsIsConfigInvalid(t *testing.T) {
	mock := fs.MockFS(map[string]string{"/p/a.js": "1;"})
	bundle, err := New(mock, config.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := bundle.Build(context.Background()); err == nil {
		t.Fatalf("expected an error for a build with no entry points")
	}
}

func TestBuildFailureLeavesDiagnostics(t *testing.T) {
	mock := fs.MockFS(map[string]string{
		"/p/a.js": `import { missing } from "./nope.js";`,
	})
	bundle, err := New(mock, config.Options{
		EntryPoints: []string{"/p/a.js"},
		Target:      config.PlatformBrowser,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := bundle.Build(context.Background()); err == nil {
		t.Fatalf("expected a resolution failure")
	}
	if len(bundle.Diagnostics) == 0 {
		t.Fatalf("expected Diagnostics to be populated even on failure")
	}
}
