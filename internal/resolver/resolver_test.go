package resolver

import (
	"testing"

	"github.com/ruidosujeira/kona/internal/config"
	"github.com/ruidosujeira/kona/internal/fs"
	"github.com/ruidosujeira/kona/internal/logger"
)

func newTestResolver(t *testing.T, files map[string]string, opts config.Options) *Resolver {
	t.Helper()
	mock := fs.MockFS(files)
	log := logger.NewDeferLog()
	return New(mock, log, opts)
}

func TestRelativeResolution(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"/p/a.js": "export const x = 1",
		"/p/b.js": "import {x} from './a.js'",
	}, config.Options{Target: config.PlatformBrowser})

	resolved, err := r.Resolve("./a.js", "/p/b.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Kind != ResultFile || resolved.AbsPath != "/p/a.js" {
		t.Fatalf("got %+v", resolved)
	}
}

func TestExtensionProbe(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"/p/a.ts":  "export const x = 1",
		"/p/b.tsx": "import {x} from './a'",
	}, config.Options{Target: config.PlatformBrowser})

	resolved, err := r.Resolve("./a", "/p/b.tsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.AbsPath != "/p/a.ts" {
		t.Fatalf("got %+v", resolved)
	}
}

func TestAliasResolution(t *testing.T) {
	// spec §8 scenario 5
	r := newTestResolver(t, map[string]string{
		"/p/x/v.js":  "export default 5",
		"/p/main.js": "import v from '@x/v.js'",
	}, config.Options{
		Target: config.PlatformBrowser,
		Alias:  []config.AliasEntry{{From: "@x", To: "/p/x"}},
	})

	resolved, err := r.Resolve("@x/v.js", "/p/main.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.AbsPath != "/p/x/v.js" {
		t.Fatalf("got %+v", resolved)
	}
}

func TestExportsWildcard(t *testing.T) {
	// spec §8: "A wildcard exports pattern `./lib/*` with target `./src/*.js`
	// must route `./lib/foo` to `<pkg>/src/foo.js`."
	r := newTestResolver(t, map[string]string{
		"/p/node_modules/pkg/package.json": `{"exports":{"./lib/*":"./src/*.js"}}`,
		"/p/node_modules/pkg/src/foo.js":   "export default 1",
		"/p/main.js":                       "import x from 'pkg/lib/foo'",
	}, config.Options{Target: config.PlatformBrowser})

	resolved, err := r.Resolve("pkg/lib/foo", "/p/main.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.AbsPath != "/p/node_modules/pkg/src/foo.js" {
		t.Fatalf("got %+v", resolved)
	}
}

func TestExportsWinsOverMain(t *testing.T) {
	// spec §8: "A package.json with both exports and main: exports wins;
	// main is ignored."
	r := newTestResolver(t, map[string]string{
		"/p/node_modules/pkg/package.json": `{"main":"./old.js","exports":"./new.js"}`,
		"/p/node_modules/pkg/new.js":       "export default 1",
		"/p/node_modules/pkg/old.js":       "export default 2",
		"/p/main.js":                       "import x from 'pkg'",
	}, config.Options{Target: config.PlatformBrowser})

	resolved, err := r.Resolve("pkg", "/p/main.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.AbsPath != "/p/node_modules/pkg/new.js" {
		t.Fatalf("got %+v, expected exports to win over main", resolved)
	}
}

func TestConditionalExportsPerPlatform(t *testing.T) {
	// spec §8 scenario 6
	files := map[string]string{
		"/p/node_modules/pkg/package.json": `{"exports":{"./sub":{"browser":"./b.js","default":"./d.js"}}}`,
		"/p/node_modules/pkg/b.js":         "export default 'browser'",
		"/p/node_modules/pkg/d.js":         "export default 'server'",
		"/p/main.js":                       "import x from 'pkg/sub'",
	}

	browser := newTestResolver(t, files, config.Options{Target: config.PlatformBrowser})
	resolved, err := browser.Resolve("pkg/sub", "/p/main.js")
	if err != nil || resolved.AbsPath != "/p/node_modules/pkg/b.js" {
		t.Fatalf("browser target: got %+v, err %v", resolved, err)
	}

	server := newTestResolver(t, files, config.Options{Target: config.PlatformServer})
	resolved, err = server.Resolve("pkg/sub", "/p/main.js")
	if err != nil || resolved.AbsPath != "/p/node_modules/pkg/d.js" {
		t.Fatalf("server target: got %+v, err %v", resolved, err)
	}
}

func TestExternalPattern(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"/p/main.js": "import 'react'",
	}, config.Options{
		Target:   config.PlatformBrowser,
		External: []string{"react*"},
	})

	resolved, err := r.Resolve("react", "/p/main.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Kind != ResultExternal {
		t.Fatalf("expected external, got %+v", resolved)
	}
}

func TestBuiltinExternalOnServerTarget(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"/p/main.js": "import fs from 'fs'",
	}, config.Options{Target: config.PlatformServer})

	resolved, err := r.Resolve("fs", "/p/main.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Kind != ResultExternal {
		t.Fatalf("expected 'fs' external on server target, got %+v", resolved)
	}
}

func TestNotFound(t *testing.T) {
	r := newTestResolver(t, map[string]string{
		"/p/main.js": "import './missing'",
	}, config.Options{Target: config.PlatformBrowser})

	_, err := r.Resolve("./missing", "/p/main.js")
	if err == nil {
		t.Fatalf("expected NotFoundError")
	}
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected *NotFoundError, got %T: %v", err, err)
	}
}

func TestResolveIsDeterministicRegardlessOfCallOrder(t *testing.T) {
	// spec §8 invariant 3.
	r := newTestResolver(t, map[string]string{
		"/p/a.js":    "export const x = 1",
		"/p/b.js":    "import {x} from './a.js'",
		"/p/main.js": "import './a.js'; import './b.js'",
	}, config.Options{Target: config.PlatformBrowser})

	first, _ := r.Resolve("./a.js", "/p/main.js")
	_, _ = r.Resolve("./b.js", "/p/main.js")
	second, _ := r.Resolve("./a.js", "/p/main.js")

	if first.AbsPath != second.AbsPath {
		t.Fatalf("resolution changed across calls: %q vs %q", first.AbsPath, second.AbsPath)
	}
}
