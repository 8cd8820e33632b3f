package runtime

import (
	"strings"
	"testing"

	"github.com/ruidosujeira/kona/internal/config"
)

func TestPreambleOmitsLoaderWhenNotSplitting(t *testing.T) {
	p := Preamble(config.PlatformBrowser, false)
	if strings.Contains(p, "__kload") {
		t.Fatalf("expected no loader text when splitting is off:\n%s", p)
	}
	if !strings.Contains(p, "__kona.require") {
		t.Fatalf("expected the core registry helpers, got:\n%s", p)
	}
}

func TestPreambleSelectsLoaderByPlatform(t *testing.T) {
	browser := Preamble(config.PlatformBrowser, true)
	if !strings.Contains(browser, "document.createElement") {
		t.Fatalf("expected the DOM-based loader for the browser platform")
	}
	server := Preamble(config.PlatformServer, true)
	if strings.Contains(server, "document.createElement") {
		t.Fatalf("expected the server platform to skip the DOM loader")
	}
	if !strings.Contains(server, "require(entry.path)") {
		t.Fatalf("expected the server loader to delegate to the host require()")
	}
}

func TestDefineModuleWrapsBodyWithRegistryAssignment(t *testing.T) {
	out := DefineModule(3, "exports.x = 1;")
	if !strings.Contains(out, "__kona.m[3]") || !strings.Contains(out, "exports.x = 1;") {
		t.Fatalf("got %q", out)
	}
}

func TestExportGetterEscapesName(t *testing.T) {
	out := ExportGetter("exports", `weird"name`, "x")
	if !strings.Contains(out, `\"name`) {
		t.Fatalf("expected the export name to be escaped, got %q", out)
	}
}

func TestManifestEntryNullsMissingCSS(t *testing.T) {
	out := ManifestEntry(7, "/out/chunk-abc123.js", "")
	if !strings.Contains(out, "css: null") {
		t.Fatalf("expected a null css field when none was emitted, got %q", out)
	}
	if !strings.Contains(out, "__kona.manifest[7]") || !strings.Contains(out, "rootModuleId: 7") {
		t.Fatalf("expected the manifest to be keyed by the module id, got %q", out)
	}
}
