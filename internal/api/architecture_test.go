package api

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// bannedAdapterImports are the backend adapter packages only commanders.go
// is allowed to import. Every other file in this package must depend on
// the narrow Commander/HQPlayerSurface/NowPlayingImageFetcher interfaces
// in helpers.go instead, so a handler can never read state straight off an
// adapter (spec §4.8's lint-enforced rule).
var bannedAdapterImports = []string{
	"internal/roon",
	"internal/upnp",
	"internal/openhome",
	"internal/mediaserver",
	"internal/hqplayer",
}

// allowedAdapterImportFile is the single file permitted to import the
// banned packages above.
const allowedAdapterImportFile = "commanders.go"

func TestHandlersDoNotImportAdaptersDirectly(t *testing.T) {
	entries, err := os.ReadDir(".")
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	fset := token.NewFileSet()
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		if name == allowedAdapterImportFile {
			continue
		}
		f, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		for _, imp := range f.Imports {
			path := strings.Trim(imp.Path.Value, `"`)
			for _, banned := range bannedAdapterImports {
				if strings.HasSuffix(path, banned) {
					t.Errorf("%s imports %s directly; only %s may import backend adapter packages", name, path, allowedAdapterImportFile)
				}
			}
		}
	}
}

// TestCommandersFileIsTheOnlyAdapterImporter is a sanity check that the
// allowlist above still points at a real file, so a rename doesn't quietly
// disable the lint.
func TestCommandersFileIsTheOnlyAdapterImporter(t *testing.T) {
	if _, err := os.Stat(filepath.Join(".", allowedAdapterImportFile)); err != nil {
		t.Fatalf("expected %s to exist: %v", allowedAdapterImportFile, err)
	}
}
