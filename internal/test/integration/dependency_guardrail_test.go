//go:build integration

package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestDomainPackagesStayTransportFree fails when a package under
// internal/passives imports service, command, or tool code. The domain
// layer computes graphs and stat vectors from plain inputs; handlers and
// caches depend on it, never the other way around.
func TestDomainPackagesStayTransportFree(t *testing.T) {
	config := &packages.Config{
		Mode:  packages.NeedName | packages.NeedImports | packages.NeedFiles,
		Tests: false,
		Dir:   integrationRepoRoot(t),
	}
	pkgs, err := packages.Load(config, domainImportGuardrailPatterns()...)
	if err != nil {
		t.Fatalf("load domain packages: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatal("domain package load errors")
	}
	if len(pkgs) == 0 {
		t.Fatal("no domain packages found")
	}

	var violations []string
	for _, pkg := range pkgs {
		imports := make([]string, 0, len(pkg.Imports))
		for path := range pkg.Imports {
			imports = append(imports, path)
		}
		sort.Strings(imports)
		for _, path := range imports {
			if isDomainImportForbidden(path) {
				violations = append(violations, fmt.Sprintf("- %s imports %s", pkg.PkgPath, path))
			}
		}
	}

	if len(violations) > 0 {
		t.Fatalf("domain packages must not depend on transport layers:\n%s", strings.Join(violations, "\n"))
	}
}

func TestDomainImportGuardrailScopes(t *testing.T) {
	patterns := domainImportGuardrailPatterns()
	if len(patterns) == 0 {
		t.Fatal("expected at least one package pattern")
	}
	found := false
	for _, pattern := range patterns {
		if pattern == "./internal/passives/..." {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected scan scope to include ./internal/passives/..., got %v", patterns)
	}
}

func TestDomainImportGuardrailClassifier(t *testing.T) {
	forbidden := []string{
		"github.com/louisbranch/hollowspire.game/internal/services/passives/app",
		"github.com/louisbranch/hollowspire.game/internal/services/mcp/domain",
		"github.com/louisbranch/hollowspire.game/internal/cmd/passives",
		"github.com/louisbranch/hollowspire.game/internal/tools/graphlint",
		"github.com/louisbranch/hollowspire.game/internal/platform/otel",
	}
	for _, path := range forbidden {
		if !isDomainImportForbidden(path) {
			t.Fatalf("expected %s to be forbidden for domain packages", path)
		}
	}

	allowed := []string{
		"github.com/louisbranch/hollowspire.game/internal/platform/errors",
		"github.com/louisbranch/hollowspire.game/internal/passives/graph",
		"gopkg.in/yaml.v3",
		"github.com/Shopify/go-lua",
	}
	for _, path := range allowed {
		if isDomainImportForbidden(path) {
			t.Fatalf("expected %s to be allowed for domain packages", path)
		}
	}
}

func domainImportGuardrailPatterns() []string {
	return []string{
		"./internal/passives/...",
	}
}

// isDomainImportForbidden reports whether a domain package may not depend
// on the import path. Platform packages are shared with the domain except
// for otel, which only service processes configure.
func isDomainImportForbidden(path string) bool {
	path = filepath.ToSlash(strings.TrimSpace(path))
	if !strings.HasPrefix(path, "github.com/louisbranch/hollowspire.game/") {
		return false
	}
	return strings.Contains(path, "/internal/services/") ||
		strings.Contains(path, "/internal/cmd/") ||
		strings.Contains(path, "/internal/tools/") ||
		strings.Contains(path, "/internal/platform/otel")
}

func integrationRepoRoot(t *testing.T) string {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("get working dir: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			t.Fatal("go.mod not found")
		}
		wd = parent
	}
}
