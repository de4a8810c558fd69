package resolve

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ancbuild/anc/internal/builderr"
	"github.com/ancbuild/anc/internal/layout"
	"github.com/ancbuild/anc/internal/manifest"
	"github.com/ancbuild/anc/internal/modulebuild"
	"github.com/ancbuild/anc/internal/runtimeprop"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// fakeFetcher resolves Remote/Share checkouts to pre-built fixture
// directories keyed by the revision string the test's fakeRegistry hands
// back (tests encode "<name>:<version>" as the revision for disambiguation).
type fakeFetcher struct {
	byRevision map[string]string
}

func (f fakeFetcher) Fetch(ctx context.Context, url, repositoriesDir string) (string, error) {
	return url, nil
}

func (f fakeFetcher) Checkout(ctx context.Context, repoPath, revision, modulesDir string) (string, error) {
	path, ok := f.byRevision[revision]
	if !ok {
		return "", os.ErrNotExist
	}
	return path, nil
}

type fakeRegistry struct{}

func (fakeRegistry) Lookup(ctx context.Context, registries []string, name, version string) (string, string, error) {
	return name, name + ":" + version, nil
}

func newModule(t *testing.T, root, name string) *manifest.Manifest {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))
	m := manifest.Default(name, "2025")
	require.NoError(t, m.Save(layout.ManifestPath(root)))
	return m
}

func addDep(t *testing.T, m *manifest.Manifest, root, name string, dep manifest.ModuleDependency) {
	t.Helper()
	m.Dependencies[name] = dep
	require.NoError(t, m.Save(layout.ManifestPath(root)))
}

func newResolver(byRevision map[string]string) *Resolver {
	return &Resolver{
		Builder:  modulebuild.NewDefaultBuilder(),
		Fetcher:  fakeFetcher{byRevision: byRevision},
		Registry: fakeRegistry{},
		Props: &runtimeprop.Properties{
			Repositories:   "/unused",
			Modules:        "/unused",
			BuiltinModules: "/unused",
		},
	}
}

// S6 — version arbitration keeps the newer compatible Share version.
func TestVersionArbitrationKeepsNewer(t *testing.T) {
	base := t.TempDir()
	mainRoot := filepath.Join(base, "main")
	aRoot := filepath.Join(base, "a")
	util12 := filepath.Join(base, "util-1.2.0")
	util15 := filepath.Join(base, "util-1.5.0")

	mainM := newModule(t, mainRoot, "main")
	newModule(t, util12, "util")
	newModule(t, util15, "util")
	aM := newModule(t, aRoot, "a")

	addDep(t, mainM, mainRoot, "a", manifest.ModuleDependency{Kind: manifest.Local, Path: "../a"})
	addDep(t, mainM, mainRoot, "util", manifest.ModuleDependency{Kind: manifest.Share, Version: "1.2.0"})
	addDep(t, aM, aRoot, "util", manifest.ModuleDependency{Kind: manifest.Share, Version: "1.5.0"})

	r := newResolver(map[string]string{
		"util:1.2.0": util12,
		"util:1.5.0": util15,
	})

	res, err := r.Resolve(context.Background(), mainRoot, manifest.Local, mainM)
	require.NoError(t, err)

	var utilCount int
	for i, e := range res.Entries {
		if e.Name == "util" {
			utilCount++
			require.Equal(t, "1.5.0", res.Locations[i].Location.Version)
		}
	}
	require.Equal(t, 1, utilCount)
}

// S7 — incompatible Share versions conflict.
func TestVersionConflictFails(t *testing.T) {
	base := t.TempDir()
	mainRoot := filepath.Join(base, "main")
	aRoot := filepath.Join(base, "a")
	util1 := filepath.Join(base, "util-1.0.0")
	util2 := filepath.Join(base, "util-2.0.0")

	mainM := newModule(t, mainRoot, "main")
	newModule(t, util1, "util")
	newModule(t, util2, "util")
	aM := newModule(t, aRoot, "a")

	addDep(t, mainM, mainRoot, "a", manifest.ModuleDependency{Kind: manifest.Local, Path: "../a"})
	addDep(t, mainM, mainRoot, "util", manifest.ModuleDependency{Kind: manifest.Share, Version: "1.0.0"})
	addDep(t, aM, aRoot, "util", manifest.ModuleDependency{Kind: manifest.Share, Version: "2.0.0"})

	r := newResolver(map[string]string{
		"util:1.0.0": util1,
		"util:2.0.0": util2,
	})

	_, err := r.Resolve(context.Background(), mainRoot, manifest.Local, mainM)
	require.Error(t, err)
	var be *builderr.Error
	require.ErrorAs(t, err, &be)
	require.Equal(t, builderr.VersionConflict, be.Code)
	require.Contains(t, be.Data["trace"], "util")
}

// S8 — a Share module cannot declare a Local dependency.
func TestKindLegalityViolation(t *testing.T) {
	base := t.TempDir()
	mainRoot := filepath.Join(base, "main")
	sRoot := filepath.Join(base, "s-1.0.0")
	locRoot := filepath.Join(base, "loc")

	mainM := newModule(t, mainRoot, "main")
	sM := newModule(t, sRoot, "s")
	newModule(t, locRoot, "loc")

	addDep(t, mainM, mainRoot, "s", manifest.ModuleDependency{Kind: manifest.Share, Version: "1.0.0"})
	addDep(t, sM, sRoot, "loc", manifest.ModuleDependency{Kind: manifest.Local, Path: "../loc"})

	r := newResolver(map[string]string{
		"s:1.0.0": sRoot,
	})

	_, err := r.Resolve(context.Background(), mainRoot, manifest.Local, mainM)
	require.Error(t, err)
	var be *builderr.Error
	require.ErrorAs(t, err, &be)
	require.Equal(t, builderr.DependencyKindViolation, be.Code)
	require.Equal(t, "s -> loc", be.Data["trace"])
}

// A SelfReference dependency declared on the main module itself (e.g. a
// tests/ submodule importing its own module by name) is silently skipped
// rather than raising a kind violation.
func TestMainSelfReferenceIsSkipped(t *testing.T) {
	base := t.TempDir()
	mainRoot := filepath.Join(base, "main")

	mainM := newModule(t, mainRoot, "main")
	addDep(t, mainM, mainRoot, "main", manifest.ModuleDependency{Kind: manifest.SelfReference})

	r := newResolver(nil)

	res, err := r.Resolve(context.Background(), mainRoot, manifest.Local, mainM)
	require.NoError(t, err)
	require.Empty(t, res.Entries)
}

// A Runtime-kind dependency resolves under the builtin modules directory
// with no hash subdirectory: output/<name>.ancm, not
// output/<32-zero-byte-hex>/<name>.ancm.
func TestRuntimeDependencyHasNoHashSubdirectory(t *testing.T) {
	base := t.TempDir()
	mainRoot := filepath.Join(base, "main")
	builtinDir := filepath.Join(base, "builtin")
	coreRoot := filepath.Join(builtinDir, "core")

	mainM := newModule(t, mainRoot, "main")
	newModule(t, coreRoot, "core")

	addDep(t, mainM, mainRoot, "core", manifest.ModuleDependency{Kind: manifest.Runtime})

	r := newResolver(nil)
	r.Props.BuiltinModules = builtinDir

	res, err := r.Resolve(context.Background(), mainRoot, manifest.Local, mainM)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	require.Equal(t, "core", res.Entries[0].Name)

	hashDir := layout.HashDir(coreRoot, nil)
	require.FileExists(t, layout.SharedModuleImagePath(hashDir, "core"))
}

// S9 — a replaced module's own dependency becomes dangling and is pruned.
func TestDanglingPruning(t *testing.T) {
	base := t.TempDir()
	mainRoot := filepath.Join(base, "main")
	a10 := filepath.Join(base, "a-1.0.0")
	a15 := filepath.Join(base, "a-1.5.0")
	cRoot := filepath.Join(base, "c")
	bRoot := filepath.Join(base, "b-1.0.0")

	mainM := newModule(t, mainRoot, "main")
	a10M := newModule(t, a10, "a")
	newModule(t, a15, "a")
	cM := newModule(t, cRoot, "c")
	newModule(t, bRoot, "b")

	addDep(t, mainM, mainRoot, "a", manifest.ModuleDependency{Kind: manifest.Share, Version: "1.0.0"})
	addDep(t, mainM, mainRoot, "c", manifest.ModuleDependency{Kind: manifest.Share, Version: "1.0.0"})
	addDep(t, a10M, a10, "b", manifest.ModuleDependency{Kind: manifest.Share, Version: "1.0.0"})
	addDep(t, cM, cRoot, "a", manifest.ModuleDependency{Kind: manifest.Share, Version: "1.5.0"})

	r := newResolver(map[string]string{
		"a:1.0.0": a10,
		"a:1.5.0": a15,
		"c:1.0.0": cRoot,
		"b:1.0.0": bRoot,
	})

	res, err := r.Resolve(context.Background(), mainRoot, manifest.Local, mainM)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range res.Entries {
		names[e.Name] = true
	}
	require.True(t, names["a"])
	require.True(t, names["c"])
	require.False(t, names["b"])

	sortedNames := make([]string, 0, len(names))
	for n := range names {
		sortedNames = append(sortedNames, n)
	}
	sort.Strings(sortedNames)
	if diff := cmp.Diff([]string{"a", "c"}, sortedNames); diff != "" {
		t.Errorf("resolved module set mismatch (-want +got):\n%s", diff)
	}
}
