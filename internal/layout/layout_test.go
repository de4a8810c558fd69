package layout

import (
	"path/filepath"
	"testing"

	"github.com/ancbuild/anc/internal/dephash"
	"github.com/stretchr/testify/require"
)

func TestSourceRoots(t *testing.T) {
	roots := SourceRoots("/m", false)
	require.Equal(t, []string{filepath.Join("/m", "src"), filepath.Join("/m", "app")}, roots)

	withTests := SourceRoots("/m", true)
	require.Len(t, withTests, 3)
	require.Equal(t, filepath.Join("/m", "tests"), withTests[2])
}

func TestHashDirZero(t *testing.T) {
	dir := HashDir("/m", dephash.Ptr(dephash.Zero))
	require.Equal(t, filepath.Join("/m", "output", dephash.Zero.String()), dir)
}

func TestHashDirNilOmitsSubdirectory(t *testing.T) {
	dir := HashDir("/m", nil)
	require.Equal(t, filepath.Join("/m", "output"), dir)
}

func TestAssetSubdirs(t *testing.T) {
	hashDir := "/m/output/abc"
	require.Equal(t, filepath.Join(hashDir, "asset"), AssetDir(hashDir))
	require.Equal(t, filepath.Join(hashDir, "asset", "ir"), IRDir(hashDir))
	require.Equal(t, filepath.Join(hashDir, "asset", "assembly"), AssemblyDir(hashDir))
	require.Equal(t, filepath.Join(hashDir, "asset", "object"), ObjectDir(hashDir))
}

func TestObjectPath(t *testing.T) {
	hashDir := "/m/output/abc"
	got := ObjectPath(hashDir, "a-b-c")
	require.Equal(t, filepath.Join(hashDir, "asset", "object", "a-b-c.anco"), got)
}

func TestMetaPath(t *testing.T) {
	require.Equal(t, "/x/y/a-b-c.meta.ason", MetaPath("/x/y/a-b-c.anco"))
	require.Equal(t, "/x/mod.meta.ason", MetaPath("/x/mod.ancm"))
}

func TestCanonicalName(t *testing.T) {
	cases := map[string]string{
		"a/b/c.anca": "a-b-c",
		"lib.anca":    "lib",
		"main.anca":   "main",
		"util.anca":   "util",
	}
	for in, want := range cases {
		require.Equal(t, want, CanonicalName(in))
	}
}

func TestSubmodulePath(t *testing.T) {
	require.Equal(t, "", SubmodulePath("lib"))
	require.Equal(t, "", SubmodulePath("main"))
	require.Equal(t, "a::b::c", SubmodulePath("a-b-c"))
	require.Equal(t, "util", SubmodulePath("util"))
}

func TestFullSubmoduleName(t *testing.T) {
	require.Equal(t, "myapp", FullSubmoduleName("myapp", "lib"))
	require.Equal(t, "myapp", FullSubmoduleName("myapp", "main"))
	require.Equal(t, "myapp::a::b", FullSubmoduleName("myapp", "a-b"))
}

func TestApplicationAndSharedImagePaths(t *testing.T) {
	require.Equal(t, filepath.Join("/m", "output", "app.anci"), ApplicationImagePath("/m", "app"))
	require.Equal(t, filepath.Join("/h", "util.ancm"), SharedModuleImagePath("/h", "util"))
}
