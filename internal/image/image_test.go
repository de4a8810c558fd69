package image

import (
	"path/filepath"
	"testing"

	"github.com/ancbuild/anc/internal/dephash"
	"github.com/stretchr/testify/require"
)

func TestObjectRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.anco")
	c := JSONCodec{}

	unit := ObjectUnit{CanonicalName: "main", SubmoduleName: "hello", Payload: []byte("body")}
	require.NoError(t, c.WriteObject(path, unit))

	got, err := c.ReadObject(path)
	require.NoError(t, err)
	require.Equal(t, unit, got)
}

func TestReadObjectRejectsModuleFlavor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.ancm")
	c := JSONCodec{}
	require.NoError(t, c.WriteModule(path, ImageCommonEntry{Name: "hello"}, []byte("blob")))

	_, err := c.ReadObject(path)
	require.Error(t, err)
}

func TestModuleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.ancm")
	c := JSONCodec{}

	entry := ImageCommonEntry{Name: "hello", Version: "1.0.0", Imports: []ImportEntry{{Name: "util"}}}
	require.NoError(t, c.WriteModule(path, entry, []byte("blob")))

	got, blob, err := c.ReadModule(path)
	require.NoError(t, err)
	require.Equal(t, entry, got)
	require.Equal(t, []byte("blob"), blob)
}

func TestApplicationRoundTripDiskAndMemory(t *testing.T) {
	c := JSONCodec{}
	main := ImageCommonEntry{Name: "app", Version: "1.0.0"}
	index := ImageIndexEntry{
		Modules: []DynamicLinkModuleEntry{
			{Name: "app", Location: ModuleLocation{Kind: LocEmbed}},
			{Name: "util", Location: ModuleLocation{Kind: LocShare, Version: "1.2.0", Hash: dephash.Zero}},
		},
		EntryPoints: []EntryPoint{{Name: "_start"}},
	}

	data, err := c.Encode(main, index)
	require.NoError(t, err)
	gotMain, gotIndex, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, main, gotMain)
	require.Equal(t, index, gotIndex)

	dir := t.TempDir()
	path := filepath.Join(dir, "app.anci")
	require.NoError(t, c.WriteApplication(path, main, index))
	gotMain2, gotIndex2, err := c.ReadApplication(path)
	require.NoError(t, err)
	require.Equal(t, main, gotMain2)
	require.Equal(t, index, gotIndex2)
}

func TestReferenceAssemblerAndLinker(t *testing.T) {
	a := ReferenceAssembler{}
	unit, err := a.Assemble("src/main.anca", []byte("code"), "hello", "main")
	require.NoError(t, err)
	require.Equal(t, "main", unit.CanonicalName)
	require.Equal(t, "hello", unit.SubmoduleName)

	l := ReferenceStaticLinker{}
	entry, blob, err := l.Link("hello", "1.0.0", nil, []ObjectUnit{unit})
	require.NoError(t, err)
	require.Equal(t, "hello", entry.Name)
	require.Equal(t, []byte("code"), blob)
}
