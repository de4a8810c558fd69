package runtimeprop

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHomeFromExecutableBinLayout(t *testing.T) {
	p, err := Discover("/opt/anc/bin/anc", "2025", []string{"https://default.example/index.json"}, "")
	require.NoError(t, err)
	require.Equal(t, "/opt/anc", p.Home)
	require.Equal(t, filepath.Join("/opt/anc", "bin"), p.Bin)
	require.Equal(t, filepath.Join("/opt/anc", "runtimes", "2025", "modules"), p.BuiltinModules)
}

func TestHomeFromExecutableNonBinLayout(t *testing.T) {
	p, err := Discover("/opt/anc/anc", "2025", nil, "")
	require.NoError(t, err)
	require.Equal(t, "/opt/anc", p.Home)
}

func TestRegistryUnionDedupPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("registries:\n  - https://default.example/index.json\n  - https://extra.example/index.json\n"), 0o644))

	p, err := Discover("/opt/anc/bin/anc", "2025", []string{"https://default.example/index.json"}, cfgPath)
	require.NoError(t, err)
	require.Equal(t, []string{"https://default.example/index.json", "https://extra.example/index.json"}, p.RegistryURLs)
}

func TestMissingUserConfigIsNotError(t *testing.T) {
	p, err := Discover("/opt/anc/bin/anc", "2025", []string{"https://default.example/index.json"}, filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, []string{"https://default.example/index.json"}, p.RegistryURLs)
}
