// Package runtimeprop derives the runtime's own filesystem layout
// (§4.9, §6 "Runtime home layout") from the executable's location plus
// an optional user configuration file.
package runtimeprop

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Properties exposes every path the rest of the driver needs to locate
// registries, repositories, the module cache, and built-in modules.
type Properties struct {
	Home         string
	Bin          string
	Runtimes     string
	Registries   string
	Repositories string
	Modules      string

	// BuiltinModules is <home>/runtimes/<edition>/modules, the location
	// searched for Runtime-kind dependencies.
	BuiltinModules string

	// RegistryURLs is the union of the default configuration's list and
	// the user configuration's list, deduplicated, order preserved,
	// defaults first (§4.9).
	RegistryURLs []string
}

// userConfig is the on-disk shape of the optional user configuration
// file: just the registries list, since that is the only field §4.9
// says the user configuration contributes.
type userConfig struct {
	Registries []string `yaml:"registries"`
}

// Discover derives Properties from the runtime executable's path, the
// active edition name, the built-in default registry list, and an
// optional user configuration file path (read if present; its absence
// is not an error).
func Discover(executablePath, edition string, defaultRegistries []string, userConfigPath string) (*Properties, error) {
	home := homeFromExecutable(executablePath)

	p := &Properties{
		Home:           home,
		Bin:            filepath.Join(home, "bin"),
		Runtimes:       filepath.Join(home, "runtimes"),
		Registries:     filepath.Join(home, "registries"),
		Repositories:   filepath.Join(home, "repositories"),
		Modules:        filepath.Join(home, "modules"),
		BuiltinModules: filepath.Join(home, "runtimes", edition, "modules"),
	}

	userRegistries, err := loadUserRegistries(userConfigPath)
	if err != nil {
		return nil, err
	}
	p.RegistryURLs = dedupRegistries(defaultRegistries, userRegistries)
	return p, nil
}

// homeFromExecutable assumes the executable lives at <home>/bin/<exe>,
// matching the "Runtime home layout" in §6; if it is not nested under a
// bin/ directory, its own parent directory is treated as home.
func homeFromExecutable(executablePath string) string {
	dir := filepath.Dir(executablePath)
	if filepath.Base(dir) == "bin" {
		return filepath.Dir(dir)
	}
	return dir
}

func loadUserRegistries(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("runtimeprop: failed to read user config %s: %w", path, err)
	}
	var cfg userConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("runtimeprop: malformed user config %s: %w", path, err)
	}
	return cfg.Registries, nil
}

// dedupRegistries unions defaults then user, preserving first-seen order.
func dedupRegistries(defaults, user []string) []string {
	seen := make(map[string]bool, len(defaults)+len(user))
	out := make([]string, 0, len(defaults)+len(user))
	for _, list := range [][]string{defaults, user} {
		for _, r := range list {
			if seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
