// Package layout computes canonical file-system paths for a module: source
// roots, output tree, image file names, and sidecar meta files (§4.1).
// Every function here is pure — no I/O.
package layout

import (
	"path/filepath"
	"strings"

	"github.com/ancbuild/anc/internal/dephash"
)

const (
	// SourceExt is the assembly source file extension.
	SourceExt = ".anca"
	// ObjectExt is the unlinked compilation unit extension.
	ObjectExt = ".anco"
	// SharedModuleExt is the per-module linked image extension.
	SharedModuleExt = ".ancm"
	// ApplicationExt is the final application image extension.
	ApplicationExt = ".anci"
	// ManifestFile is the module manifest's file name.
	ManifestFile = "module.anc.ason"
	// MetaExt is the sidecar meta file extension.
	MetaExt = ".meta.ason"
)

// SrcDir, AppDir and TestsDir are the three source roots under a module (§4.1, §6).
func SrcDir(moduleRoot string) string   { return filepath.Join(moduleRoot, "src") }
func AppDir(moduleRoot string) string   { return filepath.Join(moduleRoot, "app") }
func TestsDir(moduleRoot string) string { return filepath.Join(moduleRoot, "tests") }

// SourceRoots returns the roots to scan for assembly sources, including
// tests/ only when includeTests is set (§4.4 step 3).
func SourceRoots(moduleRoot string, includeTests bool) []string {
	roots := []string{SrcDir(moduleRoot), AppDir(moduleRoot)}
	if includeTests {
		roots = append(roots, TestsDir(moduleRoot))
	}
	return roots
}

// ManifestPath returns the path to a module's manifest file.
func ManifestPath(moduleRoot string) string {
	return filepath.Join(moduleRoot, ManifestFile)
}

// OutputRoot is the module's output tree root.
func OutputRoot(moduleRoot string) string {
	return filepath.Join(moduleRoot, "output")
}

// HashDir is the per-configuration cache namespace under output/. A nil
// hash means no hash directory (§4.1): Runtime-kind modules pass nil and
// resolve directly under output/ with no per-configuration subdirectory.
func HashDir(moduleRoot string, hash *dephash.Hash) string {
	if hash == nil {
		return OutputRoot(moduleRoot)
	}
	return filepath.Join(OutputRoot(moduleRoot), hash.String())
}

// AssetDir, IRDir, AssemblyDir and ObjectDir are the asset subtree under a hash directory.
func AssetDir(hashDir string) string     { return filepath.Join(hashDir, "asset") }
func IRDir(hashDir string) string        { return filepath.Join(AssetDir(hashDir), "ir") }
func AssemblyDir(hashDir string) string  { return filepath.Join(AssetDir(hashDir), "assembly") }
func ObjectDir(hashDir string) string    { return filepath.Join(AssetDir(hashDir), "object") }

// ManifestMetaPath is the sidecar meta file for the module manifest itself.
func ManifestMetaPath(hashDir string) string {
	return filepath.Join(AssetDir(hashDir), "module.anc"+MetaExt)
}

// ObjectPath returns the object file path for a canonical name.
func ObjectPath(hashDir, canonicalName string) string {
	return filepath.Join(ObjectDir(hashDir), canonicalName+ObjectExt)
}

// SharedModuleImagePath returns the shared-module image path for a hash directory.
func SharedModuleImagePath(hashDir, moduleName string) string {
	return filepath.Join(hashDir, moduleName+SharedModuleExt)
}

// ApplicationImagePath returns the application image path for a module root.
func ApplicationImagePath(moduleRoot, moduleName string) string {
	return filepath.Join(OutputRoot(moduleRoot), moduleName+ApplicationExt)
}

// MetaPath replaces an artifact file's extension with .meta.ason (§4.1).
func MetaPath(artifactPath string) string {
	ext := filepath.Ext(artifactPath)
	base := strings.TrimSuffix(artifactPath, ext)
	return base + MetaExt
}

// CanonicalName derives the canonical name for a source file given its
// path relative to a source root: "a/b/c.anca" -> "a-b-c" (GLOSSARY).
func CanonicalName(relPath string) string {
	rel := filepath.ToSlash(relPath)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(rel, "/", "-")
}

// SubmodulePath derives the submodule path from a canonical name:
// "a-b-c" -> "a::b::c". The top-level names "lib" and "main" collapse to
// the empty submodule path (no :: suffix) per §4.1.
func SubmodulePath(canonicalName string) string {
	if canonicalName == "lib" || canonicalName == "main" {
		return ""
	}
	return strings.ReplaceAll(canonicalName, "-", "::")
}

// FullSubmoduleName builds the full submodule name passed to the
// assembler: "<module-name>[::<submodule-path>]" (§4.4 step 5).
func FullSubmoduleName(moduleName, canonicalName string) string {
	sub := SubmodulePath(canonicalName)
	if sub == "" {
		return moduleName
	}
	return moduleName + "::" + sub
}
