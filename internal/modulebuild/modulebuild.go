// Package modulebuild implements the per-module incremental compiler:
// detect which assembly sources need re-assembly, invoke the assembler,
// write object artifacts plus meta, then statically link into a shared-
// module image (§4.4).
package modulebuild

import (
	"errors"
	"os"
	"sort"
	"time"

	"github.com/ancbuild/anc/internal/builderr"
	"github.com/ancbuild/anc/internal/buildlock"
	"github.com/ancbuild/anc/internal/dephash"
	"github.com/ancbuild/anc/internal/image"
	"github.com/ancbuild/anc/internal/layout"
	"github.com/ancbuild/anc/internal/manifest"
	"github.com/ancbuild/anc/internal/metastore"
	"github.com/ancbuild/anc/internal/scan"
)

// Builder drives the module build pipeline against injected
// assembler/linker/codec collaborators (§1: these are external and
// opaque to the core).
type Builder struct {
	Assembler image.Assembler
	Linker    image.StaticLinker
	Codec     image.Codec
}

// NewDefaultBuilder wires the reference image collaborators, enough to
// exercise the pipeline without a real bytecode front end.
func NewDefaultBuilder() *Builder {
	return &Builder{
		Assembler: image.ReferenceAssembler{},
		Linker:    image.ReferenceStaticLinker{},
		Codec:     image.JSONCodec{},
	}
}

// BuildModule runs the staleness/assemble/link procedure of §4.4. A nil
// result with a nil error means "image unchanged; reuse on disk". A nil
// hash means the module has no hash directory (Runtime-kind modules);
// every other kind passes a concrete hash.
func (b *Builder) BuildModule(moduleRoot string, hash *dephash.Hash, includeTests bool) (*image.ImageCommonEntry, error) {
	lock := buildlock.New(moduleRoot)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, builderr.Wrap(builderr.LockContention, "failed to acquire module build lock", err)
	}
	if !acquired {
		return nil, builderr.LockContentionf(moduleRoot)
	}
	defer lock.Unlock()

	manifestPath := layout.ManifestPath(moduleRoot)
	m, err := manifest.Load(manifestPath)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			return nil, builderr.ManifestMissingf(manifestPath)
		}
		return nil, builderr.ManifestMalformedf(manifestPath, err)
	}
	if m.Seal {
		return nil, builderr.Sealedf(m.Name)
	}

	hashDir := layout.HashDir(moduleRoot, hash)
	manifestMetaPath := layout.ManifestMetaPath(hashDir)

	manifestTime, manifestHasTime := statTime(manifestPath)

	// A load error here (missing or malformed) both mean "no usable
	// meta"; only the caller needs to fold that into staleness, which is
	// why metastore.Load's own contract can still surface malformed
	// content as an error elsewhere (see DESIGN.md).
	manifestMeta, _ := metastore.Load(manifestMetaPath)
	manifestStale := metastore.Stale(manifestMeta, manifestTime, manifestHasTime)

	imports := buildImports(m)
	depNames := dependencyNames(m)

	var sources []scan.Source
	for _, root := range layout.SourceRoots(moduleRoot, includeTests) {
		found, err := scan.Sources(root)
		if err != nil {
			return nil, builderr.ImageIoErrorf(root, err)
		}
		sources = append(sources, found...)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].RelPath < sources[j].RelPath })

	anyRebuilt := false
	canonicalNames := make([]string, 0, len(sources))
	objectPaths := make(map[string]string, len(sources))

	for _, src := range sources {
		canonical := layout.CanonicalName(src.RelPath)
		canonicalNames = append(canonicalNames, canonical)
		objPath := layout.ObjectPath(hashDir, canonical)
		objectPaths[canonical] = objPath

		objMeta, _ := metastore.Load(layout.MetaPath(objPath))
		_, statErr := os.Stat(objPath)
		objectMissing := os.IsNotExist(statErr)
		srcStale := metastore.Stale(objMeta, src.ModTime, src.HasModTime)

		if !manifestStale && !objectMissing && !srcStale {
			continue
		}
		anyRebuilt = true

		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, builderr.ImageIoErrorf(src.Path, err)
		}

		fullSubmodule := layout.FullSubmoduleName(m.Name, canonical)
		unit, err := b.Assembler.Assemble(src.Path, data, fullSubmodule, canonical)
		if err != nil {
			return nil, builderr.AssemblerErrorf(src.Path, err)
		}
		if err := b.Codec.WriteObject(objPath, unit); err != nil {
			return nil, builderr.ImageIoErrorf(objPath, err)
		}
		if err := metastore.Save(layout.MetaPath(objPath), metastore.NewFileMeta(src.ModTime, src.HasModTime, depNames)); err != nil {
			return nil, builderr.MetaIoErrorf(layout.MetaPath(objPath), err)
		}
	}

	sharedImagePath := layout.SharedModuleImagePath(hashDir, m.Name)
	_, statErr := os.Stat(sharedImagePath)
	imageMissing := os.IsNotExist(statErr)

	var result *image.ImageCommonEntry
	if anyRebuilt || imageMissing {
		units := make([]image.ObjectUnit, 0, len(canonicalNames))
		for _, canonical := range canonicalNames {
			u, err := b.Codec.ReadObject(objectPaths[canonical])
			if err != nil {
				return nil, builderr.ImageIoErrorf(objectPaths[canonical], err)
			}
			units = append(units, u)
		}
		entry, blob, err := b.Linker.Link(m.Name, m.Version, imports, units)
		if err != nil {
			return nil, builderr.StaticLinkErrorf(m.Name, err)
		}
		if err := b.Codec.WriteModule(sharedImagePath, entry, blob); err != nil {
			return nil, builderr.ImageIoErrorf(sharedImagePath, err)
		}
		result = &entry
	}

	if manifestStale {
		if err := metastore.Save(manifestMetaPath, metastore.NewFileMeta(manifestTime, manifestHasTime, depNames)); err != nil {
			return nil, builderr.MetaIoErrorf(manifestMetaPath, err)
		}
	}

	return result, nil
}

// LoadOrBuildModule implements §4.4's load-or-build shortcut: a sealed
// module (or a caller that does not want modification checked) with an
// existing image is deserialized directly; otherwise the build pipeline
// runs, and an "unchanged" result falls back to loading the image that
// is already on disk. A nil hash means the module has no hash directory
// (Runtime-kind modules).
func (b *Builder) LoadOrBuildModule(moduleRoot string, hash *dephash.Hash, includeTests, checkMod bool) (image.ImageCommonEntry, error) {
	manifestPath := layout.ManifestPath(moduleRoot)
	m, err := manifest.Load(manifestPath)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			return image.ImageCommonEntry{}, builderr.ManifestMissingf(manifestPath)
		}
		return image.ImageCommonEntry{}, builderr.ManifestMalformedf(manifestPath, err)
	}

	hashDir := layout.HashDir(moduleRoot, hash)
	sharedImagePath := layout.SharedModuleImagePath(hashDir, m.Name)
	_, statErr := os.Stat(sharedImagePath)
	imageExists := statErr == nil

	if imageExists && (m.Seal || !checkMod) {
		entry, _, err := b.Codec.ReadModule(sharedImagePath)
		if err != nil {
			return image.ImageCommonEntry{}, builderr.ImageIoErrorf(sharedImagePath, err)
		}
		return entry, nil
	}
	if m.Seal {
		return image.ImageCommonEntry{}, builderr.SealedMissingImagef(m.Name, sharedImagePath)
	}

	built, err := b.BuildModule(moduleRoot, hash, includeTests)
	if err != nil {
		return image.ImageCommonEntry{}, err
	}
	if built != nil {
		return *built, nil
	}

	entry, _, err := b.Codec.ReadModule(sharedImagePath)
	if err != nil {
		return image.ImageCommonEntry{}, builderr.ImageIoErrorf(sharedImagePath, err)
	}
	return entry, nil
}

func statTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	mt := info.ModTime()
	if mt.IsZero() {
		return time.Time{}, false
	}
	return mt, true
}

func buildImports(m *manifest.Manifest) []image.ImportEntry {
	names := dependencyNames(m)
	out := make([]image.ImportEntry, 0, len(names))
	for _, name := range names {
		out = append(out, image.ImportEntry{Name: name, Dependency: m.Dependencies[name]})
	}
	return out
}

// dependencyNames returns the manifest's declared dependency names in
// sorted order, excluding SelfReference (skipped during traversal, §3).
func dependencyNames(m *manifest.Manifest) []string {
	names := make([]string, 0, len(m.Dependencies))
	for name, dep := range m.Dependencies {
		if dep.Kind == manifest.SelfReference {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
