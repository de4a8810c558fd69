// Package appbuild is the top-level orchestrator: build the main module,
// drive the Dependency Resolver, sort modules by dependency depth,
// invoke the dynamic-link indexer, and serialize the final application
// image (§4.6).
package appbuild

import (
	"context"
	"errors"

	"github.com/ancbuild/anc/internal/buildlog"
	"github.com/ancbuild/anc/internal/builderr"
	"github.com/ancbuild/anc/internal/dephash"
	"github.com/ancbuild/anc/internal/image"
	"github.com/ancbuild/anc/internal/layout"
	"github.com/ancbuild/anc/internal/manifest"
	"github.com/ancbuild/anc/internal/modulebuild"
	"github.com/ancbuild/anc/internal/resolve"
)

// DefaultEntryPoint is the default entry point name (§6 "Entry points
// naming"). Build lists it as the application's only entry point;
// additional executable units under app/ and unit tests under tests/ get
// no entry points of their own.
const DefaultEntryPoint = "_start"

// Builder wires the module builder, resolver, dynamic linker, and codec
// into the application build pipeline.
type Builder struct {
	ModuleBuilder *modulebuild.Builder
	Resolver      *resolve.Resolver
	Linker        image.DynamicLinker
	Codec         image.Codec
	Log           buildlog.Logger
}

// NewDefaultBuilder wires a resolver's own module builder with the
// reference dynamic linker and codec.
func NewDefaultBuilder(resolver *resolve.Resolver) *Builder {
	return &Builder{
		ModuleBuilder: resolver.Builder,
		Resolver:      resolver,
		Linker:        image.ReferenceDynamicLinker{},
		Codec:         image.JSONCodec{},
		Log:           buildlog.Default(),
	}
}

// Build runs the full §4.6 procedure and writes the application image
// to moduleRoot's output directory. It returns the main entry, the
// final index, and the path the image was written to.
func (b *Builder) Build(ctx context.Context, moduleRoot string, includeTests bool) (image.ImageCommonEntry, image.ImageIndexEntry, string, error) {
	mainManifest, err := loadMainManifest(moduleRoot)
	if err != nil {
		return image.ImageCommonEntry{}, image.ImageIndexEntry{}, "", err
	}

	log := buildlog.Module(b.Log, mainManifest.Name)
	log.Info("building main module")

	mainEntry, err := b.ModuleBuilder.LoadOrBuildModule(moduleRoot, dephash.Ptr(dephash.Zero), includeTests, true)
	if err != nil {
		return image.ImageCommonEntry{}, image.ImageIndexEntry{}, "", err
	}

	res, err := b.Resolver.Resolve(ctx, moduleRoot, manifest.Local, mainManifest)
	if err != nil {
		return image.ImageCommonEntry{}, image.ImageIndexEntry{}, "", err
	}
	for _, e := range res.Entries {
		buildlog.Phase(log, "resolve").WithField("dependency", e.Name).Debug("resolved module")
	}

	byName := make(map[string]image.ImageCommonEntry, len(res.Entries))
	locByName := make(map[string]image.DynamicLinkModuleEntry, len(res.Locations))
	for i, e := range res.Entries {
		byName[e.Name] = e
		locByName[e.Name] = res.Locations[i]
	}

	order := PostOrderNames(mainEntry, byName)
	depthSorted := make([]image.DynamicLinkModuleEntry, 0, len(order))
	for _, name := range order {
		depthSorted = append(depthSorted, locByName[name])
	}

	entryPoints := []image.EntryPoint{{Name: DefaultEntryPoint}}
	idx, err := b.Linker.Index(mainEntry, depthSorted, entryPoints)
	if err != nil {
		return image.ImageCommonEntry{}, image.ImageIndexEntry{}, "", builderr.DynamicLinkErrorf(err)
	}

	idx.Modules = append([]image.DynamicLinkModuleEntry{
		{Name: mainEntry.Name, Location: image.ModuleLocation{Kind: image.LocEmbed}},
	}, idx.Modules...)

	outPath := layout.ApplicationImagePath(moduleRoot, mainEntry.Name)
	if err := b.Codec.WriteApplication(outPath, mainEntry, idx); err != nil {
		return image.ImageCommonEntry{}, image.ImageIndexEntry{}, "", builderr.ImageIoErrorf(outPath, err)
	}

	log.WithField("path", outPath).Info("wrote application image")
	return mainEntry, idx, outPath, nil
}

// DryResolve runs the resolver without building or serializing the
// application image, a validate-only entry point for checking that a
// dependency graph resolves cleanly before committing to a full build.
func (b *Builder) DryResolve(ctx context.Context, moduleRoot string) (*resolve.Result, error) {
	mainManifest, err := loadMainManifest(moduleRoot)
	if err != nil {
		return nil, err
	}
	return b.Resolver.Resolve(ctx, moduleRoot, manifest.Local, mainManifest)
}

func loadMainManifest(moduleRoot string) (*manifest.Manifest, error) {
	path := layout.ManifestPath(moduleRoot)
	m, err := manifest.Load(path)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			return nil, builderr.ManifestMissingf(path)
		}
		return nil, builderr.ManifestMalformedf(path, err)
	}
	return m, nil
}

// PostOrderNames returns every name reachable from main's own imports in
// depth-first post order (children before parents, i.e. leaves first),
// each name appearing exactly once. Uses an explicit stack, never
// recursion, so it tolerates arbitrarily deep graphs (§9 design note).
// Exported so the single-file builder can depth-sort its own resolved
// set without re-implementing this walk (§9: do not duplicate).
func PostOrderNames(main image.ImageCommonEntry, byName map[string]image.ImageCommonEntry) []string {
	type frame struct {
		name     string
		children []string
		idx      int
	}

	visited := map[string]bool{}
	var order []string

	stack := []frame{{children: importNames(main.Imports)}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.idx < len(top.children) {
			child := top.children[top.idx]
			top.idx++
			if visited[child] {
				continue
			}
			entry, ok := byName[child]
			if !ok {
				continue
			}
			visited[child] = true
			stack = append(stack, frame{name: child, children: importNames(entry.Imports)})
			continue
		}
		if top.name != "" {
			order = append(order, top.name)
		}
		stack = stack[:len(stack)-1]
	}
	return order
}

func importNames(imports []image.ImportEntry) []string {
	names := make([]string, 0, len(imports))
	for _, imp := range imports {
		if imp.Dependency.Kind == manifest.SelfReference {
			continue
		}
		names = append(names, imp.Name)
	}
	return names
}
