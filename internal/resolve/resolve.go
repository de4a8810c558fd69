// Package resolve implements the Dependency Resolver: given a root
// module, produce the complete transitive closure by walking manifests
// breadth-first, enforcing kind-legality rules, de-duplicating repeated
// modules with version arbitration, and pruning dangling nodes (§4.5).
//
// This deliberately takes an already-resolved main module path and
// manifest rather than building main itself, so both the Application
// Builder and the Single-File Builder can drive the same resolver
// without duplicating it (§9 design note).
package resolve

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/ancbuild/anc/internal/builderr"
	"github.com/ancbuild/anc/internal/dephash"
	"github.com/ancbuild/anc/internal/fetch"
	"github.com/ancbuild/anc/internal/image"
	"github.com/ancbuild/anc/internal/manifest"
	"github.com/ancbuild/anc/internal/modulebuild"
	"github.com/ancbuild/anc/internal/runtimeprop"
	"github.com/ancbuild/anc/internal/version"
)

// Module is one resolved, deduplicated dependency in the final closure.
type Module struct {
	Name       string
	Kind       manifest.DependencyKind
	Dependency manifest.ModuleDependency
	Path       string
	Hash       dephash.Hash
	Entry      image.ImageCommonEntry

	// Trace is the chain of import names from the main module down to
	// this one (main excluded), used to annotate resolver errors with
	// the BFS path to the offending edge.
	Trace []string
}

// Result is the resolver's full output: the ordered image entries and
// their corresponding dynamic-link locations (§4.5's return type).
type Result struct {
	Entries   []image.ImageCommonEntry
	Locations []image.DynamicLinkModuleEntry
}

// Resolver drives dependency resolution against injected collaborators.
type Resolver struct {
	Builder  *modulebuild.Builder
	Fetcher  fetch.Fetcher
	Registry fetch.RegistryClient
	Props    *runtimeprop.Properties
}

type workItem struct {
	parentPath string
	parentKind manifest.DependencyKind
	parentName string
	importName string
	dep        manifest.ModuleDependency

	// trace is the chain of import names from the main module down to
	// (but not including) importName itself.
	trace []string
}

// Resolve walks the transitive closure rooted at mainModulePath,
// interpreted as a module of mainKind, using mainManifest's own
// dependency declarations as the first generation of work items.
func (r *Resolver) Resolve(ctx context.Context, mainModulePath string, mainKind manifest.DependencyKind, mainManifest *manifest.Manifest) (*Result, error) {
	queue := make([]workItem, 0, len(mainManifest.Dependencies))
	for _, name := range sortedDependencyNames(mainManifest) {
		dep := mainManifest.Dependencies[name]
		if dep.Kind == manifest.SelfReference {
			continue
		}
		queue = append(queue, workItem{
			parentPath: mainModulePath,
			parentKind: mainKind,
			parentName: mainManifest.Name,
			importName: name,
			dep:        dep,
		})
	}

	var loaded []Module
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		trace := append(append([]string{}, item.trace...), item.importName)

		if bad, reason := forbidden(item.parentKind, item.dep.Kind); bad {
			return nil, builderr.DependencyKindViolationf(item.parentName, item.importName, reason).WithTrace(trace)
		}

		path, hash, checkMod, err := r.resolveLocation(ctx, item.parentPath, item.importName, item.dep)
		if err != nil {
			if be, ok := err.(*builderr.Error); ok && be.Code == builderr.DependencyKindViolation {
				return nil, be.WithTrace(trace)
			}
			return nil, err
		}

		entry, err := r.Builder.LoadOrBuildModule(path, hash, false, checkMod)
		if err != nil {
			return nil, err
		}

		rm := Module{
			Name:       item.importName,
			Kind:       item.dep.Kind,
			Dependency: item.dep,
			Path:       path,
			Hash:       derefHash(hash),
			Entry:      entry,
			Trace:      trace,
		}
		loaded = append(loaded, rm)

		for _, name := range sortedImportNames(entry.Imports) {
			imp := importByName(entry.Imports, name)
			if imp.Dependency.Kind == manifest.SelfReference {
				continue
			}
			queue = append(queue, workItem{
				parentPath: path,
				parentKind: item.dep.Kind,
				parentName: item.importName,
				importName: name,
				dep:        imp.Dependency,
				trace:      trace,
			})
		}
	}

	kept, order, err := dedup(loaded)
	if err != nil {
		return nil, err
	}

	reached := prune(mainManifest, kept, order)

	result := &Result{}
	for _, name := range order {
		if !reached[name] {
			continue
		}
		m := kept[name]
		result.Entries = append(result.Entries, m.Entry)
		result.Locations = append(result.Locations, locationFor(m))
	}
	return result, nil
}

func forbidden(parent, child manifest.DependencyKind) (bool, string) {
	switch parent {
	case manifest.Remote:
		if child == manifest.Local {
			return true, "a remote module cannot declare a local dependency"
		}
	case manifest.Share, manifest.Runtime:
		if child == manifest.Local || child == manifest.Remote {
			return true, "a share or runtime module cannot declare a local or remote dependency"
		}
	}
	return false, ""
}

// resolveLocation locates the module root for dep and the hash directory
// it builds or loads under. A nil hash means no hash directory at all:
// Runtime-kind modules resolve directly under the builtin module's own
// output/ tree, with no per-configuration subdirectory (§4.1).
func (r *Resolver) resolveLocation(ctx context.Context, parentPath, name string, dep manifest.ModuleDependency) (path string, hash *dephash.Hash, checkMod bool, err error) {
	switch dep.Kind {
	case manifest.Local:
		return filepath.Clean(filepath.Join(parentPath, dep.Path)), dephash.Ptr(dephash.Zero), true, nil

	case manifest.Remote:
		repoPath, ferr := r.Fetcher.Fetch(ctx, dep.URL, r.Props.Repositories)
		if ferr != nil {
			return "", nil, false, builderr.FetchFailuref(dep.URL, dep.Revision, ferr)
		}
		modulesDir := filepath.Join(r.Props.Modules, name, "remote")
		modulePath, cerr := r.Fetcher.Checkout(ctx, repoPath, dep.Revision, modulesDir)
		if cerr != nil {
			return "", nil, false, builderr.FetchFailuref(dep.URL, dep.Revision, cerr)
		}
		return modulePath, dephash.Ptr(dephash.Zero), false, nil

	case manifest.Share:
		url, revision, lerr := r.Registry.Lookup(ctx, r.Props.RegistryURLs, name, dep.Version)
		if lerr != nil {
			return "", nil, false, builderr.RegistryMissf(name, dep.Version)
		}
		repoPath, ferr := r.Fetcher.Fetch(ctx, url, r.Props.Repositories)
		if ferr != nil {
			return "", nil, false, builderr.FetchFailuref(url, revision, ferr)
		}
		modulesDir := filepath.Join(r.Props.Modules, name, dep.Version)
		modulePath, cerr := r.Fetcher.Checkout(ctx, repoPath, revision, modulesDir)
		if cerr != nil {
			return "", nil, false, builderr.FetchFailuref(url, revision, cerr)
		}
		return modulePath, dephash.Ptr(dephash.Zero), false, nil

	case manifest.Runtime:
		return filepath.Join(r.Props.BuiltinModules, name), nil, false, nil

	default:
		return "", nil, false, builderr.DependencyKindViolationf(name, string(dep.Kind), "unresolvable dependency kind")
	}
}

// derefHash returns the zero hash for a nil pointer, used where a
// resolved Module still needs a concrete Hash value (e.g. for the
// serialized dynamic-link location of non-Runtime kinds).
func derefHash(h *dephash.Hash) dephash.Hash {
	if h == nil {
		return dephash.Zero
	}
	return *h
}

// bothTraces renders the BFS paths of two conflicting module records,
// joined so an error's trace shows both the incumbent and the newcomer
// edge (§9 supplement: resolution trace collection).
func bothTraces(incumbent, newcomer Module) []string {
	out := make([]string, 0, len(incumbent.Trace)+len(newcomer.Trace)+2)
	out = append(out, "incumbent:")
	out = append(out, incumbent.Trace...)
	out = append(out, "newcomer:")
	out = append(out, newcomer.Trace...)
	return out
}

// dedup applies §4.5 phase 2's arbitration, in BFS discovery order.
func dedup(loaded []Module) (map[string]Module, []string, error) {
	kept := map[string]Module{}
	var order []string

	for _, rm := range loaded {
		existing, ok := kept[rm.Name]
		if !ok {
			kept[rm.Name] = rm
			order = append(order, rm.Name)
			continue
		}

		if existing.Dependency.Equal(rm.Dependency) {
			continue
		}

		switch {
		case existing.Kind == manifest.Local && rm.Kind == manifest.Local:
			if existing.Path == rm.Path {
				continue
			}
			return nil, nil, builderr.DependencyConflictf(rm.Name, "source conflict: different local paths").WithTrace(bothTraces(existing, rm))

		case existing.Kind == manifest.Remote && rm.Kind == manifest.Remote:
			return nil, nil, builderr.DependencyConflictf(rm.Name, "source conflict: remote duplicates always conflict").WithTrace(bothTraces(existing, rm))

		case existing.Kind == manifest.Share && rm.Kind == manifest.Share:
			incumbentV, ierr := version.Parse(existing.Dependency.Version)
			newcomerV, nerr := version.Parse(rm.Dependency.Version)
			if ierr != nil || nerr != nil {
				return nil, nil, builderr.DependencyConflictf(rm.Name, "malformed version").WithTrace(bothTraces(existing, rm))
			}
			switch version.Compare(newcomerV, incumbentV) {
			case version.Equal, version.LessThan:
				continue
			case version.GreaterThan:
				kept[rm.Name] = rm
			case version.Conflict:
				return nil, nil, builderr.VersionConflictf(rm.Name, existing.Dependency.Version, rm.Dependency.Version).WithTrace(bothTraces(existing, rm))
			}

		default:
			return nil, nil, builderr.DependencyConflictf(rm.Name, "different type").WithTrace(bothTraces(existing, rm))
		}
	}
	return kept, order, nil
}

// prune implements §4.5 phase 3: an iterative reachability walk from
// main's direct dependencies through the deduplicated closure.
func prune(mainManifest *manifest.Manifest, kept map[string]Module, order []string) map[string]bool {
	reached := map[string]bool{}
	var stack []string
	for _, name := range sortedDependencyNames(mainManifest) {
		if mainManifest.Dependencies[name].Kind == manifest.SelfReference {
			continue
		}
		stack = append(stack, name)
	}

	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[name] {
			continue
		}
		reached[name] = true

		m, ok := kept[name]
		if !ok {
			continue
		}
		for _, imp := range m.Entry.Imports {
			if imp.Dependency.Kind == manifest.SelfReference {
				continue
			}
			if !reached[imp.Name] {
				stack = append(stack, imp.Name)
			}
		}
	}
	return reached
}

func locationFor(m Module) image.DynamicLinkModuleEntry {
	var loc image.ModuleLocation
	switch m.Kind {
	case manifest.Local:
		loc = image.ModuleLocation{Kind: image.LocLocal, Path: m.Path, Hash: m.Hash}
	case manifest.Remote:
		loc = image.ModuleLocation{Kind: image.LocRemote, Hash: m.Hash}
	case manifest.Share:
		loc = image.ModuleLocation{Kind: image.LocShare, Version: m.Dependency.Version, Hash: m.Hash}
	case manifest.Runtime:
		loc = image.ModuleLocation{Kind: image.LocRuntime}
	}
	return image.DynamicLinkModuleEntry{Name: m.Name, Location: loc}
}

func sortedDependencyNames(m *manifest.Manifest) []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedImportNames(imports []image.ImportEntry) []string {
	names := make([]string, 0, len(imports))
	for _, imp := range imports {
		names = append(names, imp.Name)
	}
	sort.Strings(names)
	return names
}

func importByName(imports []image.ImportEntry, name string) image.ImportEntry {
	for _, imp := range imports {
		if imp.Name == name {
			return imp
		}
	}
	return image.ImportEntry{}
}
