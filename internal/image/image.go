// Package image defines the data types and collaborator interfaces for
// the binary image format: object units, shared-module images, and the
// application image index (§3, §6). The assembler, static linker,
// dynamic-link indexer, and serialization codec are all out of core
// scope (§1) — this package only declares the interfaces the core
// consumes and a minimal JSON-backed reference implementation of each,
// sufficient to exercise the scenarios in §8 end to end.
package image

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ancbuild/anc/internal/dephash"
	"github.com/ancbuild/anc/internal/manifest"
)

// ImportEntry is one resolved import of a module: the name it is known
// by locally, and the dependency record that produced it.
type ImportEntry struct {
	Name       string                      `json:"name"`
	Dependency manifest.ModuleDependency   `json:"dependency"`
}

// ImageCommonEntry is produced by the assembler/linker and consumed
// opaquely by the resolver and application builder (§3).
type ImageCommonEntry struct {
	Name    string        `json:"name"`
	Version string        `json:"version"`
	Imports []ImportEntry `json:"imports"`
}

// LocationKind discriminates the five ModuleLocation cases (§3). This is
// a closed tagged union: every switch over Kind must handle all cases.
type LocationKind string

const (
	LocEmbed  LocationKind = "embed"
	LocLocal  LocationKind = "local"
	LocRemote LocationKind = "remote"
	LocShare  LocationKind = "share"
	LocRuntime LocationKind = "runtime"
)

// ModuleLocation tells the loader where to find a dependency's image at
// run time.
type ModuleLocation struct {
	Kind LocationKind `json:"kind"`

	// Local
	Path string `json:"path,omitempty"`

	// Local, Remote, Share all carry a hash.
	Hash dephash.Hash `json:"hash"`

	// Share
	Version string `json:"version,omitempty"`
}

// DynamicLinkModuleEntry names one module in the application index plus
// its runtime location.
type DynamicLinkModuleEntry struct {
	Name     string         `json:"name"`
	Location ModuleLocation `json:"location"`
}

// EntryPoint is one executable or test entry point exposed by the
// application (§6 "Entry points naming").
type EntryPoint struct {
	Name string `json:"name"`
}

// ImageIndexEntry enumerates every transitive dependency and entry point
// of an application image. The main module always occupies index 0 with
// location Embed (§3).
type ImageIndexEntry struct {
	Modules     []DynamicLinkModuleEntry `json:"modules"`
	EntryPoints []EntryPoint             `json:"entry_points"`
}

// ObjectUnit is the compiled, unlinked form of one assembly source
// (§GLOSSARY "Object entry"). Its payload is opaque to the core; the
// reference codec below stores it as raw bytes plus the metadata the
// core itself needs (name, submodule path).
type ObjectUnit struct {
	CanonicalName string `json:"canonical_name"`
	SubmoduleName string `json:"submodule_name"`
	Payload       []byte `json:"payload"`
}

// Assembler turns one source file's text into an ObjectUnit (§1, §4.4
// step 5). It is an external collaborator; the core only calls it.
type Assembler interface {
	Assemble(sourcePath string, source []byte, fullSubmoduleName, canonicalName string) (ObjectUnit, error)
}

// StaticLinker combines a module's object units into one
// ImageCommonEntry plus its serialized shared-module image bytes
// (§4.4 step 6).
type StaticLinker interface {
	Link(name, version string, imports []ImportEntry, objects []ObjectUnit) (ImageCommonEntry, []byte, error)
}

// DynamicLinker produces the ImageIndexEntry for an application build
// from the depth-sorted dependency list (§4.6 step 5).
type DynamicLinker interface {
	Index(main ImageCommonEntry, depthSorted []DynamicLinkModuleEntry, entryPoints []EntryPoint) (ImageIndexEntry, error)
}

// Codec reads and writes the three artifact flavors: object (unlinked),
// module (statically linked), and application (dynamically linked
// index). Object and module share one on-disk representation
// discriminated by a "linked" flag (§6); application images additionally
// carry the index.
type Codec interface {
	WriteObject(path string, unit ObjectUnit) error
	ReadObject(path string) (ObjectUnit, error)

	WriteModule(path string, entry ImageCommonEntry, blob []byte) error
	ReadModule(path string) (ImageCommonEntry, []byte, error)

	WriteApplication(path string, main ImageCommonEntry, index ImageIndexEntry) error
	ReadApplication(path string) (ImageCommonEntry, ImageIndexEntry, error)

	// Encode serializes an application image to an in-memory buffer,
	// used by the single-file builder which never touches disk (§4.7 step 5).
	Encode(main ImageCommonEntry, index ImageIndexEntry) ([]byte, error)
	Decode(data []byte) (ImageCommonEntry, ImageIndexEntry, error)
}

// jsonFlavor discriminates the payload shape written to disk (§6: "two
// flavors ... discriminated by a boolean flag passed to the writer").
type jsonFlavor struct {
	Linked bool             `json:"linked"`
	Object *ObjectUnit      `json:"object,omitempty"`
	Entry  *ImageCommonEntry `json:"entry,omitempty"`
	Blob   []byte           `json:"blob,omitempty"`
	Index  *ImageIndexEntry `json:"index,omitempty"`
}

// JSONCodec is the reference Codec implementation: every artifact is a
// JSON document. It exists only to make the core's scenarios observable
// without a real assembler/linker/VM; a production build driver would
// swap in the real binary image format behind the same interface.
type JSONCodec struct{}

func (JSONCodec) WriteObject(path string, unit ObjectUnit) error {
	f := jsonFlavor{Linked: false, Object: &unit}
	return writeJSON(path, f)
}

func (JSONCodec) ReadObject(path string) (ObjectUnit, error) {
	var f jsonFlavor
	if err := readJSON(path, &f); err != nil {
		return ObjectUnit{}, err
	}
	if f.Linked || f.Object == nil {
		return ObjectUnit{}, fmt.Errorf("image: %s is not an object unit", path)
	}
	return *f.Object, nil
}

func (JSONCodec) WriteModule(path string, entry ImageCommonEntry, blob []byte) error {
	f := jsonFlavor{Linked: true, Entry: &entry, Blob: blob}
	return writeJSON(path, f)
}

func (JSONCodec) ReadModule(path string) (ImageCommonEntry, []byte, error) {
	var f jsonFlavor
	if err := readJSON(path, &f); err != nil {
		return ImageCommonEntry{}, nil, err
	}
	if !f.Linked || f.Entry == nil {
		return ImageCommonEntry{}, nil, fmt.Errorf("image: %s is not a module image", path)
	}
	return *f.Entry, f.Blob, nil
}

func (c JSONCodec) WriteApplication(path string, main ImageCommonEntry, index ImageIndexEntry) error {
	data, err := c.Encode(main, index)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("image: failed to create dir for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c JSONCodec) ReadApplication(path string) (ImageCommonEntry, ImageIndexEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageCommonEntry{}, ImageIndexEntry{}, fmt.Errorf("image: failed to read %s: %w", path, err)
	}
	return c.Decode(data)
}

func (JSONCodec) Encode(main ImageCommonEntry, index ImageIndexEntry) ([]byte, error) {
	f := jsonFlavor{Linked: true, Entry: &main, Index: &index}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("image: failed to encode application image: %w", err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte) (ImageCommonEntry, ImageIndexEntry, error) {
	var f jsonFlavor
	if err := json.Unmarshal(data, &f); err != nil {
		return ImageCommonEntry{}, ImageIndexEntry{}, fmt.Errorf("image: malformed application image: %w", err)
	}
	if f.Entry == nil || f.Index == nil {
		return ImageCommonEntry{}, ImageIndexEntry{}, fmt.Errorf("image: application image missing entry or index")
	}
	return *f.Entry, *f.Index, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("image: failed to encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("image: failed to create dir for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("image: failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("image: malformed %s: %w", path, err)
	}
	return nil
}

// ReferenceAssembler is a minimal Assembler: it stores the source bytes
// verbatim as the object unit's payload. It exists to exercise the
// Module Builder's staleness/assembly pipeline without a real front end.
type ReferenceAssembler struct{}

func (ReferenceAssembler) Assemble(sourcePath string, source []byte, fullSubmoduleName, canonicalName string) (ObjectUnit, error) {
	return ObjectUnit{
		CanonicalName: canonicalName,
		SubmoduleName: fullSubmoduleName,
		Payload:       source,
	}, nil
}

// ReferenceStaticLinker concatenates object payloads into one blob and
// reports the module's own name/version/imports as the ImageCommonEntry.
type ReferenceStaticLinker struct{}

func (ReferenceStaticLinker) Link(name, version string, imports []ImportEntry, objects []ObjectUnit) (ImageCommonEntry, []byte, error) {
	var blob []byte
	for _, o := range objects {
		blob = append(blob, o.Payload...)
	}
	entry := ImageCommonEntry{Name: name, Version: version, Imports: imports}
	return entry, blob, nil
}

// ReferenceDynamicLinker builds the index by prepending nothing (the
// caller is expected to have already placed the main module); it simply
// carries the depth-sorted dependency list and entry points through.
type ReferenceDynamicLinker struct{}

func (ReferenceDynamicLinker) Index(main ImageCommonEntry, depthSorted []DynamicLinkModuleEntry, entryPoints []EntryPoint) (ImageIndexEntry, error) {
	return ImageIndexEntry{Modules: depthSorted, EntryPoints: entryPoints}, nil
}
