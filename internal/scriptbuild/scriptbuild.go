// Package scriptbuild implements the single-file "script" entry point:
// recover an optional inline configuration from a source file's comment
// prelude, assemble the file as the sole "main" submodule, then drive
// the same dependency-resolution pipeline as a full application build,
// serializing the result into memory instead of to disk (§4.7).
package scriptbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ancbuild/anc/internal/appbuild"
	"github.com/ancbuild/anc/internal/builderr"
	"github.com/ancbuild/anc/internal/image"
	"github.com/ancbuild/anc/internal/layout"
	"github.com/ancbuild/anc/internal/manifest"
	"github.com/ancbuild/anc/internal/resolve"
)

// ConfigMarker is the token that must open a block comment's trimmed
// body for it to be recognized as the inline configuration (§6).
const ConfigMarker = "@config"

// Builder wires the collaborators the single-file pipeline needs. It
// holds its own Resolver (which owns a modulebuild.Builder) so it can
// drive dependency resolution exactly as the Application Builder does,
// without re-implementing the resolver (§9 design note).
type Builder struct {
	Assembler image.Assembler
	Linker    image.StaticLinker
	DynLinker image.DynamicLinker
	Codec     image.Codec
	Resolver  *resolve.Resolver
	Edition   string
}

// NewDefaultBuilder wires the reference image collaborators.
func NewDefaultBuilder(resolver *resolve.Resolver, edition string) *Builder {
	return &Builder{
		Assembler: image.ReferenceAssembler{},
		Linker:    image.ReferenceStaticLinker{},
		DynLinker: image.ReferenceDynamicLinker{},
		Codec:     image.JSONCodec{},
		Resolver:  resolver,
		Edition:   edition,
	}
}

// Build runs the §4.7 procedure and returns the main image entry, the
// application index, and the serialized in-memory application image.
func (b *Builder) Build(ctx context.Context, sourcePath string) (image.ImageCommonEntry, image.ImageIndexEntry, []byte, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return image.ImageCommonEntry{}, image.ImageIndexEntry{}, nil, builderr.ImageIoErrorf(sourcePath, err)
	}

	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	m, err := loadOrSynthesizeManifest(data, stem, b.Edition)
	if err != nil {
		return image.ImageCommonEntry{}, image.ImageIndexEntry{}, nil, err
	}

	fullSubmodule := layout.FullSubmoduleName(m.Name, "main")
	unit, err := b.Assembler.Assemble(sourcePath, data, fullSubmodule, "main")
	if err != nil {
		return image.ImageCommonEntry{}, image.ImageIndexEntry{}, nil, builderr.AssemblerErrorf(sourcePath, err)
	}

	imports := sortedImports(m)
	entry, blob, err := b.Linker.Link(m.Name, m.Version, imports, []image.ObjectUnit{unit})
	if err != nil {
		return image.ImageCommonEntry{}, image.ImageIndexEntry{}, nil, builderr.StaticLinkErrorf(m.Name, err)
	}
	_ = blob // the single-file image never touches disk; the blob lives only inside the final encoded buffer

	parentDir := filepath.Dir(sourcePath)
	res, err := b.Resolver.Resolve(ctx, parentDir, manifest.Local, m)
	if err != nil {
		return image.ImageCommonEntry{}, image.ImageIndexEntry{}, nil, err
	}

	byName := make(map[string]image.ImageCommonEntry, len(res.Entries))
	locByName := make(map[string]image.DynamicLinkModuleEntry, len(res.Locations))
	for i, e := range res.Entries {
		byName[e.Name] = e
		locByName[e.Name] = res.Locations[i]
	}

	order := appbuild.PostOrderNames(entry, byName)
	depthSorted := make([]image.DynamicLinkModuleEntry, 0, len(order))
	for _, name := range order {
		depthSorted = append(depthSorted, locByName[name])
	}

	entryPoints := []image.EntryPoint{{Name: appbuild.DefaultEntryPoint}}
	idx, err := b.DynLinker.Index(entry, depthSorted, entryPoints)
	if err != nil {
		return image.ImageCommonEntry{}, image.ImageIndexEntry{}, nil, builderr.DynamicLinkErrorf(err)
	}
	idx.Modules = append([]image.DynamicLinkModuleEntry{
		{Name: entry.Name, Location: image.ModuleLocation{Kind: image.LocEmbed}},
	}, idx.Modules...)

	buf, err := b.Codec.Encode(entry, idx)
	if err != nil {
		return image.ImageCommonEntry{}, image.ImageIndexEntry{}, nil, builderr.ImageIoErrorf(sourcePath, err)
	}
	return entry, idx, buf, nil
}

func loadOrSynthesizeManifest(source []byte, stem, edition string) (*manifest.Manifest, error) {
	body, found := findConfigBlock(source)
	if !found {
		return manifest.Default(stem, edition), nil
	}
	m, err := parseInlineConfig(body)
	if err != nil {
		return nil, builderr.ManifestMalformedf("<inline @config>", err)
	}
	if m.Name == "" {
		m.Name = stem
	}
	if m.Edition == "" {
		m.Edition = edition
	}
	return m, nil
}

func sortedImports(m *manifest.Manifest) []image.ImportEntry {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	// deterministic order matches internal/modulebuild's own derivation.
	sortStrings(names)
	out := make([]image.ImportEntry, 0, len(names))
	for _, name := range names {
		out = append(out, image.ImportEntry{Name: name, Dependency: m.Dependencies[name]})
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// findConfigBlock scans source's comment prelude — the leading run of
// whitespace, line comments, and block comments before real content
// begins — for the first block comment whose trimmed body starts with
// ConfigMarker. Block comments are scanned with nesting depth tracking,
// so a nested "/* ... /* ... */ ... */" or an embedded "// ..." line
// inside the comment body never confuses the search for the real
// closing delimiter.
func findConfigBlock(source []byte) (string, bool) {
	i, n := 0, len(source)
	for i < n {
		for i < n && isSpace(source[i]) {
			i++
		}
		if i >= n {
			break
		}
		if i+1 < n && source[i] == '/' && source[i+1] == '/' {
			i += 2
			for i < n && source[i] != '\n' {
				i++
			}
			continue
		}
		if i+1 < n && source[i] == '/' && source[i+1] == '*' {
			start := i
			i += 2
			depth := 1
			for i < n && depth > 0 {
				if i+1 < n && source[i] == '/' && source[i+1] == '*' {
					depth++
					i += 2
					continue
				}
				if i+1 < n && source[i] == '*' && source[i+1] == '/' {
					depth--
					i += 2
					continue
				}
				i++
			}
			end := i
			inner := source[start:end]
			if len(inner) >= 4 {
				inner = inner[2 : len(inner)-2]
			}
			trimmed := strings.TrimSpace(string(inner))
			if strings.HasPrefix(trimmed, ConfigMarker) {
				return strings.TrimSpace(strings.TrimPrefix(trimmed, ConfigMarker)), true
			}
			continue
		}
		break
	}
	return "", false
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// parseInlineConfig decodes the compact "{key:value, ...}" body that
// follows the @config marker. This is deliberately not routed through
// the yaml.v3 manifest decoder: the inline grammar omits the space
// after ':' that YAML's flow-mapping syntax requires, so a small
// dedicated scanner is the only way to honor the literal marker format.
func parseInlineConfig(body string) (*manifest.Manifest, error) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		return nil, fmt.Errorf("scriptbuild: inline config must be a {...} block, got %q", body)
	}
	inner := body[1 : len(body)-1]

	m := manifest.Default("", "")
	for _, field := range splitTopLevelCommas(inner) {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		idx := strings.Index(field, ":")
		if idx < 0 {
			return nil, fmt.Errorf("scriptbuild: malformed field %q in inline config", field)
		}
		key := strings.TrimSpace(field[:idx])
		val := strings.Trim(strings.TrimSpace(field[idx+1:]), `"`)
		switch key {
		case "name":
			m.Name = val
		case "version":
			m.Version = val
		case "edition":
			m.Edition = val
		case "seal":
			m.Seal = val == "true"
		default:
			return nil, fmt.Errorf("scriptbuild: unknown inline config field %q", key)
		}
	}
	if m.Version == "" {
		m.Version = "1.0.0"
	}
	return m, nil
}

// splitTopLevelCommas splits s on commas that are not nested inside
// braces/brackets or quotes, so a future richer inline grammar (nested
// property/dependency maps) can extend this format without breaking
// the scalar fields parsed today.
func splitTopLevelCommas(s string) []string {
	var out []string
	depth := 0
	inQuotes := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			inQuotes = !inQuotes
		case '{', '[':
			if !inQuotes {
				depth++
			}
		case '}', ']':
			if !inQuotes {
				depth--
			}
		case ',':
			if !inQuotes && depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}
