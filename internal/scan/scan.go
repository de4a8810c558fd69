// Package scan recursively enumerates assembly source files and lists
// object files under a module's roots (§4.2).
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ancbuild/anc/internal/layout"
)

// Source describes one discovered assembly source file.
type Source struct {
	// Path is the absolute path on disk.
	Path string
	// RelPath is the path relative to the scanned root, slash-separated.
	RelPath string
	// ModTime is the file's last-modification time. HasModTime is false
	// when the filesystem reported no usable timestamp (§4.2).
	ModTime    time.Time
	HasModTime bool
}

// Sources performs a breadth-first descent of root, collecting every file
// with the assembly extension. A missing root yields an empty list, not
// an error (§4.2). Traversal order is stable (lexical per directory
// level) even though the contract only requires "each file exactly
// once" — a stable order makes the rest of the pipeline's de-duplication
// reproducible across runs (§5 ordering requirement).
func Sources(root string) ([]Source, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Source
	queue := []string{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			if e.IsDir() {
				queue = append(queue, full)
				continue
			}
			if filepath.Ext(e.Name()) != layout.SourceExt {
				continue
			}
			info, err := e.Info()
			if err != nil {
				return nil, err
			}
			rel, err := filepath.Rel(root, full)
			if err != nil {
				return nil, err
			}
			src := Source{
				Path:    full,
				RelPath: filepath.ToSlash(rel),
			}
			if mt := info.ModTime(); !mt.IsZero() {
				src.ModTime = mt
				src.HasModTime = true
			}
			out = append(out, src)
		}
	}
	return out, nil
}

// Objects lists the object files directly present in dir (the module's
// object directory), keyed by canonical name (file stem). A missing dir
// yields an empty map.
func Objects(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	out := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != layout.ObjectExt {
			continue
		}
		name := e.Name()[:len(e.Name())-len(layout.ObjectExt)]
		out[name] = filepath.Join(dir, e.Name())
	}
	return out, nil
}
