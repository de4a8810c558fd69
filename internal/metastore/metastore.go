// Package metastore reads and writes the sidecar FileMeta record used to
// detect staleness of an artifact against its source (§4.3).
//
// Writes go through a temp-file-plus-rename sequence so a crash mid-write
// never leaves a partially-written meta file in place of a good one;
// grounded on the teacher's atomic-write helper in
// internal/eval_harness (write-to-temp, fsync, rename) adapted to a
// single small record instead of a benchmark report.
package metastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileMeta is the sidecar record for one artifact file (§3).
type FileMeta struct {
	// Timestamp is the artifact's source timestamp as of the last build
	// that produced it. HasTimestamp false means "no timestamp known",
	// which the staleness rule treats the same as "changed".
	Timestamp    time.Time `yaml:"-"`
	HasTimestamp bool      `yaml:"-"`

	// RawTimestamp backs Timestamp/HasTimestamp through YAML; it is a
	// Unix-nanosecond integer, omitted entirely when HasTimestamp is false.
	RawTimestamp *int64 `yaml:"timestamp,omitempty"`

	// Dependencies is the list of declared dependency names observed at
	// the time this meta was written.
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// NewFileMeta builds a FileMeta from a timestamp. If hasTimestamp is
// false, ts is ignored and the resulting meta has no timestamp.
func NewFileMeta(ts time.Time, hasTimestamp bool, deps []string) FileMeta {
	m := FileMeta{Dependencies: deps}
	if hasTimestamp {
		m.Timestamp = ts
		m.HasTimestamp = true
	}
	return m
}

func (m *FileMeta) beforeEncode() {
	if m.HasTimestamp {
		n := m.Timestamp.UnixNano()
		m.RawTimestamp = &n
	} else {
		m.RawTimestamp = nil
	}
}

func (m *FileMeta) afterDecode() {
	if m.RawTimestamp != nil {
		m.Timestamp = time.Unix(0, *m.RawTimestamp).UTC()
		m.HasTimestamp = true
	}
}

// Load reads the meta at path. It returns (nil, nil) if the file does
// not exist — absence is not an error (§4.3) — and a non-nil error for
// malformed contents, per the Meta Store's own documented contract.
// Callers that need the staleness rule's "assume changed" behavior for
// BOTH absence and corruption (the Module Builder) must fold any
// non-nil error returned here into that outcome themselves.
func Load(path string) (*FileMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("metastore: failed to read %s: %w", path, err)
	}
	var m FileMeta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("metastore: malformed meta %s: %w", path, err)
	}
	m.afterDecode()
	return &m, nil
}

// Save writes meta to path via a temp file plus rename.
func Save(path string, meta FileMeta) error {
	meta.beforeEncode()
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("metastore: failed to encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metastore: failed to create dir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".meta-*.tmp")
	if err != nil {
		return fmt.Errorf("metastore: failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("metastore: failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("metastore: failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("metastore: failed to rename into %s: %w", path, err)
	}
	return nil
}

// Stale reports whether a file with the given (timestamp, hasTimestamp)
// source state is stale relative to meta, per the staleness rule of
// §4.4: missing meta, missing timestamp in either source or meta, or a
// source timestamp strictly newer than the meta's, all mean "changed".
func Stale(meta *FileMeta, sourceTime time.Time, sourceHasTime bool) bool {
	if meta == nil {
		return true
	}
	if !meta.HasTimestamp || !sourceHasTime {
		return true
	}
	return sourceTime.After(meta.Timestamp)
}
