// Package version parses and compares the three-part EffectiveVersion
// strings used by module manifests and Share dependencies (§3).
//
// This is deliberately not backed by a general-purpose semver range
// library: the domain only ever needs exact major/minor/patch parsing and
// the four-way Equal/LessThan/GreaterThan/Conflict comparison of §3, never
// range matching or pre-release/build metadata, so a small hand-written
// parser is the better fit than pulling in constraint syntax we'd never use.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// V is a parsed three-part version (major.minor.patch).
type V struct {
	Major, Minor, Patch int
}

// Compat is the result of comparing two versions for compatibility.
type Compat int

const (
	Equal Compat = iota
	LessThan
	GreaterThan
	Conflict
)

func (c Compat) String() string {
	switch c {
	case Equal:
		return "Equal"
	case LessThan:
		return "LessThan"
	case GreaterThan:
		return "GreaterThan"
	case Conflict:
		return "Conflict"
	default:
		return "Unknown"
	}
}

// Parse parses a "major.minor.patch" string.
func Parse(s string) (V, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return V{}, fmt.Errorf("version: %q is not major.minor.patch", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return V{}, fmt.Errorf("version: invalid component %q in %q", p, s)
		}
		nums[i] = n
	}
	return V{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String renders v as "major.minor.patch".
func (v V) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare reports the compatibility relationship of a relative to b:
// LessThan means a is older than b, GreaterThan means a is newer.
//
// Conflict holds when major versions differ and major >= 1 (§3). Below
// major 1, differing majors are still treated as ordinary ordering
// (pre-1.0 has no stability guarantee to conflict over); implementers of
// this spec only call out major>=1 conflicts, so 0.x versions compare by
// plain precedence instead.
func Compare(a, b V) Compat {
	if a.Major != b.Major {
		if a.Major >= 1 && b.Major >= 1 {
			return Conflict
		}
		if a.Major < b.Major {
			return LessThan
		}
		return GreaterThan
	}
	if a.Minor != b.Minor {
		if a.Minor < b.Minor {
			return LessThan
		}
		return GreaterThan
	}
	if a.Patch != b.Patch {
		if a.Patch < b.Patch {
			return LessThan
		}
		return GreaterThan
	}
	return Equal
}
