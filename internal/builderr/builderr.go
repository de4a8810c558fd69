// Package builderr implements the core's single error boundary shape:
// every lower-level failure collapses to a Message(string) at the
// boundary (§7), while carrying a typed Code and structured Data
// internally so callers that want to branch on root cause still can.
//
// Grounded on the teacher's internal/errors (Report/ReportError with
// Code, Phase, Message, Data, Fix), collapsed here to the narrower
// taxonomy this domain actually raises.
package builderr

import (
	"fmt"
	"strings"
)

// Code names a root cause from the taxonomy of §7.
type Code string

const (
	ManifestMissing          Code = "ManifestMissing"
	ManifestMalformed        Code = "ManifestMalformed"
	Sealed                   Code = "Sealed"
	AssemblerErrorCode       Code = "AssemblerError"
	StaticLinkErrorCode      Code = "StaticLinkError"
	DynamicLinkErrorCode     Code = "DynamicLinkError"
	DependencyKindViolation  Code = "DependencyKindViolation"
	DependencyConflict       Code = "DependencyConflict"
	VersionConflict          Code = "VersionConflict"
	FetchFailure             Code = "FetchFailure"
	RegistryMiss             Code = "RegistryMiss"
	ImageIoError             Code = "ImageIoError"
	MetaIoError              Code = "MetaIoError"
	LockContention           Code = "LockContention"
)

// Error is the structured error raised at the core boundary. Its
// Error() method renders the single-string Message(...) shape §7
// requires; Code and Data remain available to callers that inspect
// root cause instead of just logging the string.
type Error struct {
	Code    Code
	Message string
	Data    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// WithTrace attaches the BFS path from the main module to the edge that
// produced this error, grounded on the teacher's ResolutionTrace fields
// (internal/module/loader.go, internal/link/module_linker.go). It stores
// the path in Data["trace"] and never changes Code or the primary
// Message; an empty path leaves the error unchanged.
func (e *Error) WithTrace(path []string) *Error {
	if len(path) == 0 {
		return e
	}
	if e.Data == nil {
		e.Data = map[string]string{}
	}
	e.Data["trace"] = strings.Join(path, " -> ")
	return e
}

// New builds a bare Error with no wrapped cause.
func New(code Code, message string, data map[string]string) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// Wrap builds an Error around a lower-level cause, prefixing message.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// ManifestMissingf reports a missing manifest file.
func ManifestMissingf(path string) *Error {
	return New(ManifestMissing, fmt.Sprintf("manifest missing: %s", path), map[string]string{"path": path})
}

// ManifestMalformedf reports a manifest that failed to decode.
func ManifestMalformedf(path string, cause error) *Error {
	return Wrap(ManifestMalformed, fmt.Sprintf("manifest malformed: %s", path), cause)
}

// Sealedf reports a sealed module asked to rebuild.
func Sealedf(moduleName string) *Error {
	return New(Sealed, fmt.Sprintf("module %q is sealed and cannot be rebuilt", moduleName), map[string]string{"module": moduleName})
}

// SealedMissingImagef reports a sealed module whose image is absent.
func SealedMissingImagef(moduleName, path string) *Error {
	return New(Sealed, fmt.Sprintf("module %q is sealed but its image is missing at %s", moduleName, path),
		map[string]string{"module": moduleName, "path": path})
}

// AssemblerErrorf reports the assembler rejecting a source file.
func AssemblerErrorf(file string, cause error) *Error {
	return Wrap(AssemblerErrorCode, fmt.Sprintf("assembler rejected %s", file), cause)
}

// StaticLinkErrorf reports a static-link failure for a module.
func StaticLinkErrorf(moduleName string, cause error) *Error {
	return Wrap(StaticLinkErrorCode, fmt.Sprintf("static link failed for module %q", moduleName), cause)
}

// DynamicLinkErrorf reports a dynamic-link-index failure.
func DynamicLinkErrorf(cause error) *Error {
	return Wrap(DynamicLinkErrorCode, "dynamic link index failed", cause)
}

// DependencyKindViolationf reports a kind-legality breach (§4.5).
func DependencyKindViolationf(parent, child, reason string) *Error {
	return New(DependencyKindViolation,
		fmt.Sprintf("dependency kind violation: %s cannot depend on %s (%s)", parent, child, reason),
		map[string]string{"parent": parent, "child": child, "reason": reason})
}

// DependencyConflictf reports a de-duplication arbitration failure (§4.5 phase 2).
func DependencyConflictf(name, reason string) *Error {
	return New(DependencyConflict, fmt.Sprintf("dependency conflict for %q: %s", name, reason),
		map[string]string{"name": name, "reason": reason})
}

// VersionConflictf reports incompatible Share versions for the same module name.
func VersionConflictf(name, a, b string) *Error {
	return New(VersionConflict, fmt.Sprintf("version conflict for %q: %s vs %s", name, a, b),
		map[string]string{"name": name, "a": a, "b": b})
}

// FetchFailuref reports a remote acquisition failure.
func FetchFailuref(url, revision string, cause error) *Error {
	e := Wrap(FetchFailure, fmt.Sprintf("fetch failed for %s@%s", url, revision), cause)
	e.Data = map[string]string{"url": url, "revision": revision}
	return e
}

// RegistryMissf reports that no registry resolved a name/version.
func RegistryMissf(name, version string) *Error {
	return New(RegistryMiss, fmt.Sprintf("no registry resolved %s@%s", name, version),
		map[string]string{"name": name, "version": version})
}

// ImageIoErrorf reports an image serialization/filesystem failure.
func ImageIoErrorf(path string, cause error) *Error {
	return Wrap(ImageIoError, fmt.Sprintf("image I/O failed for %s", path), cause)
}

// MetaIoErrorf reports a meta-store filesystem/serialization failure.
func MetaIoErrorf(path string, cause error) *Error {
	return Wrap(MetaIoError, fmt.Sprintf("meta I/O failed for %s", path), cause)
}

// LockContentionf reports that a module root's advisory build lock is
// already held by another process.
func LockContentionf(moduleRoot string) *Error {
	return New(LockContention, fmt.Sprintf("module root %q is locked by another build", moduleRoot),
		map[string]string{"moduleRoot": moduleRoot})
}
