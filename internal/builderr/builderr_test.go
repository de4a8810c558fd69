package builderr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageShape(t *testing.T) {
	e := Sealedf("hello")
	require.Equal(t, Sealed, e.Code)
	require.Contains(t, e.Error(), "hello")
	require.Contains(t, e.Error(), "sealed")
}

func TestWrapIncludesCause(t *testing.T) {
	cause := errors.New("boom")
	e := AssemblerErrorf("main.anca", cause)
	require.ErrorIs(t, e, cause)
	require.Contains(t, e.Error(), "boom")
	require.Contains(t, e.Error(), "main.anca")
}

func TestDependencyKindViolationData(t *testing.T) {
	e := DependencyKindViolationf("share-mod", "local-mod", "share forbids local")
	require.Equal(t, DependencyKindViolation, e.Code)
	require.Equal(t, "share-mod", e.Data["parent"])
	require.Equal(t, "local-mod", e.Data["child"])
}

func TestVersionConflictf(t *testing.T) {
	e := VersionConflictf("util", "1.0.0", "2.0.0")
	require.Equal(t, VersionConflict, e.Code)
	require.Contains(t, e.Error(), "util")
}

func TestWithTraceAttachesPath(t *testing.T) {
	e := VersionConflictf("util", "1.0.0", "2.0.0").WithTrace([]string{"a", "util"})
	require.Equal(t, "a -> util", e.Data["trace"])
}

func TestWithTraceEmptyPathIsNoOp(t *testing.T) {
	e := Sealedf("hello")
	before := e.Data
	e.WithTrace(nil)
	require.Equal(t, before, e.Data)
}
