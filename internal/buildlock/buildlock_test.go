package buildlock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryLockExclusive(t *testing.T) {
	dir := t.TempDir()

	a := New(dir)
	ok, err := a.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer a.Unlock()

	b := New(dir)
	ok2, err := b.TryLock()
	require.NoError(t, err)
	require.False(t, ok2)
}

func TestUnlockAllowsReacquire(t *testing.T) {
	dir := t.TempDir()

	a := New(dir)
	ok, err := a.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, a.Unlock())

	b := New(dir)
	ok2, err := b.TryLock()
	require.NoError(t, err)
	require.True(t, ok2)
	defer b.Unlock()
}
