package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
)

func TestBuildLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", ".build.lock")
	first := NewBuildLock(path)
	second := NewBuildLock(path)

	// Given: one holder
	require.NoError(t, first.TryLock())
	assert.True(t, first.IsLocked())

	// When: another handle tries the same file
	err := second.TryLock()

	// Then: it is refused with a retryable lock error
	require.Error(t, err)
	assert.Equal(t, aerrors.ErrCodeLockHeld, aerrors.GetCode(err))
	assert.True(t, aerrors.IsRetryable(err))

	require.NoError(t, first.Unlock())
	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
	assert.Equal(t, path, second.Path())
}
