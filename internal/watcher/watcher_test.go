package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperation(t *testing.T) {
	names := map[Operation]string{
		OpCreate:      "CREATE",
		OpModify:      "MODIFY",
		OpDelete:      "DELETE",
		OpRename:      "RENAME",
		Operation(42): "UNKNOWN",
	}
	for op, want := range names {
		assert.Equal(t, want, op.String())
	}

	// Only removals leave the corpus missing.
	assert.True(t, OpDelete.gone())
	assert.True(t, OpRename.gone())
	assert.False(t, OpCreate.gone())
	assert.False(t, OpModify.gone())
}

func TestOptions_WithDefaults(t *testing.T) {
	def := DefaultOptions()

	// Zero and negative fields are filled in.
	assert.Equal(t, def, Options{}.WithDefaults())
	assert.Equal(t, def, Options{DebounceWindow: -time.Second, PollInterval: -1, EventBufferSize: -4}.WithDefaults())

	// Set fields survive.
	got := Options{DebounceWindow: 250 * time.Millisecond, EventBufferSize: 2, ForcePolling: true}.WithDefaults()
	assert.Equal(t, 250*time.Millisecond, got.DebounceWindow)
	assert.Equal(t, def.PollInterval, got.PollInterval)
	assert.Equal(t, 2, got.EventBufferSize)
	assert.True(t, got.ForcePolling)
}
