package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(path string, op Operation) FileEvent {
	return FileEvent{Path: path, Operation: op, Timestamp: time.Now()}
}

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name       string
		prev, next Operation
		want       Operation
		keep       bool
	}{
		{"create then modify stays create", OpCreate, OpModify, OpCreate, true},
		{"create then delete cancels", OpCreate, OpDelete, 0, false},
		{"create then rename cancels", OpCreate, OpRename, 0, false},
		{"delete then create is a replace", OpDelete, OpCreate, OpModify, true},
		{"rename then create is a replace", OpRename, OpCreate, OpModify, true},
		{"modify then delete is delete", OpModify, OpDelete, OpDelete, true},
		{"modify then modify is modify", OpModify, OpModify, OpModify, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, keep := coalesce(tt.prev, tt.next)
			assert.Equal(t, tt.keep, keep)
			if keep {
				assert.Equal(t, tt.want, op)
			}
		})
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: a single event is added
	d.Add(event("corpus.csv", OpModify))

	// Then: it is emitted after the window
	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, "corpus.csv", batch[0].Path)
		assert.Equal(t, OpModify, batch[0].Operation)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_BurstCoalescesIntoOneBatch(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(100 * time.Millisecond)
	defer d.Stop()

	// When: an exporter replaces the file in several steps
	d.Add(event("corpus.csv", OpRename))
	d.Add(event("corpus.csv", OpCreate))
	for i := 0; i < 3; i++ {
		d.Add(event("corpus.csv", OpModify))
		time.Sleep(10 * time.Millisecond)
	}

	// Then: one MODIFY comes out
	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, OpModify, batch[0].Operation)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced events")
	}
}

func TestDebouncer_CreateThenDelete_NoEvent(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(event("tmp.csv", OpCreate))
	d.Add(event("tmp.csv", OpDelete))

	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected batch: %v", batch)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDebouncer_DifferentPaths_SortedBatch(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(event("b.csv", OpModify))
	d.Add(event("a.csv", OpCreate))

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 2)
		assert.Equal(t, "a.csv", batch[0].Path)
		assert.Equal(t, "b.csv", batch[1].Path)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced events")
	}
}

func TestDebouncer_Stop_ClosesOutput(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	d.Add(event("corpus.csv", OpModify))

	// When: stopped before the window elapses
	d.Stop()
	d.Stop()

	// Then: the channel is closed and the pending event dropped
	_, ok := <-d.Output()
	assert.False(t, ok)

	// And: further adds are ignored
	d.Add(event("corpus.csv", OpModify))
}
