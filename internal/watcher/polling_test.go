package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPoller(t *testing.T, path string) *Poller {
	t.Helper()
	p := NewPoller(path, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = p.Start(ctx) }()
	// Wait for the initial stat.
	time.Sleep(60 * time.Millisecond)
	return p
}

func nextEvent(t *testing.T, p *Poller) FileEvent {
	t.Helper()
	select {
	case e := <-p.Events():
		return e
	case err := <-p.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for poll event")
	}
	return FileEvent{}
}

func TestPoller_DetectsLifecycle(t *testing.T) {
	// Given: a poller on a corpus that does not exist yet
	path := filepath.Join(t.TempDir(), "corpus.csv")
	p := startPoller(t, path)

	// When: the corpus is created
	require.NoError(t, os.WriteFile(path, []byte("ID\n"), 0o644))
	e := nextEvent(t, p)
	assert.Equal(t, OpCreate, e.Operation)
	assert.Equal(t, "corpus.csv", e.Path)

	// When: it grows
	require.NoError(t, os.WriteFile(path, []byte("ID\na1\n"), 0o644))
	assert.Equal(t, OpModify, nextEvent(t, p).Operation)

	// When: it is removed
	require.NoError(t, os.Remove(path))
	assert.Equal(t, OpDelete, nextEvent(t, p).Operation)

	require.NoError(t, p.Stop())
}

func TestPoller_NoChangeNoEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.csv")
	require.NoError(t, os.WriteFile(path, []byte("ID\n"), 0o644))
	p := startPoller(t, path)

	select {
	case e := <-p.Events():
		t.Fatalf("unexpected event: %v", e)
	case <-time.After(150 * time.Millisecond):
	}
	require.NoError(t, p.Stop())
}

func TestPoller_ContextCancellation(t *testing.T) {
	p := NewPoller(filepath.Join(t.TempDir(), "corpus.csv"), 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}

	// Stop after cancellation is a no-op.
	require.NoError(t, p.Stop())
}
