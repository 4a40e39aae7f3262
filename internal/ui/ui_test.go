package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_Names(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		icon  string
	}{
		{StageReading, "Reading", "READ"},
		{StageStoring, "Storing", "STORE"},
		{StageIndexing, "Indexing", "INDEX"},
		{StageEmbedding, "Embedding", "EMBED"},
		{StageComplete, "Complete", "DONE"},
		{Stage(99), "Unknown", "???"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.stage.String())
			assert.Equal(t, tt.icon, tt.stage.Icon())
		})
	}
}

func TestNewRenderer_NonTTYIsPlain(t *testing.T) {
	// Given a buffer, which is never a terminal
	var buf bytes.Buffer

	// When a renderer is chosen
	r := NewRenderer(NewConfig(&buf, WithTitle("corpus.csv")))

	// Then it is the plain renderer
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
	assert.False(t, IsTTY(&buf))
	assert.False(t, IsTTY(nil))
}

func TestNewTUIRenderer_RejectsNonTTY(t *testing.T) {
	_, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))
	assert.Error(t, err)
}

func TestPlainRenderer_Lifecycle(t *testing.T) {
	// Given a plain renderer
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))
	require.NoError(t, r.Start(context.Background()))

	// When a build reports progress, a skip and completion
	r.UpdateProgress(ProgressEvent{Stage: StageReading, Message: "reading corpus.csv"})
	r.UpdateProgress(ProgressEvent{Stage: StageIndexing, Current: 5, Total: 10, Item: "doc-5"})
	r.UpdateProgress(ProgressEvent{Stage: StageStoring})
	r.AddError(ErrorEvent{Item: "row 3", Err: errors.New("missing ID"), IsWarn: true})
	r.AddError(ErrorEvent{Err: errors.New("disk full")})
	r.Complete(CompletionStats{
		Documents: 10, Terms: 42, Skipped: 1, Snapshot: "01HX",
		Duration: 1500 * time.Millisecond,
		Stages:   StageTimings{Read: time.Second, Embed: time.Second},
		Vectors:  8, VectorsSkipped: 2,
		Embedder: EmbedderInfo{Provider: "static", Model: "static-256", Dimensions: 256},
	})
	require.NoError(t, r.Stop())

	// Then each event is one line and the summary lists the stages
	out := buf.String()
	assert.Contains(t, out, "[READ] reading corpus.csv\n")
	assert.Contains(t, out, "[INDEX] 5/10 - doc-5\n")
	assert.NotContains(t, out, "[STORE]")
	assert.Contains(t, out, "WARN: row 3: missing ID\n")
	assert.Contains(t, out, "ERROR: disk full\n")
	assert.Contains(t, out, "Complete: 10 documents, 42 terms indexed in 1.5s (1 skipped)")
	assert.Contains(t, out, "Snapshot: 01HX")
	assert.Contains(t, out, "Embed: 1s (8 embedded, 2 unchanged)")
	assert.Contains(t, out, "Embedder: static (static-256, 256 dims)")
}

func TestProgressTracker(t *testing.T) {
	// Given a tracker in the indexing stage
	p := NewProgressTracker()
	assert.Equal(t, StageReading, p.Stats().Stage)
	p.SetStage(StageIndexing, 4)

	// When progress and problems are recorded
	p.Update(2, "doc-2")
	p.Update(3, "")
	p.AddError(ErrorEvent{Err: errors.New("a"), IsWarn: true})
	p.AddError(ErrorEvent{Err: errors.New("b")})

	// Then the snapshot reflects them
	st := p.Stats()
	assert.Equal(t, 3, st.Current)
	assert.Equal(t, "doc-2", st.Item)
	assert.InDelta(t, 0.75, st.Progress, 1e-9)
	assert.Equal(t, 1, st.WarnCount)
	assert.Equal(t, 1, st.ErrorCount)
	assert.Len(t, p.Warnings(), 1)
	assert.Len(t, p.Errors(), 1)

	// And a stage change resets the counters
	p.SetStage(StageEmbedding, 0)
	st = p.Stats()
	assert.Zero(t, st.Current)
	assert.Zero(t, st.Progress)
	assert.Zero(t, st.ETA)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m", formatDuration(2*time.Minute))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 30m", formatDuration(90*time.Minute))

	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))

	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "...가나", truncate("다라마바가나", 5))
}

func TestStatusRenderer(t *testing.T) {
	info := StatusInfo{
		DataDir:         "/data",
		Snapshot:        "01HXSNAP",
		BuiltAt:         time.Now().Add(-2 * time.Hour),
		Documents:       3,
		Terms:           20,
		Postings:        31,
		AvgDocLength:    10.3,
		StoredDocuments: 3,
		EntityLinks:     9,
		UniqueEntities:  6,
		FirstDate:       "2024-01-01",
		LastDate:        "2024-03-31",
		LexicalSize:     2048,
		EntitySize:      4096,
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewStatusRenderer(&buf, true).Render(info))
		out := buf.String()
		assert.Contains(t, out, "Archive: /data")
		assert.Contains(t, out, "Snapshot:  01HXSNAP")
		assert.Contains(t, out, "Built:     2 hours ago")
		assert.Contains(t, out, "Dates:     2024-01-01 .. 2024-03-31")
		assert.Contains(t, out, "none (lexical only)")
		assert.Contains(t, out, "Total:    6.0 KB")
	})

	t.Run("not built", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewStatusRenderer(&buf, true).Render(StatusInfo{DataDir: "/x"}))
		assert.True(t, strings.Contains(buf.String(), "not built"))
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewStatusRenderer(&buf, true).RenderJSON(info))
		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "01HXSNAP", got["snapshot"])
		assert.EqualValues(t, 9, got["entity_links"])
	})
}

func TestNopRenderer(t *testing.T) {
	var r Renderer = NopRenderer{}
	require.NoError(t, r.Start(context.Background()))
	r.UpdateProgress(ProgressEvent{})
	r.AddError(ErrorEvent{})
	r.Complete(CompletionStats{})
	assert.NoError(t, r.Stop())
}
