package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/archivist/internal/embed"
	aerrors "github.com/Aman-CERP/archivist/internal/errors"
	"github.com/Aman-CERP/archivist/internal/search"
	"github.com/Aman-CERP/archivist/internal/store"
)

// MockBackend implements Backend for testing.
type MockBackend struct {
	SearchFn    func(ctx context.Context, query string, opts search.SearchOptions) ([]search.SearchResult, error)
	TimelineFn  func(ctx context.Context, entity string, dates store.DateRange, g store.Granularity) ([]store.TimelineBucket, error)
	TrendFn     func(ctx context.Context, keyword string, dates store.DateRange, g store.Granularity) (*store.TrendReport, error)
	SourceFn    func(ctx context.Context, media, topic string, dates store.DateRange) ([]store.DocumentSummary, error)
	EntityFn    func(ctx context.Context, name string, typ store.EntityType, dates store.DateRange, limit int) ([]store.DocumentSummary, error)
	DailyFn     func(ctx context.Context, date string) (*store.DailySummary, error)
	Docs        map[string]*store.Document
	EngineStats search.EngineStats
	Totals      store.StoreStats
	Emb         embed.Embedder
}

func (m *MockBackend) Search(ctx context.Context, query string, opts search.SearchOptions) ([]search.SearchResult, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, query, opts)
	}
	return nil, nil
}

func (m *MockBackend) EntityTimeline(ctx context.Context, entity string, dates store.DateRange, g store.Granularity) ([]store.TimelineBucket, error) {
	if m.TimelineFn != nil {
		return m.TimelineFn(ctx, entity, dates, g)
	}
	return []store.TimelineBucket{}, nil
}

func (m *MockBackend) Trend(ctx context.Context, keyword string, dates store.DateRange, g store.Granularity) (*store.TrendReport, error) {
	if m.TrendFn != nil {
		return m.TrendFn(ctx, keyword, dates, g)
	}
	return &store.TrendReport{Keyword: keyword, Granularity: g}, nil
}

func (m *MockBackend) SearchBySource(ctx context.Context, media, topic string, dates store.DateRange) ([]store.DocumentSummary, error) {
	if m.SourceFn != nil {
		return m.SourceFn(ctx, media, topic, dates)
	}
	return []store.DocumentSummary{}, nil
}

func (m *MockBackend) SearchByEntity(ctx context.Context, name string, typ store.EntityType, dates store.DateRange, limit int) ([]store.DocumentSummary, error) {
	if m.EntityFn != nil {
		return m.EntityFn(ctx, name, typ, dates, limit)
	}
	return []store.DocumentSummary{}, nil
}

func (m *MockBackend) DailySummary(ctx context.Context, date string) (*store.DailySummary, error) {
	if m.DailyFn != nil {
		return m.DailyFn(ctx, date)
	}
	return &store.DailySummary{Date: date}, nil
}

func (m *MockBackend) Document(_ context.Context, id string) (*store.Document, error) {
	return m.Docs[id], nil
}

func (m *MockBackend) Stats() search.EngineStats { return m.EngineStats }

func (m *MockBackend) StoreStats(context.Context) (store.StoreStats, error) { return m.Totals, nil }

func (m *MockBackend) Embedder() embed.Embedder { return m.Emb }

var _ Backend = (*MockBackend)(nil)

func newTestServer(t *testing.T, b *MockBackend) *Server {
	t.Helper()
	s, err := NewServer(b)
	require.NoError(t, err)
	return s
}

func requireMCPError(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected *MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func TestNewServer_RequiresBackend(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestListTools(t *testing.T) {
	s := newTestServer(t, &MockBackend{})

	tools := s.ListTools()

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{
		ToolSearch, ToolTimeline, ToolTrend, ToolSource, ToolEntity, ToolDailySummary, ToolIndexStatus,
	}, names)
	assert.NotNil(t, s.MCPServer())
}

func TestSearchTool_PassesOptions(t *testing.T) {
	// Given a backend that records its options
	var got search.SearchOptions
	b := &MockBackend{SearchFn: func(_ context.Context, query string, opts search.SearchOptions) ([]search.SearchResult, error) {
		got = opts
		return []search.SearchResult{{DocID: "d1", Date: "2024-03-01", Title: "반도체 수출"}}, nil
	}}
	s := newTestServer(t, b)

	// When search is called with filters and an oversized top_k
	out, err := s.CallTool(context.Background(), ToolSearch, map[string]any{
		"query":      "반도체",
		"top_k":      500,
		"start_date": "2024-01-01",
		"end_date":   "2024-06-30",
		"entity":     " 삼성전자 ",
	})

	// Then options are clamped and trimmed and the context is rendered
	require.NoError(t, err)
	assert.Equal(t, maxTopK, got.TopK)
	assert.Equal(t, store.DateRange{Start: "2024-01-01", End: "2024-06-30"}, got.Dates)
	assert.Equal(t, "삼성전자", got.Entity)

	res := out.(SearchOutput)
	require.Len(t, res.Results, 1)
	assert.Contains(t, res.Context, "[1] (2024-03-01) 반도체 수출")
}

func TestSearchTool_Defaults(t *testing.T) {
	var got search.SearchOptions
	b := &MockBackend{SearchFn: func(_ context.Context, _ string, opts search.SearchOptions) ([]search.SearchResult, error) {
		got = opts
		return nil, nil
	}}
	s := newTestServer(t, b)

	out, err := s.CallTool(context.Background(), ToolSearch, map[string]any{"query": "경제"})

	require.NoError(t, err)
	assert.Equal(t, defaultTopK, got.TopK)
	res := out.(SearchOutput)
	assert.NotNil(t, res.Results)
	assert.Equal(t, "관련 문서를 찾지 못했습니다.", res.Context)
}

func TestTools_InvalidParams(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{name: "blank query", tool: ToolSearch, args: map[string]any{"query": "   "}},
		{name: "bad date", tool: ToolSearch, args: map[string]any{"query": "x", "start_date": "2024/01/01"}},
		{name: "blank entity", tool: ToolTimeline, args: map[string]any{"entity": ""}},
		{name: "bad granularity", tool: ToolTimeline, args: map[string]any{"entity": "홍길동", "granularity": "year"}},
		{name: "blank keyword", tool: ToolTrend, args: map[string]any{}},
		{name: "blank media", tool: ToolSource, args: map[string]any{"media": " "}},
		{name: "bad entity type", tool: ToolEntity, args: map[string]any{"name": "홍길동", "type": "planet"}},
		{name: "bad day", tool: ToolDailySummary, args: map[string]any{"date": "yesterday"}},
		{name: "wrong arg type", tool: ToolSearch, args: map[string]any{"query": 42}},
	}
	s := newTestServer(t, &MockBackend{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CallTool(context.Background(), tt.tool, tt.args)
			requireMCPError(t, err, ErrCodeInvalidParams)
		})
	}
}

func TestCallTool_UnknownTool(t *testing.T) {
	s := newTestServer(t, &MockBackend{})
	_, err := s.CallTool(context.Background(), "search_code", nil)
	requireMCPError(t, err, ErrCodeMethodNotFound)
}

func TestSearchTool_IndexNotBuilt(t *testing.T) {
	b := &MockBackend{SearchFn: func(context.Context, string, search.SearchOptions) ([]search.SearchResult, error) {
		return nil, aerrors.IndexNotBuilt()
	}}
	s := newTestServer(t, b)

	_, err := s.CallTool(context.Background(), ToolSearch, map[string]any{"query": "x"})

	requireMCPError(t, err, ErrCodeIndexNotBuilt)
}

func TestTimelineTool_DefaultsToMonth(t *testing.T) {
	// Given a backend that records the granularity
	var gotG store.Granularity
	b := &MockBackend{TimelineFn: func(_ context.Context, entity string, _ store.DateRange, g store.Granularity) ([]store.TimelineBucket, error) {
		gotG = g
		return []store.TimelineBucket{{Period: "2024-03", DocCount: 2, Titles: []string{"a", "b"}}}, nil
	}}
	s := newTestServer(t, b)

	// When no granularity is given
	out, err := s.CallTool(context.Background(), ToolTimeline, map[string]any{"entity": "홍길동"})

	// Then month is used and the text is rendered
	require.NoError(t, err)
	assert.Equal(t, store.GranularityMonth, gotG)
	res := out.(TimelineOutput)
	assert.Len(t, res.Buckets, 1)
	assert.Contains(t, res.Text, "2024-03: 2건")
}

func TestTrendTool(t *testing.T) {
	b := &MockBackend{TrendFn: func(_ context.Context, keyword string, _ store.DateRange, g store.Granularity) (*store.TrendReport, error) {
		return &store.TrendReport{
			Keyword: keyword, Granularity: g,
			Timeline:   []store.PeriodCount{{Period: "2024-03-W1", Count: 3}},
			TotalCount: 3,
		}, nil
	}}
	s := newTestServer(t, b)

	out, err := s.CallTool(context.Background(), ToolTrend, map[string]any{"keyword": "금리", "granularity": "week"})

	require.NoError(t, err)
	res := out.(TrendOutput)
	assert.Equal(t, store.GranularityWeek, res.Report.Granularity)
	assert.Contains(t, res.Text, "'금리' 트렌드 분석 (총 3건)")
}

func TestSourceAndEntityTools(t *testing.T) {
	var gotLimit int
	var gotType store.EntityType
	b := &MockBackend{
		SourceFn: func(_ context.Context, media, topic string, _ store.DateRange) ([]store.DocumentSummary, error) {
			return []store.DocumentSummary{{DocID: "s1", Title: media + " " + topic}}, nil
		},
		EntityFn: func(_ context.Context, _ string, typ store.EntityType, _ store.DateRange, limit int) ([]store.DocumentSummary, error) {
			gotType, gotLimit = typ, limit
			return []store.DocumentSummary{}, nil
		},
	}
	s := newTestServer(t, b)

	out, err := s.CallTool(context.Background(), ToolSource, map[string]any{"media": "연합뉴스", "topic": "환율"})
	require.NoError(t, err)
	docs := out.(DocumentsOutput)
	require.Len(t, docs.Documents, 1)
	assert.Equal(t, "연합뉴스 환율", docs.Documents[0].Title)

	out, err = s.CallTool(context.Background(), ToolEntity, map[string]any{"name": "홍길동", "type": "person"})
	require.NoError(t, err)
	assert.Equal(t, store.EntityPerson, gotType)
	assert.Equal(t, defaultEntityLimit, gotLimit)
	assert.Contains(t, out.(DocumentsOutput).Text, "찾지 못했습니다")
}

func TestDailySummaryTool(t *testing.T) {
	b := &MockBackend{DailyFn: func(_ context.Context, date string) (*store.DailySummary, error) {
		return &store.DailySummary{Date: date, DocCount: 4}, nil
	}}
	s := newTestServer(t, b)

	out, err := s.CallTool(context.Background(), ToolDailySummary, map[string]any{"date": "2024-03-05"})

	require.NoError(t, err)
	assert.Equal(t, 4, out.(DailySummaryOutput).Summary.DocCount)
}

func TestIndexStatusTool(t *testing.T) {
	tests := []struct {
		name       string
		backend    *MockBackend
		wantReady  bool
		wantModel  string
		wantActive bool
	}{
		{
			name:    "no index lexical only",
			backend: &MockBackend{Totals: store.StoreStats{Documents: 3}},
		},
		{
			name: "index with embedder",
			backend: &MockBackend{
				EngineStats: search.EngineStats{Index: &store.IndexStats{Documents: 3}, VectorActive: true, CircuitState: "closed"},
				Emb:         embed.NewStaticEmbedder(64),
			},
			wantReady:  true,
			wantModel:  "static-64",
			wantActive: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.backend)

			out, err := s.CallTool(context.Background(), ToolIndexStatus, nil)

			require.NoError(t, err)
			status := out.(*IndexStatusOutput)
			assert.Equal(t, tt.wantReady, status.Ready)
			assert.Equal(t, tt.wantModel, status.Embeddings.Model)
			assert.Equal(t, tt.wantActive, status.Embeddings.Active)
		})
	}
}

func TestReadDocument(t *testing.T) {
	b := &MockBackend{Docs: map[string]*store.Document{
		"d1": {ID: "d1", Title: "제목", Persons: []string{"홍길동"}},
	}}
	s := newTestServer(t, b)

	res, err := s.readDocument(context.Background(), "document://d1")
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, `"홍길동"`)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)

	_, err = s.readDocument(context.Background(), "document://missing")
	requireMCPError(t, err, ErrCodeNotFound)

	_, err = s.readDocument(context.Background(), "file://x")
	requireMCPError(t, err, ErrCodeNotFound)
}

func TestServe_UnknownTransport(t *testing.T) {
	s := newTestServer(t, &MockBackend{})
	err := s.Serve(context.Background(), "sse")
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10, 1, 50))
	assert.Equal(t, 10, clampLimit(-3, 10, 1, 50))
	assert.Equal(t, 7, clampLimit(7, 10, 1, 50))
	assert.Equal(t, 50, clampLimit(99, 10, 1, 50))
}
