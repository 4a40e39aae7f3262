package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/archivist/internal/embed"
	"github.com/Aman-CERP/archivist/internal/search"
	"github.com/Aman-CERP/archivist/internal/store"
	"github.com/Aman-CERP/archivist/pkg/version"
)

const (
	defaultTopK        = 10
	maxTopK            = 50
	defaultEntityLimit = 20
	maxEntityLimit     = 100
)

// Backend is the query surface the server exposes. *search.Engine
// implements it.
type Backend interface {
	search.Service
	SearchByEntity(ctx context.Context, name string, typ store.EntityType, dates store.DateRange, limit int) ([]store.DocumentSummary, error)
	DailySummary(ctx context.Context, date string) (*store.DailySummary, error)
	Document(ctx context.Context, id string) (*store.Document, error)
	Stats() search.EngineStats
	StoreStats(ctx context.Context) (store.StoreStats, error)
	Embedder() embed.Embedder
}

var _ Backend = (*search.Engine)(nil)

// Server bridges MCP clients with the archivist engine.
type Server struct {
	mcp     *mcp.Server
	backend Backend
	logger  *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{
		Name:        ToolSearch,
		Description: "Hybrid keyword and semantic search over the news archive. Supports date range and entity filters. Returns ranked documents with their persons, organizations and keywords.",
	},
	{
		Name:        ToolTimeline,
		Description: "Coverage timeline of a person, organization or concept: document counts per day, week or month with sample titles.",
	},
	{
		Name:        ToolTrend,
		Description: "Trend analysis of a keyword: frequency over time, co-occurring entities and representative documents.",
	},
	{
		Name:        ToolSource,
		Description: "Documents attributed to a media outlet, optionally narrowed to a topic.",
	},
	{
		Name:        ToolEntity,
		Description: "Documents linked to an entity, optionally restricted to one entity type. Newest first.",
	},
	{
		Name:        ToolDailySummary,
		Description: "Summary of one day: document count, titles and the people, organizations and concepts mentioned.",
	},
	{
		Name:        ToolIndexStatus,
		Description: "Check whether the lexical index is loaded, corpus totals, and whether semantic search is active.",
	},
}

// NewServer creates a new MCP server over backend.
func NewServer(backend Backend) (*Server, error) {
	if backend == nil {
		return nil, errors.New("search backend is required")
	}

	s := &Server{
		backend: backend,
		logger:  slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "archivist",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(toolInfos))
	copy(out, toolInfos)
	return out
}

func describe(name string) string {
	for _, t := range toolInfos {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolSearch, Description: describe(ToolSearch)}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolTimeline, Description: describe(ToolTimeline)}, s.mcpTimelineHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolTrend, Description: describe(ToolTrend)}, s.mcpTrendHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolSource, Description: describe(ToolSource)}, s.mcpSourceHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolEntity, Description: describe(ToolEntity)}, s.mcpEntityHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolDailySummary, Description: describe(ToolDailySummary)}, s.mcpDailySummaryHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolIndexStatus, Description: describe(ToolIndexStatus)}, s.mcpIndexStatusHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(toolInfos)))
}

// registerResources exposes stored documents as document://{id}.
func (s *Server) registerResources() {
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "document",
		URITemplate: documentURIPrefix + "{id}",
		Description: "A stored document with its entity annotations, as JSON.",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.readDocument(ctx, req.Params.URI)
	})
}

func (s *Server) readDocument(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	id, ok := strings.CutPrefix(uri, documentURIPrefix)
	if !ok || id == "" {
		return nil, NewNotFoundError(uri)
	}
	doc, err := s.backend.Document(ctx, id)
	if err != nil {
		return nil, MapError(err)
	}
	if doc == nil {
		return nil, NewNotFoundError(uri)
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(body)}},
	}, nil
}

// CallTool invokes a tool by name with JSON-decoded arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, NewInvalidParamsError(err.Error())
	}
	decode := func(v any) error {
		if err := json.Unmarshal(raw, v); err != nil {
			return NewInvalidParamsError(err.Error())
		}
		return nil
	}

	switch name {
	case ToolSearch:
		var in SearchInput
		if err := decode(&in); err != nil {
			return nil, err
		}
		return s.handleSearch(ctx, in)
	case ToolTimeline:
		var in TimelineInput
		if err := decode(&in); err != nil {
			return nil, err
		}
		return s.handleTimeline(ctx, in)
	case ToolTrend:
		var in TrendInput
		if err := decode(&in); err != nil {
			return nil, err
		}
		return s.handleTrend(ctx, in)
	case ToolSource:
		var in SourceInput
		if err := decode(&in); err != nil {
			return nil, err
		}
		return s.handleSource(ctx, in)
	case ToolEntity:
		var in EntityInput
		if err := decode(&in); err != nil {
			return nil, err
		}
		return s.handleEntity(ctx, in)
	case ToolDailySummary:
		var in DailySummaryInput
		if err := decode(&in); err != nil {
			return nil, err
		}
		return s.handleDailySummary(ctx, in)
	case ToolIndexStatus:
		return s.handleIndexStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// track logs the start of a tool call and returns a func logging its end.
func (s *Server) track(tool string, attrs ...slog.Attr) func(err error, count int) {
	start := time.Now()
	requestID := generateRequestID()
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "tool_started",
		append([]slog.Attr{slog.String("tool", tool), slog.String("request_id", requestID)}, attrs...)...)
	return func(err error, count int) {
		common := []slog.Attr{
			slog.String("tool", tool),
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			s.logger.LogAttrs(context.Background(), slog.LevelError, "tool_failed",
				append(common, slog.String("error", err.Error()))...)
			return
		}
		s.logger.LogAttrs(context.Background(), slog.LevelInfo, "tool_completed",
			append(common, slog.Int("result_count", count))...)
	}
}

func (s *Server) handleSearch(ctx context.Context, in SearchInput) (SearchOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return SearchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	dates, err := parseDates(in.StartDate, in.EndDate)
	if err != nil {
		return SearchOutput{}, err
	}

	done := s.track(ToolSearch, slog.String("query", query))
	results, err := s.backend.Search(ctx, query, search.SearchOptions{
		TopK:        clampLimit(in.TopK, defaultTopK, 1, maxTopK),
		Dates:       dates,
		Entity:      strings.TrimSpace(in.Entity),
		LexicalOnly: in.LexicalOnly,
	})
	done(err, len(results))
	if err != nil {
		return SearchOutput{}, MapError(err)
	}
	if results == nil {
		results = []search.SearchResult{}
	}
	return SearchOutput{Results: results, Context: search.FormatContext(results)}, nil
}

func (s *Server) handleTimeline(ctx context.Context, in TimelineInput) (TimelineOutput, error) {
	entity := strings.TrimSpace(in.Entity)
	if entity == "" {
		return TimelineOutput{}, NewInvalidParamsError("entity parameter is required")
	}
	dates, err := parseDates(in.StartDate, in.EndDate)
	if err != nil {
		return TimelineOutput{}, err
	}
	g, err := parseGranularity(in.Granularity)
	if err != nil {
		return TimelineOutput{}, err
	}

	done := s.track(ToolTimeline, slog.String("entity", entity))
	buckets, err := s.backend.EntityTimeline(ctx, entity, dates, g)
	done(err, len(buckets))
	if err != nil {
		return TimelineOutput{}, MapError(err)
	}
	return TimelineOutput{Entity: entity, Buckets: buckets, Text: search.FormatTimeline(entity, buckets)}, nil
}

func (s *Server) handleTrend(ctx context.Context, in TrendInput) (TrendOutput, error) {
	keyword := strings.TrimSpace(in.Keyword)
	if keyword == "" {
		return TrendOutput{}, NewInvalidParamsError("keyword parameter is required")
	}
	dates, err := parseDates(in.StartDate, in.EndDate)
	if err != nil {
		return TrendOutput{}, err
	}
	g, err := parseGranularity(in.Granularity)
	if err != nil {
		return TrendOutput{}, err
	}

	done := s.track(ToolTrend, slog.String("keyword", keyword))
	report, err := s.backend.Trend(ctx, keyword, dates, g)
	if err != nil {
		done(err, 0)
		return TrendOutput{}, MapError(err)
	}
	done(nil, report.TotalCount)
	return TrendOutput{Report: report, Text: search.FormatTrend(report)}, nil
}

func (s *Server) handleSource(ctx context.Context, in SourceInput) (DocumentsOutput, error) {
	media := strings.TrimSpace(in.Media)
	if media == "" {
		return DocumentsOutput{}, NewInvalidParamsError("media parameter is required")
	}
	dates, err := parseDates(in.StartDate, in.EndDate)
	if err != nil {
		return DocumentsOutput{}, err
	}

	done := s.track(ToolSource, slog.String("media", media))
	docs, err := s.backend.SearchBySource(ctx, media, strings.TrimSpace(in.Topic), dates)
	done(err, len(docs))
	if err != nil {
		return DocumentsOutput{}, MapError(err)
	}
	return DocumentsOutput{Documents: docs, Text: search.FormatSources(media, docs)}, nil
}

func (s *Server) handleEntity(ctx context.Context, in EntityInput) (DocumentsOutput, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return DocumentsOutput{}, NewInvalidParamsError("name parameter is required")
	}
	dates, err := parseDates(in.StartDate, in.EndDate)
	if err != nil {
		return DocumentsOutput{}, err
	}
	var typ store.EntityType
	if in.Type != "" {
		if typ, err = store.ParseEntityType(in.Type); err != nil {
			return DocumentsOutput{}, NewInvalidParamsError(err.Error())
		}
	}

	done := s.track(ToolEntity, slog.String("name", name))
	docs, err := s.backend.SearchByEntity(ctx, name, typ, dates, clampLimit(in.Limit, defaultEntityLimit, 1, maxEntityLimit))
	done(err, len(docs))
	if err != nil {
		return DocumentsOutput{}, MapError(err)
	}
	return DocumentsOutput{Documents: docs, Text: search.FormatSources(name, docs)}, nil
}

func (s *Server) handleDailySummary(ctx context.Context, in DailySummaryInput) (DailySummaryOutput, error) {
	day := strings.TrimSpace(in.Date)
	if _, err := time.Parse(store.DateLayout, day); err != nil {
		return DailySummaryOutput{}, NewInvalidParamsError(fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", in.Date))
	}

	done := s.track(ToolDailySummary, slog.String("date", day))
	summary, err := s.backend.DailySummary(ctx, day)
	if err != nil {
		done(err, 0)
		return DailySummaryOutput{}, MapError(err)
	}
	done(nil, summary.DocCount)
	return DailySummaryOutput{Summary: summary}, nil
}

func (s *Server) handleIndexStatus(ctx context.Context) (*IndexStatusOutput, error) {
	done := s.track(ToolIndexStatus)
	stats := s.backend.Stats()
	storeStats, err := s.backend.StoreStats(ctx)
	if err != nil {
		done(err, 0)
		return nil, MapError(err)
	}

	out := &IndexStatusOutput{
		Ready: stats.Index != nil,
		Index: stats.Index,
		Store: storeStats,
		Embeddings: EmbeddingInfo{
			Active:       stats.VectorActive,
			CircuitState: stats.CircuitState,
		},
	}
	if e := s.backend.Embedder(); e != nil {
		out.Embeddings.Model = e.ModelName()
		out.Embeddings.Dimensions = e.Dimensions()
	}
	done(nil, storeStats.Documents)
	return out, nil
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	out, err := s.handleSearch(ctx, in)
	return nil, out, err
}

func (s *Server) mcpTimelineHandler(ctx context.Context, _ *mcp.CallToolRequest, in TimelineInput) (*mcp.CallToolResult, TimelineOutput, error) {
	out, err := s.handleTimeline(ctx, in)
	return nil, out, err
}

func (s *Server) mcpTrendHandler(ctx context.Context, _ *mcp.CallToolRequest, in TrendInput) (*mcp.CallToolResult, TrendOutput, error) {
	out, err := s.handleTrend(ctx, in)
	return nil, out, err
}

func (s *Server) mcpSourceHandler(ctx context.Context, _ *mcp.CallToolRequest, in SourceInput) (*mcp.CallToolResult, DocumentsOutput, error) {
	out, err := s.handleSource(ctx, in)
	return nil, out, err
}

func (s *Server) mcpEntityHandler(ctx context.Context, _ *mcp.CallToolRequest, in EntityInput) (*mcp.CallToolResult, DocumentsOutput, error) {
	out, err := s.handleEntity(ctx, in)
	return nil, out, err
}

func (s *Server) mcpDailySummaryHandler(ctx context.Context, _ *mcp.CallToolRequest, in DailySummaryInput) (*mcp.CallToolResult, DailySummaryOutput, error) {
	out, err := s.handleDailySummary(ctx, in)
	return nil, out, err
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (*mcp.CallToolResult, *IndexStatusOutput, error) {
	out, err := s.handleIndexStatus(ctx)
	return nil, out, err
}

// Serve runs the server on the given transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func parseDates(start, end string) (store.DateRange, error) {
	dates, err := store.ParseDateRange(strings.TrimSpace(start), strings.TrimSpace(end))
	if err != nil {
		return store.DateRange{}, NewInvalidParamsError(err.Error())
	}
	return dates, nil
}

func parseGranularity(s string) (store.Granularity, error) {
	g, err := store.ParseGranularity(s, store.GranularityMonth)
	if err != nil {
		return "", NewInvalidParamsError(err.Error())
	}
	return g, nil
}

// clampLimit returns def when v is unset and bounds v to [lo, hi].
func clampLimit(v, def, lo, hi int) int {
	if v <= 0 {
		return def
	}
	return max(lo, min(v, hi))
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
