package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/codesnip/internal/document"
	"github.com/Aman-CERP/codesnip/internal/index"
	"github.com/Aman-CERP/codesnip/internal/search"
	"github.com/Aman-CERP/codesnip/internal/telemetry"
	"github.com/Aman-CERP/codesnip/internal/workspace"
	"github.com/Aman-CERP/codesnip/pkg/version"
)

// TransportStdio is the only supported transport.
const TransportStdio = "stdio"

// Searcher runs snippet queries.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) ([]*search.Result, error)
}

// Indexer is the part of index.Manager the tools drive.
type Indexer interface {
	Index(ctx context.Context, dr document.DocumentRange) error
	Remove(ctx context.Context, uri string) (bool, error)
	Stats(ctx context.Context) (index.Stats, error)
	IndexedDocumentRanges() []document.DocumentRange
}

// FileLoader reads workspace files.
type FileLoader interface {
	LoadFile(ctx context.Context, path string) (*document.Document, error)
	Root() string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With("component", "mcp")
		}
	}
}

// WithQueryStats reports query statistics from index_status.
func WithQueryStats(q *telemetry.QueryStats) Option {
	return func(s *Server) { s.stats = q }
}

// WithDefaultLimit sets the result limit used when a search gives none.
func WithDefaultLimit(limit int) Option {
	return func(s *Server) {
		if limit > 0 {
			s.defaultLimit = limit
		}
	}
}

// Server bridges MCP clients with the snippet index.
type Server struct {
	mcp          *mcp.Server
	searcher     Searcher
	indexer      Indexer
	loader       FileLoader
	stats        *telemetry.QueryStats
	defaultLimit int
	logger       *slog.Logger
}

// NewServer creates an MCP server and registers its tools.
func NewServer(searcher Searcher, indexer Indexer, loader FileLoader, opts ...Option) (*Server, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if indexer == nil {
		return nil, errors.New("indexer is required")
	}
	if loader == nil {
		return nil, errors.New("file loader is required")
	}

	s := &Server{
		searcher:     searcher,
		indexer:      indexer,
		loader:       loader,
		defaultLimit: DefaultSearchLimit,
		logger:       slog.Default().With("component", "mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "codesnip",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSearchSnippets,
		Description: "Find indexed code snippets whose identifiers match the query. Filter by document URI or language. Results are ordered best first.",
	}, s.searchSnippetsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolIndexDocument,
		Description: "Index a file, or a line range of it, so its snippets become searchable. Indexing the same file again extends the tracked range. The oldest documents are evicted when the index is full.",
	}, s.indexDocumentHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolRemoveDocument,
		Description: "Remove a file and all of its snippets from the index.",
	}, s.removeDocumentHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolIndexStatus,
		Description: "Report how many documents and snippets are indexed, the capacity, and query statistics.",
	}, s.indexStatusHandler)

	s.logger.Debug("tools_registered", slog.Int("count", 4))
}

func (s *Server) searchSnippetsHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchSnippetsInput) (
	*mcp.CallToolResult,
	SearchSnippetsOutput,
	error,
) {
	requestID := generateRequestID()
	start := time.Now()

	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchSnippetsOutput{}, NewInvalidParamsError("query parameter is required")
	}

	results, err := s.searcher.Search(ctx, input.Query, search.Options{
		FilepathsFilter: input.Filepaths,
		LanguagesFilter: input.Languages,
		Limit:           clampLimit(input.Limit, s.defaultLimit, MaxSearchLimit),
	})
	if err != nil {
		s.logger.Warn("tool_failed",
			slog.String("request_id", requestID),
			slog.String("tool", ToolSearchSnippets),
			slog.String("error", err.Error()))
		return nil, SearchSnippetsOutput{}, MapError(err)
	}

	output := SearchSnippetsOutput{Results: make([]SnippetOutput, 0, len(results))}
	for _, r := range results {
		output.Results = append(output.Results, ToSnippetOutput(r))
	}

	s.logger.Debug("tool_completed",
		slog.String("request_id", requestID),
		slog.String("tool", ToolSearchSnippets),
		slog.Int("results", len(output.Results)),
		slog.Duration("duration", time.Since(start)))

	return nil, output, nil
}

func (s *Server) indexDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexDocumentInput) (
	*mcp.CallToolResult,
	IndexDocumentOutput,
	error,
) {
	requestID := generateRequestID()

	if input.Path == "" {
		return nil, IndexDocumentOutput{}, NewInvalidParamsError("path parameter is required")
	}
	if input.StartLine < 0 || input.EndLine < 0 {
		return nil, IndexDocumentOutput{}, NewInvalidParamsError("line numbers must not be negative")
	}
	if input.EndLine > 0 && input.EndLine < max(input.StartLine, 1) {
		return nil, IndexDocumentOutput{}, NewInvalidParamsError(
			fmt.Sprintf("end_line %d is before start_line %d", input.EndLine, input.StartLine))
	}

	doc, err := s.loader.LoadFile(ctx, input.Path)
	if err != nil {
		s.logger.Warn("tool_failed",
			slog.String("request_id", requestID),
			slog.String("tool", ToolIndexDocument),
			slog.String("path", input.Path),
			slog.String("error", err.Error()))
		return nil, IndexDocumentOutput{}, MapError(err)
	}

	r := lineRange(doc, input.StartLine, input.EndLine)
	if err := s.indexer.Index(ctx, document.DocumentRange{Document: doc, Range: r}); err != nil {
		return nil, IndexDocumentOutput{}, MapError(err)
	}

	stats, err := s.indexer.Stats(ctx)
	if err != nil {
		return nil, IndexDocumentOutput{}, MapError(err)
	}

	output := IndexDocumentOutput{URI: doc.URI, Range: r, Stats: stats}
	// The tracked range is the union with what was indexed before, unless the
	// document was evicted by its own insert.
	for _, dr := range s.indexer.IndexedDocumentRanges() {
		if dr.Document.URI == doc.URI {
			output.Range = dr.Range
		}
	}

	s.logger.Debug("tool_completed",
		slog.String("request_id", requestID),
		slog.String("tool", ToolIndexDocument),
		slog.String("uri", doc.URI),
		slog.String("range", output.Range.String()))

	return nil, output, nil
}

func (s *Server) removeDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input RemoveDocumentInput) (
	*mcp.CallToolResult,
	RemoveDocumentOutput,
	error,
) {
	if input.Path == "" {
		return nil, RemoveDocumentOutput{}, NewInvalidParamsError("path parameter is required")
	}

	path := input.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.loader.Root(), path)
	}
	uri := workspace.URIFromPath(path)

	removed, err := s.indexer.Remove(ctx, uri)
	if err != nil {
		return nil, RemoveDocumentOutput{}, MapError(err)
	}
	return nil, RemoveDocumentOutput{URI: uri, Removed: removed}, nil
}

func (s *Server) indexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	stats, err := s.indexer.Stats(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}

	output := IndexStatusOutput{Stats: stats}
	if s.stats != nil {
		snap := s.stats.Snapshot()
		output.Queries = &snap
		output.ZeroResultRate = snap.ZeroResultRate()
	}
	return nil, output, nil
}

// Serve runs the server until ctx is canceled or the client disconnects.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case TransportStdio:
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

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
