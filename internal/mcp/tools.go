package mcp

import (
	"github.com/Aman-CERP/codesnip/internal/document"
	"github.com/Aman-CERP/codesnip/internal/index"
	"github.com/Aman-CERP/codesnip/internal/search"
	"github.com/Aman-CERP/codesnip/internal/telemetry"
)

// Tool names.
const (
	ToolSearchSnippets = "search_snippets"
	ToolIndexDocument  = "index_document"
	ToolRemoveDocument = "remove_document"
	ToolIndexStatus    = "index_status"
)

// Limits applied to search_snippets.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// SearchSnippetsInput defines the input schema for the search_snippets tool.
type SearchSnippetsInput struct {
	Query     string   `json:"query" jsonschema:"identifiers or words to search for"`
	Filepaths []string `json:"filepaths,omitempty" jsonschema:"only return snippets from these document URIs (OR logic)"`
	Languages []string `json:"languages,omitempty" jsonschema:"only return snippets in these languages, e.g. go, python (OR logic)"`
	Limit     int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchSnippetsOutput defines the output schema for the search_snippets tool.
type SearchSnippetsOutput struct {
	Results []SnippetOutput `json:"results" jsonschema:"matching snippets, best first"`
}

// SnippetOutput is a single search result.
type SnippetOutput struct {
	URI      string         `json:"uri" jsonschema:"document URI"`
	Range    document.Range `json:"range" jsonschema:"zero-based span of the snippet in the document"`
	Text     string         `json:"text" jsonschema:"snippet text"`
	Language string         `json:"language" jsonschema:"language of the document"`
	Score    float64        `json:"score" jsonschema:"relevance score, never negative"`
}

// IndexDocumentInput defines the input schema for the index_document tool.
type IndexDocumentInput struct {
	Path      string `json:"path" jsonschema:"file path, absolute or relative to the workspace root"`
	StartLine int    `json:"start_line,omitempty" jsonschema:"first line to index, 1-based; default 1"`
	EndLine   int    `json:"end_line,omitempty" jsonschema:"last line to index, inclusive; default end of file"`
}

// IndexDocumentOutput defines the output schema for the index_document tool.
type IndexDocumentOutput struct {
	URI   string         `json:"uri" jsonschema:"URI of the indexed document"`
	Range document.Range `json:"range" jsonschema:"span tracked for the document after merging"`
	Stats index.Stats    `json:"stats" jsonschema:"index size after the call"`
}

// RemoveDocumentInput defines the input schema for the remove_document tool.
type RemoveDocumentInput struct {
	Path string `json:"path" jsonschema:"file path, absolute or relative to the workspace root"`
}

// RemoveDocumentOutput defines the output schema for the remove_document tool.
type RemoveDocumentOutput struct {
	URI     string `json:"uri" jsonschema:"URI of the document"`
	Removed bool   `json:"removed" jsonschema:"false when the document was not indexed"`
}

// IndexStatusInput defines the input schema for the index_status tool.
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Stats          index.Stats                   `json:"stats" jsonschema:"documents, chunks and capacity"`
	Queries        *telemetry.QueryStatsSnapshot `json:"queries,omitempty" jsonschema:"query statistics since startup"`
	ZeroResultRate float64                       `json:"zero_result_rate" jsonschema:"share of queries that found nothing"`
}

// ToSnippetOutput converts a search result to its wire form.
func ToSnippetOutput(r *search.Result) SnippetOutput {
	return SnippetOutput{
		URI:      r.URI,
		Range:    r.Range,
		Text:     r.Text,
		Language: r.Language,
		Score:    r.Score,
	}
}

// lineRange converts 1-based inclusive lines into a range. Zero values select
// the whole document.
func lineRange(doc *document.Document, startLine, endLine int) document.Range {
	full := doc.FullRange()
	r := full
	if startLine > 1 {
		r.Start = document.Position{Line: startLine - 1}
	}
	if endLine > 0 && endLine-1 < full.End.Line {
		r.End = document.Position{Line: endLine}
	}
	return r
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, maxVal int) int {
	if limit <= 0 {
		return defaultVal
	}
	return min(limit, maxVal)
}
