// Package store owns the full-text engine that backs the snippet index.
// Engines are in-memory; nothing is persisted across process restarts.
package store

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks github.com/Aman-CERP/codesnip/internal/store Engine

import (
	"context"
	"errors"

	"github.com/Aman-CERP/codesnip/internal/chunk"
)

// Indexed property names.
const (
	FieldURI      = "uri"
	FieldLanguage = "language"
	FieldSymbols  = "symbols"
)

// DefaultSearchLimit is the number of hits returned when a request leaves
// Limit unset.
const DefaultSearchLimit = 10

// ErrClosed is returned by engines after Close.
var ErrClosed = errors.New("engine is closed")

// ErrNotCreated is returned by engines used before Create.
var ErrNotCreated = errors.New("engine schema not created")

// Schema declares which record properties an engine indexes.
type Schema struct {
	// Searchable properties are analyzed for full-text matching.
	Searchable []string

	// Filterable properties are indexed verbatim for equality filters.
	Filterable []string
}

// DefaultSchema indexes symbols for full-text search and uri/language for
// exact-match filtering. Chunk text and range are stored but not indexed.
func DefaultSchema() Schema {
	return Schema{
		Searchable: []string{FieldSymbols},
		Filterable: []string{FieldURI, FieldLanguage},
	}
}

// IsSearchable reports whether name is a full-text property.
func (s Schema) IsSearchable(name string) bool {
	return contains(s.Searchable, name)
}

// IsFilterable reports whether name is an exact-match property.
func (s Schema) IsFilterable(name string) bool {
	return contains(s.Filterable, name)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Record is what gets inserted into an engine. The chunk is kept as the
// stored document and returned verbatim in hits.
type Record struct {
	URI      string
	Language string
	Symbols  string
	Chunk    *chunk.Chunk
}

// NewRecord builds a record from a chunk.
func NewRecord(c *chunk.Chunk) Record {
	return Record{
		URI:      c.URI,
		Language: c.Language,
		Symbols:  c.Symbols,
		Chunk:    c,
	}
}

// Field returns the value of an indexed property.
func (r Record) Field(name string) string {
	switch name {
	case FieldURI:
		return r.URI
	case FieldLanguage:
		return r.Language
	case FieldSymbols:
		return r.Symbols
	default:
		return ""
	}
}

// SearchRequest is an engine query.
type SearchRequest struct {
	// Term is matched against Properties. A blank term matches everything.
	Term string

	// Properties restricts full-text matching. Empty means every searchable
	// property.
	Properties []string

	// Where maps a filterable property to its accepted values. A record
	// passes when, for every entry, its value equals one of the values.
	// Entries with no values are ignored.
	Where map[string][]string

	// Limit caps the number of hits. Zero selects DefaultSearchLimit.
	Limit int
}

// EffectiveLimit returns Limit with the default applied.
func (r SearchRequest) EffectiveLimit() int {
	if r.Limit <= 0 {
		return DefaultSearchLimit
	}
	return r.Limit
}

// Hit is a single engine match.
type Hit struct {
	ID     string
	Score  float64
	Record Record
}

// Engine is a full-text index over Records. Implementations must be safe for
// concurrent use.
type Engine interface {
	// Create declares the schema. It must be called exactly once before any
	// other method.
	Create(ctx context.Context, schema Schema) error

	// InsertMany adds records and returns one id per record, in order.
	InsertMany(ctx context.Context, records []Record) ([]string, error)

	// RemoveMany deletes records by id and returns how many existed.
	RemoveMany(ctx context.Context, ids []string) (int, error)

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)

	// Search runs a query.
	Search(ctx context.Context, req SearchRequest) ([]Hit, error)

	// Close releases engine resources.
	Close() error
}
