package chunk

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/codesnip/internal/document"
	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
)

// Chunking defaults, matching what editor clients ship with.
const (
	DefaultMaxChunks    = 1000 // Chunks kept in memory across all documents
	DefaultChunkSize    = 500  // Characters per chunk
	DefaultOverlapLines = 1    // Lines shared by neighbouring chunks
)

// Chunk is a unit of indexed text.
type Chunk struct {
	URI      string         `json:"uri"`      // Owning document, stable across edits
	Range    document.Range `json:"range"`    // Span within the document (not indexed)
	Text     string         `json:"text"`     // Exact text covered by Range (not indexed)
	Language string         `json:"language"` // Language id, filterable facet
	Symbols  string         `json:"symbols"`  // Whitespace-joined identifiers, the searchable field
}

// Config bounds the chunker.
type Config struct {
	// MaxChunks caps the number of chunks produced per call. The range index
	// manager uses the same value as its global capacity.
	MaxChunks int `yaml:"max_chunks" json:"max_chunks"`

	// ChunkSize is the number of characters a chunk advances before it is
	// snapped back to a line start.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// OverlapLines is the number of lines shared by consecutive chunks.
	OverlapLines int `yaml:"overlap_lines" json:"overlap_lines"`
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		MaxChunks:    DefaultMaxChunks,
		ChunkSize:    DefaultChunkSize,
		OverlapLines: DefaultOverlapLines,
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.MaxChunks <= 0 {
		return cserrors.ConfigError(fmt.Sprintf("max_chunks must be positive, got %d", c.MaxChunks), nil)
	}
	if c.ChunkSize <= 0 {
		return cserrors.ConfigError(fmt.Sprintf("chunk_size must be positive, got %d", c.ChunkSize), nil)
	}
	if c.OverlapLines < 0 {
		return cserrors.ConfigError(fmt.Sprintf("overlap_lines must be non-negative, got %d", c.OverlapLines), nil)
	}
	return nil
}

// Chunker splits a document range into chunks.
type Chunker interface {
	Chunk(ctx context.Context, dr document.DocumentRange) []*Chunk
}

// Extractor reduces source text to a whitespace-joined bag of identifiers.
type Extractor interface {
	Extract(ctx context.Context, text, language string) string
}
