// Package chunk splits document ranges into overlapping, line-aligned chunks
// and extracts the identifiers each chunk is searched by.
package chunk

import (
	"context"
	"strings"

	"github.com/Aman-CERP/codesnip/internal/document"
)

// RangeChunker produces line-aligned chunks of roughly ChunkSize characters
// with OverlapLines lines shared between neighbours.
type RangeChunker struct {
	config    Config
	extractor Extractor
}

// NewRangeChunker creates a chunker. A nil extractor selects the default
// SymbolExtractor.
func NewRangeChunker(config Config, extractor Extractor) (*RangeChunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if extractor == nil {
		extractor = NewSymbolExtractor()
	}
	return &RangeChunker{config: config, extractor: extractor}, nil
}

// Config returns the chunker configuration.
func (c *RangeChunker) Config() Config {
	return c.config
}

// Chunk splits dr into at most MaxChunks chunks. Ranges that are reversed or
// empty after clamping produce no chunks, and whitespace-only chunks are
// skipped. The returned slice is never nil.
//
// Every pass advances the start line by at least one, so the loop ends even
// for a one-character ChunkSize or an overlap wider than the chunk.
func (c *RangeChunker) Chunk(ctx context.Context, dr document.DocumentRange) []*Chunk {
	chunks := make([]*Chunk, 0)

	doc := dr.Document
	rng, ok := document.RangeInDocument(dr.Range, doc)
	if !ok {
		return chunks
	}

	overlap := c.config.OverlapLines
	start := rng.Start

	for {
		end := doc.PositionAt(doc.OffsetAt(start) + c.config.ChunkSize)

		// Snap to a line start unless we already reached the range end.
		if end.Before(rng.End) {
			end = document.Position{Line: end.Line}
		}

		// Guarantee at least one line beyond the overlap.
		if end.Line <= start.Line+overlap {
			end = document.Position{Line: start.Line + overlap + 1}
		}

		if end.After(rng.End) {
			end = rng.End
		}

		span := document.Range{Start: start, End: end}
		text := doc.GetText(span)
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, &Chunk{
				URI:      doc.URI,
				Range:    span,
				Text:     text,
				Language: doc.LanguageID,
				Symbols:  c.extractor.Extract(ctx, text, doc.LanguageID),
			})
		}

		if len(chunks) >= c.config.MaxChunks || !end.Before(rng.End) {
			break
		}
		start = document.Position{Line: end.Line - overlap}
	}

	return chunks
}

var _ Chunker = (*RangeChunker)(nil)
