package chunk

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codesnip/internal/document"
)

// recordingExtractor returns a fixed marker and remembers what it saw.
type recordingExtractor struct {
	texts     []string
	languages []string
}

func (r *recordingExtractor) Extract(_ context.Context, text, language string) string {
	r.texts = append(r.texts, text)
	r.languages = append(r.languages, language)
	return "sym"
}

func newTestChunker(t *testing.T, maxChunks, chunkSize, overlap int) *RangeChunker {
	t.Helper()
	c, err := NewRangeChunker(Config{
		MaxChunks:    maxChunks,
		ChunkSize:    chunkSize,
		OverlapLines: overlap,
	}, &recordingExtractor{})
	require.NoError(t, err)
	return c
}

func fullRange(doc *document.Document) document.DocumentRange {
	return document.DocumentRange{Document: doc, Range: doc.FullRange()}
}

func TestRangeChunker_ThreeLineDocument_StopsAtMaxChunks(t *testing.T) {
	// Given: three non-empty lines and {MaxChunks: 2, ChunkSize: 20, Overlap: 0}
	doc := document.New("file:///a.txt", "plaintext", 1, "line one is here\nline two is here\nline three here")
	c := newTestChunker(t, 2, 20, 0)

	// When: chunking the full document
	chunks := c.Chunk(context.Background(), fullRange(doc))

	// Then: exactly two line-aligned chunks, the third line is dropped
	require.Len(t, chunks, 2)
	assert.Equal(t, document.NewRange(0, 0, 1, 0), chunks[0].Range)
	assert.Equal(t, "line one is here\n", chunks[0].Text)
	assert.Equal(t, document.NewRange(1, 0, 2, 0), chunks[1].Range)
	assert.Equal(t, "line two is here\n", chunks[1].Text)
}

func TestRangeChunker_NoOverlap_CoversWholeRange(t *testing.T) {
	text := "line one is here\nline two is here\nline three here"
	doc := document.New("file:///a.txt", "plaintext", 1, text)
	c := newTestChunker(t, 100, 20, 0)

	chunks := c.Chunk(context.Background(), fullRange(doc))

	require.Len(t, chunks, 3)
	assert.Equal(t, document.NewRange(2, 0, 2, 15), chunks[2].Range, "last chunk ends at range end")

	var joined strings.Builder
	for _, ch := range chunks {
		joined.WriteString(ch.Text)
	}
	assert.Equal(t, text, joined.String())
}

func TestRangeChunker_Overlap_SharesLinesBetweenNeighbours(t *testing.T) {
	// Given: one-character chunks with a one-line overlap
	doc := document.New("file:///a.txt", "plaintext", 1, "a\nb\nc\nd")
	c := newTestChunker(t, 100, 1, 1)

	chunks := c.Chunk(context.Background(), fullRange(doc))

	// Then: every chunk spans overlap+1 lines and starts one line after the previous
	require.Len(t, chunks, 3)
	assert.Equal(t, document.NewRange(0, 0, 2, 0), chunks[0].Range)
	assert.Equal(t, document.NewRange(1, 0, 3, 0), chunks[1].Range)
	assert.Equal(t, document.NewRange(2, 0, 3, 1), chunks[2].Range)
	assert.Equal(t, "c\nd", chunks[2].Text)
}

func TestRangeChunker_SkipsWhitespaceOnlyChunks(t *testing.T) {
	doc := document.New("file:///a.txt", "plaintext", 1, "abc\n\n  \n\ndef")
	c := newTestChunker(t, 100, 1, 0)

	chunks := c.Chunk(context.Background(), fullRange(doc))

	require.Len(t, chunks, 2)
	assert.Equal(t, "abc\n", chunks[0].Text)
	assert.Equal(t, "def", chunks[1].Text)
}

func TestRangeChunker_EmptyOrReversedRange_ReturnsEmpty(t *testing.T) {
	doc := document.New("file:///a.txt", "plaintext", 1, "abc\ndef")
	c := newTestChunker(t, 100, 10, 0)

	tests := []struct {
		name string
		dr   document.DocumentRange
	}{
		{"empty range", document.DocumentRange{Document: doc, Range: document.NewRange(1, 1, 1, 1)}},
		{"reversed range", document.DocumentRange{Document: doc, Range: document.NewRange(1, 0, 0, 0)}},
		{"past end", document.DocumentRange{Document: doc, Range: document.NewRange(9, 0, 12, 0)}},
		{"nil document", document.DocumentRange{Range: document.NewRange(0, 0, 1, 0)}},
		{"empty document", fullRange(document.New("file:///e.txt", "plaintext", 1, ""))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := c.Chunk(context.Background(), tt.dr)
			assert.NotNil(t, chunks)
			assert.Empty(t, chunks)
		})
	}
}

func TestRangeChunker_PartialLineRange(t *testing.T) {
	doc := document.New("file:///a.txt", "plaintext", 1, "abcdefgh\nsecond")
	c := newTestChunker(t, 100, 500, 1)

	chunks := c.Chunk(context.Background(), document.DocumentRange{
		Document: doc,
		Range:    document.NewRange(0, 2, 0, 5),
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, "cde", chunks[0].Text)
	assert.Equal(t, document.NewRange(0, 2, 0, 5), chunks[0].Range)
}

func TestRangeChunker_RespectsMaxChunks(t *testing.T) {
	doc := document.New("file:///a.txt", "plaintext", 1, strings.Repeat("some text\n", 10))
	c := newTestChunker(t, 3, 1, 0)

	chunks := c.Chunk(context.Background(), fullRange(doc))

	assert.Len(t, chunks, 3)
}

func TestRangeChunker_ChunkFields(t *testing.T) {
	// Given: a Go document and a recording extractor
	doc := document.New("file:///src/main.go", "go", 4, "package main\n\nfunc main() {}\n")
	extractor := &recordingExtractor{}
	c, err := NewRangeChunker(Config{MaxChunks: 10, ChunkSize: 500, OverlapLines: 1}, extractor)
	require.NoError(t, err)

	// When: chunking
	chunks := c.Chunk(context.Background(), fullRange(doc))

	// Then: each chunk carries the document identity and its own text
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, "file:///src/main.go", ch.URI)
		assert.Equal(t, "go", ch.Language)
		assert.Equal(t, "sym", ch.Symbols)
		assert.Equal(t, doc.GetText(ch.Range), ch.Text, "text matches range")
		assert.Equal(t, ch.Text, extractor.texts[i])
		assert.Equal(t, "go", extractor.languages[i])
	}
}

func TestRangeChunker_DegenerateConfig_Terminates(t *testing.T) {
	// Overlap far wider than the chunk size must still make forward progress.
	doc := document.New("file:///a.txt", "plaintext", 1, strings.Repeat("x\n", 50))
	c := newTestChunker(t, 1000, 1, 5)

	done := make(chan []*Chunk, 1)
	go func() {
		done <- c.Chunk(context.Background(), fullRange(doc))
	}()

	select {
	case chunks := <-done:
		require.NotEmpty(t, chunks)
		for i := 1; i < len(chunks); i++ {
			assert.Greater(t, chunks[i].Range.Start.Line, chunks[i-1].Range.Start.Line)
		}
		assert.Equal(t, doc.FullRange().End, chunks[len(chunks)-1].Range.End)
	case <-time.After(5 * time.Second):
		t.Fatal("chunker did not terminate")
	}
}

func TestNewRangeChunker_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"zero max chunks", Config{MaxChunks: 0, ChunkSize: 10, OverlapLines: 0}},
		{"zero chunk size", Config{MaxChunks: 1, ChunkSize: 0, OverlapLines: 0}},
		{"negative overlap", Config{MaxChunks: 1, ChunkSize: 10, OverlapLines: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRangeChunker(tt.config, nil)
			assert.Error(t, err)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1000, cfg.MaxChunks)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 1, cfg.OverlapLines)
	assert.NoError(t, cfg.Validate())
}
