package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_LineCount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 1},
		{"single line", "abc", 1},
		{"trailing newline", "abc\n", 2},
		{"crlf", "a\r\nb\r\nc", 3},
		{"lone cr", "a\rb", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New("file:///a.go", "go", 1, tt.text).LineCount())
		})
	}
}

func TestDocument_OffsetAt_ClampsOutOfRange(t *testing.T) {
	// Given: a two-line document
	doc := New("file:///a.go", "go", 1, "hello\nworld")

	// Then: positions are clamped to the document and to line ends
	assert.Equal(t, 0, doc.OffsetAt(Position{Line: -1, Character: 3}))
	assert.Equal(t, 0, doc.OffsetAt(Position{Line: 0, Character: -2}))
	assert.Equal(t, 3, doc.OffsetAt(Position{Line: 0, Character: 3}))
	assert.Equal(t, 5, doc.OffsetAt(Position{Line: 0, Character: 99}), "past end of line stops before newline")
	assert.Equal(t, 6, doc.OffsetAt(Position{Line: 1, Character: 0}))
	assert.Equal(t, 11, doc.OffsetAt(Position{Line: 7, Character: 0}))
}

func TestDocument_PositionAt_RoundTrips(t *testing.T) {
	doc := New("file:///a.go", "go", 1, "ab\r\ncd\nef")

	for offset := 0; offset <= doc.Len(); offset++ {
		pos := doc.PositionAt(offset)
		back := doc.OffsetAt(pos)
		assert.LessOrEqual(t, back, offset, "offset %d", offset)
	}

	assert.Equal(t, Position{Line: 0, Character: 2}, doc.PositionAt(3), "inside CRLF resolves to line end")
	assert.Equal(t, Position{Line: 1, Character: 0}, doc.PositionAt(4))
	assert.Equal(t, Position{Line: 2, Character: 2}, doc.PositionAt(100))
	assert.Equal(t, Position{Line: 0, Character: 0}, doc.PositionAt(-5))
}

func TestDocument_PositionAt_CountsRunes(t *testing.T) {
	doc := New("file:///a.py", "python", 1, "héllo\nwörld")

	assert.Equal(t, Position{Line: 1, Character: 2}, doc.PositionAt(8))
	assert.Equal(t, "wö", doc.GetText(NewRange(1, 0, 1, 2)))
}

func TestDocument_GetText(t *testing.T) {
	doc := New("file:///a.go", "go", 1, "line0\nline1\nline2\n")

	assert.Equal(t, "line0\nline1\n", doc.GetText(NewRange(0, 0, 2, 0)))
	assert.Equal(t, "ne1", doc.GetText(NewRange(1, 2, 1, 5)))
	assert.Equal(t, "", doc.GetText(NewRange(2, 0, 1, 0)), "reversed range")
	assert.Equal(t, doc.Text(), doc.GetText(doc.FullRange()))
}

func TestRangeInDocument(t *testing.T) {
	doc := New("file:///a.go", "go", 1, "abc\ndef")

	r, ok := RangeInDocument(NewRange(0, 1, 9, 9), doc)
	require.True(t, ok)
	assert.Equal(t, NewRange(0, 1, 1, 3), r, "end clamped to document end")

	_, ok = RangeInDocument(NewRange(1, 0, 0, 0), doc)
	assert.False(t, ok, "reversed")

	_, ok = RangeInDocument(NewRange(5, 0, 9, 0), doc)
	assert.False(t, ok, "entirely past the end collapses to empty")

	_, ok = RangeInDocument(NewRange(0, 0, 1, 0), nil)
	assert.False(t, ok, "nil document")
}

func TestUnion(t *testing.T) {
	a := NewRange(2, 4, 5, 0)
	b := NewRange(10, 0, 12, 3)

	// Disjoint ranges: the gap between them is covered.
	assert.Equal(t, NewRange(2, 4, 12, 3), Union(a, b))
	assert.Equal(t, Union(a, b), Union(b, a))

	// Nested ranges: the outer one wins.
	assert.Equal(t, a, Union(a, NewRange(3, 0, 4, 0)))
}

func TestPosition_Compare(t *testing.T) {
	p := Position{Line: 3, Character: 4}

	assert.True(t, p.Before(Position{Line: 3, Character: 5}))
	assert.True(t, p.Before(Position{Line: 4, Character: 0}))
	assert.True(t, p.After(Position{Line: 2, Character: 99}))
	assert.Equal(t, 0, p.Compare(Position{Line: 3, Character: 4}))
	assert.True(t, NewRange(1, 1, 1, 1).IsEmpty())
}
