package document

import "sort"

// Document is an immutable snapshot of an open text document.
type Document struct {
	// URI identifies the document and is stable across edits.
	URI string
	// LanguageID is the editor language identifier (go, python, typescript...).
	LanguageID string
	// Version is the editor version of this snapshot. Informational only.
	Version int

	content     []rune
	lineOffsets []int
}

// DocumentRange pairs a document with a span inside it.
type DocumentRange struct {
	Document *Document
	Range    Range
}

// New creates a document snapshot.
func New(uri, languageID string, version int, text string) *Document {
	content := []rune(text)
	return &Document{
		URI:         uri,
		LanguageID:  languageID,
		Version:     version,
		content:     content,
		lineOffsets: computeLineOffsets(content),
	}
}

// computeLineOffsets returns the rune offset of the first character of every line.
// \n, \r and \r\n are all recognized as line terminators.
func computeLineOffsets(content []rune) []int {
	offsets := []int{0}
	for i := 0; i < len(content); i++ {
		ch := content[i]
		if ch != '\r' && ch != '\n' {
			continue
		}
		if ch == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			i++
		}
		offsets = append(offsets, i+1)
	}
	return offsets
}

// Text returns the full document text.
func (d *Document) Text() string {
	return string(d.content)
}

// Len returns the document length in characters.
func (d *Document) Len() int {
	return len(d.content)
}

// LineCount returns the number of lines. An empty document has one line.
func (d *Document) LineCount() int {
	return len(d.lineOffsets)
}

// FullRange returns the range covering the whole document.
func (d *Document) FullRange() Range {
	return Range{End: d.PositionAt(len(d.content))}
}

// OffsetAt converts a position to a character offset. Positions outside the
// document are clamped, and a character past the end of its line resolves to
// the end of that line (before the line terminator).
func (d *Document) OffsetAt(p Position) int {
	if p.Line >= len(d.lineOffsets) {
		return len(d.content)
	}
	if p.Line < 0 {
		return 0
	}
	lineOffset := d.lineOffsets[p.Line]
	if p.Character <= 0 {
		return lineOffset
	}
	nextLineOffset := len(d.content)
	if p.Line+1 < len(d.lineOffsets) {
		nextLineOffset = d.lineOffsets[p.Line+1]
	}
	offset := min(lineOffset+p.Character, nextLineOffset)
	return d.ensureBeforeEOL(offset, lineOffset)
}

// PositionAt converts a character offset to a position. Offsets outside the
// document are clamped.
func (d *Document) PositionAt(offset int) Position {
	offset = max(min(offset, len(d.content)), 0)

	// First line whose offset is greater than the target, minus one.
	line := sort.Search(len(d.lineOffsets), func(i int) bool {
		return d.lineOffsets[i] > offset
	}) - 1

	lineOffset := d.lineOffsets[line]
	offset = d.ensureBeforeEOL(offset, lineOffset)
	return Position{Line: line, Character: offset - lineOffset}
}

// ensureBeforeEOL moves an offset that points inside a line terminator back
// to the end of the line content.
func (d *Document) ensureBeforeEOL(offset, lineOffset int) int {
	for offset > lineOffset && isEOL(d.content[offset-1]) {
		offset--
	}
	return offset
}

func isEOL(r rune) bool {
	return r == '\r' || r == '\n'
}

// GetText returns the text covered by r. Reversed or empty ranges yield "".
func (d *Document) GetText(r Range) string {
	start := d.OffsetAt(r.Start)
	end := d.OffsetAt(r.End)
	if end <= start {
		return ""
	}
	return string(d.content[start:end])
}

// Validate clamps a position into the document.
func (d *Document) Validate(p Position) Position {
	return d.PositionAt(d.OffsetAt(p))
}

// RangeInDocument clamps r into d. It returns false when the range is
// reversed or resolves to an empty span.
func RangeInDocument(r Range, d *Document) (Range, bool) {
	if d == nil || r.End.Before(r.Start) {
		return Range{}, false
	}
	clamped := Range{Start: d.Validate(r.Start), End: d.Validate(r.End)}
	if clamped.IsEmpty() {
		return Range{}, false
	}
	return clamped, true
}
