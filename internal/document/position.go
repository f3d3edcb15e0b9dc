// Package document provides the text document, position and range primitives
// consumed by the chunker and the range index manager.
//
// Positions are zero-based. Characters are counted in runes, so a chunk size
// expressed in characters never splits a multi-byte UTF-8 sequence.
package document

import "fmt"

// Position is a zero-based line/character location in a document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Compare returns -1, 0 or +1 when p is before, equal to or after o.
func (p Position) Compare(o Position) int {
	switch {
	case p.Line < o.Line:
		return -1
	case p.Line > o.Line:
		return 1
	case p.Character < o.Character:
		return -1
	case p.Character > o.Character:
		return 1
	default:
		return 0
	}
}

// Before reports whether p is strictly before o.
func (p Position) Before(o Position) bool {
	return p.Compare(o) < 0
}

// After reports whether p is strictly after o.
func (p Position) After(o Position) bool {
	return p.Compare(o) > 0
}

// String implements fmt.Stringer.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Range is a half-open span [Start, End) in a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// NewRange is shorthand for building a range from line/character pairs.
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

// IsEmpty reports whether the range covers no characters.
func (r Range) IsEmpty() bool {
	return !r.Start.Before(r.End)
}

// String implements fmt.Stringer.
func (r Range) String() string {
	return fmt.Sprintf("[%s-%s)", r.Start, r.End)
}

// Union returns the smallest range covering both a and b.
// Gaps between disjoint ranges are covered too.
func Union(a, b Range) Range {
	start := a.Start
	if b.Start.Before(start) {
		start = b.Start
	}
	end := a.End
	if b.End.After(end) {
		end = b.End
	}
	return Range{Start: start, End: end}
}
