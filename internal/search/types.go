// Package search answers keyword queries over the snippet index.
//
// Hits from the engine are filtered again by file path and language, their
// scores are normalized so that NaN, infinite and negative values become 0,
// and the results are stable-sorted by descending score.
package search

import (
	"context"

	"github.com/Aman-CERP/codesnip/internal/chunk"
	"github.com/Aman-CERP/codesnip/internal/store"
)

// HitSource runs engine queries. store.IndexStore implements it; the bool
// result is false when no engine has been created yet.
type HitSource interface {
	Search(ctx context.Context, req store.SearchRequest) ([]store.Hit, bool, error)
}

// Options configures a search.
type Options struct {
	// FilepathsFilter keeps only results whose URI is in the list.
	// Empty means no filtering.
	FilepathsFilter []string

	// LanguagesFilter keeps only results whose language is in the list.
	// Empty means no filtering.
	LanguagesFilter []string

	// Limit caps the number of engine hits. 0 uses the engine default (10).
	Limit int
}

// Result is a chunk with its relevance score.
type Result struct {
	chunk.Chunk
	Score float64 `json:"score"`
}
