package telemetry

import (
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Defaults for QueryStats capacities.
const (
	DefaultTopTermsCapacity   = 100
	DefaultZeroResultCapacity = 50
	DefaultRecentCapacity     = 500
	minTermLength             = 3
)

// TermCount is a query term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// QueryStatsSnapshot is a point-in-time copy of QueryStats.
type QueryStatsSnapshot struct {
	TotalQueries      int64         `json:"total_queries"`
	ZeroResultCount   int64         `json:"zero_result_count"`
	RepeatCount       int64         `json:"repeat_count"`
	TopTerms          []TermCount   `json:"top_terms"`
	ZeroResultQueries []string      `json:"zero_result_queries"`
	AverageLatency    time.Duration `json:"average_latency_ns"`
	Since             time.Time     `json:"since"`
}

// ZeroResultRate returns the share of queries that found nothing, in [0,1].
func (s QueryStatsSnapshot) ZeroResultRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries)
}

// QueryStats keeps bounded in-memory statistics about search queries.
// Safe for concurrent use.
type QueryStats struct {
	mu sync.Mutex

	topTerms     *lru.Cache[string, int64]
	recent       *lru.Cache[string, struct{}]
	zeroResults  []string
	zeroHead     int
	zeroCapacity int

	total        int64
	zeroCount    int64
	repeats      int64
	totalLatency time.Duration
	since        time.Time
}

// NewQueryStats creates stats with the default capacities.
func NewQueryStats() *QueryStats {
	topTerms, _ := lru.New[string, int64](DefaultTopTermsCapacity)
	recent, _ := lru.New[string, struct{}](DefaultRecentCapacity)
	return &QueryStats{
		topTerms:     topTerms,
		recent:       recent,
		zeroCapacity: DefaultZeroResultCapacity,
		since:        time.Now(),
	}
}

// Record adds one query. A nil receiver is a no-op.
func (q *QueryStats) Record(query string, results int, latency time.Duration) {
	if q == nil {
		return
	}
	normalized := strings.ToLower(strings.TrimSpace(query))

	q.mu.Lock()
	defer q.mu.Unlock()

	q.total++
	q.totalLatency += latency

	for _, term := range ExtractTerms(normalized) {
		count, _ := q.topTerms.Get(term)
		q.topTerms.Add(term, count+1)
	}

	if results == 0 {
		q.zeroCount++
		q.pushZeroResult(query)
	}

	if q.recent.Contains(normalized) {
		q.repeats++
	}
	q.recent.Add(normalized, struct{}{})
}

// pushZeroResult appends to the ring, overwriting the oldest entry when full.
func (q *QueryStats) pushZeroResult(query string) {
	if len(q.zeroResults) < q.zeroCapacity {
		q.zeroResults = append(q.zeroResults, query)
		return
	}
	q.zeroResults[q.zeroHead] = query
	q.zeroHead = (q.zeroHead + 1) % q.zeroCapacity
}

// Snapshot returns a copy of the current statistics. Top terms are sorted by
// count, then term. Zero-result queries are oldest first.
func (q *QueryStats) Snapshot() QueryStatsSnapshot {
	if q == nil {
		return QueryStatsSnapshot{}
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	terms := make([]TermCount, 0, q.topTerms.Len())
	for _, key := range q.topTerms.Keys() {
		if count, ok := q.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: count})
		}
	}
	slices.SortFunc(terms, func(a, b TermCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Term, b.Term)
	})

	zero := make([]string, 0, len(q.zeroResults))
	zero = append(zero, q.zeroResults[q.zeroHead:]...)
	zero = append(zero, q.zeroResults[:q.zeroHead]...)

	var avg time.Duration
	if q.total > 0 {
		avg = q.totalLatency / time.Duration(q.total)
	}

	return QueryStatsSnapshot{
		TotalQueries:      q.total,
		ZeroResultCount:   q.zeroCount,
		RepeatCount:       q.repeats,
		TopTerms:          terms,
		ZeroResultQueries: zero,
		AverageLatency:    avg,
		Since:             q.since,
	}
}

// ExtractTerms splits a query into lowercase terms of at least three runes.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(w)) >= minTermLength {
			terms = append(terms, w)
		}
	}
	return terms
}
