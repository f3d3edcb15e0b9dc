package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
)

const (
	// CodeTokenizerName is the name of our custom code tokenizer.
	CodeTokenizerName = "code_tokenizer"

	// CodeStopFilterName is the name of our custom stop word filter.
	CodeStopFilterName = "code_stop"

	// CodeAnalyzerName is the name of our custom code analyzer.
	CodeAnalyzerName = "code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(CodeTokenizerName, codeTokenizerConstructor)
	_ = registry.RegisterTokenFilter(CodeStopFilterName, codeStopFilterConstructor)
}

// BleveEngine is an in-memory Bleve index. Searchable properties go through
// the code analyzer; filterable properties use the keyword analyzer so term
// queries match them exactly.
type BleveEngine struct {
	mu      sync.RWMutex
	index   bleve.Index
	schema  Schema
	records map[string]Record
	closed  bool
}

// NewBleveEngine creates an engine. The index is built by Create.
func NewBleveEngine() *BleveEngine {
	return &BleveEngine{records: make(map[string]Record)}
}

// Create builds the index mapping for schema and opens a memory-only index.
func (b *BleveEngine) Create(_ context.Context, schema Schema) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.index != nil {
		return fmt.Errorf("schema already created")
	}

	indexMapping, err := createIndexMapping(schema)
	if err != nil {
		return fmt.Errorf("failed to create index mapping: %w", err)
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	b.index = idx
	b.schema = schema
	return nil
}

// createIndexMapping maps every schema property and nothing else.
func createIndexMapping(schema Schema) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(CodeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": CodeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			CodeStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false

	for _, name := range schema.Searchable {
		text := bleve.NewTextFieldMapping()
		text.Analyzer = CodeAnalyzerName
		text.Store = false
		text.IncludeInAll = false
		doc.AddFieldMappingsAt(name, text)
	}
	for _, name := range schema.Filterable {
		kw := bleve.NewTextFieldMapping()
		kw.Analyzer = keyword.Name
		kw.Store = false
		kw.IncludeInAll = false
		kw.IncludeTermVectors = false
		doc.AddFieldMappingsAt(name, kw)
	}

	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = CodeAnalyzerName

	return indexMapping, nil
}

// InsertMany indexes records in a single batch.
func (b *BleveEngine) InsertMany(_ context.Context, records []Record) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.usable(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []string{}, nil
	}

	ids := make([]string, len(records))
	batch := b.index.NewBatch()
	for i, r := range records {
		ids[i] = uuid.New().String()
		if err := batch.Index(ids[i], b.fields(r)); err != nil {
			return nil, fmt.Errorf("failed to index record %s: %w", r.URI, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to execute batch: %w", err)
	}

	for i, r := range records {
		b.records[ids[i]] = r
	}
	return ids, nil
}

// fields projects a record onto the schema properties.
func (b *BleveEngine) fields(r Record) map[string]interface{} {
	doc := make(map[string]interface{}, len(b.schema.Searchable)+len(b.schema.Filterable))
	for _, name := range b.schema.Searchable {
		doc[name] = r.Field(name)
	}
	for _, name := range b.schema.Filterable {
		doc[name] = r.Field(name)
	}
	return doc
}

// RemoveMany deletes records by id. Unknown ids are ignored.
func (b *BleveEngine) RemoveMany(_ context.Context, ids []string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.usable(); err != nil {
		return 0, err
	}

	batch := b.index.NewBatch()
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := b.records[id]; !ok {
			continue
		}
		batch.Delete(id)
		removed = append(removed, id)
	}
	if len(removed) == 0 {
		return 0, nil
	}

	if err := b.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}

	for _, id := range removed {
		delete(b.records, id)
	}
	return len(removed), nil
}

// Count returns the number of indexed records.
func (b *BleveEngine) Count(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.usable(); err != nil {
		return 0, err
	}

	n, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(n), nil
}

// Search runs a match query over the requested properties, intersected with
// the where filters.
func (b *BleveEngine) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.usable(); err != nil {
		return nil, err
	}

	q, err := b.buildQuery(req)
	if err != nil {
		return nil, err
	}

	searchRequest := bleve.NewSearchRequestOptions(q, req.EffectiveLimit(), 0, false)
	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		r, ok := b.records[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Record: r})
	}
	return hits, nil
}

func (b *BleveEngine) buildQuery(req SearchRequest) (query.Query, error) {
	var conjuncts []query.Query

	if strings.TrimSpace(req.Term) == "" {
		conjuncts = append(conjuncts, bleve.NewMatchAllQuery())
	} else {
		props := req.Properties
		if len(props) == 0 {
			props = b.schema.Searchable
		}
		matches := make([]query.Query, 0, len(props))
		for _, p := range props {
			if !b.schema.IsSearchable(p) {
				return nil, fmt.Errorf("property %q is not searchable", p)
			}
			mq := bleve.NewMatchQuery(req.Term)
			mq.SetField(p)
			matches = append(matches, mq)
		}
		conjuncts = append(conjuncts, bleve.NewDisjunctionQuery(matches...))
	}

	// Sorted for a stable query shape.
	fields := make([]string, 0, len(req.Where))
	for field := range req.Where {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		values := req.Where[field]
		if len(values) == 0 {
			continue
		}
		if !b.schema.IsFilterable(field) {
			return nil, fmt.Errorf("property %q is not filterable", field)
		}
		terms := make([]query.Query, 0, len(values))
		for _, v := range values {
			tq := bleve.NewTermQuery(v)
			tq.SetField(field)
			terms = append(terms, tq)
		}
		conjuncts = append(conjuncts, bleve.NewDisjunctionQuery(terms...))
	}

	if len(conjuncts) == 1 {
		return conjuncts[0], nil
	}
	return bleve.NewConjunctionQuery(conjuncts...), nil
}

// Close closes the index.
func (b *BleveEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	b.records = nil
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

func (b *BleveEngine) usable() error {
	if b.closed {
		return ErrClosed
	}
	if b.index == nil {
		return ErrNotCreated
	}
	return nil
}

var _ Engine = (*BleveEngine)(nil)

// codeTokenizerConstructor creates a new code tokenizer for Bleve.
func codeTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveCodeTokenizer{}, nil
}

// bleveCodeTokenizer implements analysis.Tokenizer with TokenizeCode. Every
// token produced from a word carries that word's byte span.
type bleveCodeTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveCodeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	result := make(analysis.TokenStream, 0)
	pos := 1

	for _, loc := range wordRegex.FindAllStringIndex(text, -1) {
		for _, token := range TokenizeCode(text[loc[0]:loc[1]]) {
			result = append(result, &analysis.Token{
				Term:     []byte(token),
				Start:    loc[0],
				End:      loc[1],
				Position: pos,
				Type:     analysis.AlphaNumeric,
			})
			pos++
		}
	}

	return result
}

// codeStopFilterConstructor creates a code stop word filter for Bleve.
func codeStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveCodeStopFilter{
		stopWords: BuildStopWordMap(DefaultStopWords),
	}, nil
}

// bleveCodeStopFilter implements analysis.TokenFilter for code stop words.
type bleveCodeStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveCodeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[strings.ToLower(string(token.Term))]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
