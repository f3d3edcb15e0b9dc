package chunk

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// minSymbolLength drops short names (i, x, ok, id) that only add noise.
const minSymbolLength = 3

var wordPattern = regexp.MustCompile(`[\p{L}_][\p{L}\p{N}_]*`)

// reservedWords are keywords and builtin literals across the languages the
// registry knows. Only the fallback path needs them: tree-sitter keywords are
// anonymous nodes and never reach the identifier filter.
var reservedWords = buildWordSet(
	// shared
	"and", "break", "case", "catch", "class", "const", "continue", "default",
	"delete", "else", "enum", "export", "extends", "false", "final", "finally",
	"for", "function", "goto", "import", "instanceof", "interface", "let",
	"new", "not", "null", "package", "private", "protected", "public",
	"return", "static", "super", "switch", "this", "throw", "throws", "true",
	"try", "typeof", "var", "void", "while", "with", "yield",
	// go
	"chan", "defer", "fallthrough", "func", "map", "range", "select",
	"struct", "type", "nil", "iota",
	// javascript / typescript
	"async", "await", "debugger", "undefined", "implements", "abstract",
	"declare", "keyof", "readonly", "namespace", "module", "any", "unknown",
	"never", "string", "number", "boolean", "symbol", "bigint", "from",
	// python
	"def", "elif", "except", "global", "lambda", "nonlocal", "pass", "raise",
	"None", "True", "False", "self", "assert", "del",
	// rust / c family
	"impl", "trait", "pub", "mut", "crate", "match", "loop", "where",
	"unsafe", "use", "mod", "dyn", "ref", "move", "int", "long", "short",
	"char", "float", "double", "unsigned", "signed", "sizeof", "typedef",
	"union", "extern", "volatile", "register", "auto", "inline",
	"virtual", "template", "typename", "using", "operator", "friend",
	"bool", "byte",
)

func buildWordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// SymbolExtractor reduces a chunk of source to the identifiers a user is
// likely to search for. Languages with a tree-sitter grammar use identifier
// leaves; everything else, and any source that fails to parse, goes through
// a word tokenizer with a keyword blacklist.
//
// SymbolExtractor is safe for concurrent use.
type SymbolExtractor struct {
	registry *LanguageRegistry
	parsers  sync.Pool
	logger   *slog.Logger
}

// NewSymbolExtractor creates an extractor backed by the default registry.
func NewSymbolExtractor() *SymbolExtractor {
	return NewSymbolExtractorWithRegistry(DefaultRegistry())
}

// NewSymbolExtractorWithRegistry creates an extractor backed by registry.
func NewSymbolExtractorWithRegistry(registry *LanguageRegistry) *SymbolExtractor {
	e := &SymbolExtractor{
		registry: registry,
		logger:   slog.Default(),
	}
	e.parsers.New = func() any {
		return NewParserWithRegistry(registry)
	}
	return e
}

// Extract returns the unique symbols in text, in first-seen order, joined
// by single spaces.
func (e *SymbolExtractor) Extract(ctx context.Context, text, language string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	if _, ok := e.registry.GetTreeSitterLanguage(language); ok {
		p := e.parsers.Get().(*Parser)
		identifiers, err := p.Identifiers(ctx, []byte(text), language)
		e.parsers.Put(p)

		if err == nil {
			return joinSymbols(identifiers, nil)
		}
		e.logger.Debug("symbol_parse_fallback",
			slog.String("language", language),
			slog.String("error", err.Error()))
	}

	return joinSymbols(wordPattern.FindAllString(text, -1), reservedWords)
}

// joinSymbols de-duplicates words, drops short and excluded ones, and joins
// the rest with spaces.
func joinSymbols(words []string, exclude map[string]struct{}) string {
	seen := make(map[string]struct{}, len(words))
	var b strings.Builder

	for _, w := range words {
		if utf8.RuneCountInString(w) < minSymbolLength {
			continue
		}
		if _, ok := exclude[w]; ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}

		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}

	return b.String()
}
