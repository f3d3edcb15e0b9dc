package store

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// wordRegex matches letter/digit runs, keeping underscores for the
// snake_case split.
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// minTokenLength drops single-character fragments left by identifier splits.
const minTokenLength = 2

// DefaultStopWords are declaration keywords users tend to type into queries
// ("function parseConfig"). Symbol fields never contain them.
var DefaultStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
}

// TokenizeCode splits text with code-aware rules: words are broken on
// snake_case and camelCase boundaries, lowercased, and tokens shorter than
// two characters are dropped. The whole identifier is kept too, so
// "getUserById" matches both "getuserbyid" and "user".
func TokenizeCode(text string) []string {
	var tokens []string

	for _, word := range wordRegex.FindAllString(text, -1) {
		parts := SplitCodeToken(word)
		if len(parts) > 1 {
			tokens = appendToken(tokens, strings.Trim(word, "_"))
		}
		for _, part := range parts {
			tokens = appendToken(tokens, part)
		}
	}

	return tokens
}

func appendToken(tokens []string, t string) []string {
	if utf8.RuneCountInString(t) < minTokenLength {
		return tokens
	}
	return append(tokens, strings.ToLower(t))
}

// SplitCodeToken splits camelCase and snake_case identifiers.
func SplitCodeToken(token string) []string {
	if !strings.Contains(token, "_") {
		return SplitCamelCase(token)
	}

	var result []string
	for _, part := range strings.Split(token, "_") {
		if part != "" {
			result = append(result, SplitCamelCase(part)...)
		}
	}
	return result
}

// SplitCamelCase splits camelCase and PascalCase identifiers.
//   - "getUserById" -> ["get", "User", "By", "Id"]
//   - "HTTPHandler" -> ["HTTP", "Handler"]
//   - "parseHTTPRequest" -> ["parse", "HTTP", "Request"]
func SplitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

			// Split on a lower->upper edge, or before the last capital of an acronym.
			if (prevIsLower || nextIsLower) && current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

// uniqueTokens de-duplicates tokens, keeping first occurrences.
func uniqueTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	result := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		result = append(result, t)
	}
	return result
}
