package chunk

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageConfig describes a language id known to the registry.
type LanguageConfig struct {
	// Name is the editor language id (go, python, typescriptreact...).
	Name string

	Extensions []string

	// IdentifierTypes are the tree-sitter leaf node types that carry
	// user-defined names. Keywords are anonymous nodes and never match.
	// Empty for languages without a grammar.
	IdentifierTypes []string
}

// LanguageRegistry maps file extensions to language ids and language ids to
// tree-sitter grammars.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig // keyed by language id
	extToLang   map[string]string          // extension -> language id
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry creates a registry with the default languages.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.registerGo()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()
	r.registerPlainLanguages()

	return r
}

// GetByExtension returns the language for a file extension.
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	config, ok := r.configs[name]
	return config, ok
}

// DetectLanguage returns the language id for a path, or "plaintext".
func (r *LanguageRegistry) DetectLanguage(path string) string {
	if config, ok := r.GetByExtension(filepath.Ext(path)); ok {
		return config.Name
	}
	return "plaintext"
}

// GetByName returns the language for a language id.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, ok := r.configs[name]
	return config, ok
}

// GetTreeSitterLanguage returns the grammar for a language id.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions returns all registered extensions, sorted.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// registerLanguage adds a language. tsLang may be nil.
func (r *LanguageRegistry) registerLanguage(config *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[config.Name] = config
	if tsLang != nil {
		r.tsLanguages[config.Name] = tsLang
	}
	for _, ext := range config.Extensions {
		r.extToLang[ext] = config.Name
	}
}

func (r *LanguageRegistry) registerGo() {
	config := &LanguageConfig{
		Name:       "go",
		Extensions: []string{".go"},
		IdentifierTypes: []string{
			"identifier",
			"field_identifier",
			"type_identifier",
			"package_identifier",
		},
	}
	r.registerLanguage(config, golang.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	identifiers := []string{
		"identifier",
		"property_identifier",
		"shorthand_property_identifier",
		"type_identifier",
	}

	r.registerLanguage(&LanguageConfig{
		Name:            "typescript",
		Extensions:      []string{".ts", ".mts", ".cts"},
		IdentifierTypes: identifiers,
	}, typescript.GetLanguage())

	r.registerLanguage(&LanguageConfig{
		Name:            "typescriptreact",
		Extensions:      []string{".tsx"},
		IdentifierTypes: identifiers,
	}, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	identifiers := []string{
		"identifier",
		"property_identifier",
		"shorthand_property_identifier",
	}

	r.registerLanguage(&LanguageConfig{
		Name:            "javascript",
		Extensions:      []string{".js", ".mjs", ".cjs"},
		IdentifierTypes: identifiers,
	}, javascript.GetLanguage())

	// JSX uses the same grammar
	r.registerLanguage(&LanguageConfig{
		Name:            "javascriptreact",
		Extensions:      []string{".jsx"},
		IdentifierTypes: identifiers,
	}, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	r.registerLanguage(&LanguageConfig{
		Name:            "python",
		Extensions:      []string{".py", ".pyi"},
		IdentifierTypes: []string{"identifier"},
	}, python.GetLanguage())
}

// registerPlainLanguages registers languages that are detected by extension
// but extracted with the tokenizer fallback.
func (r *LanguageRegistry) registerPlainLanguages() {
	plain := map[string][]string{
		"rust":     {".rs"},
		"java":     {".java"},
		"kotlin":   {".kt", ".kts"},
		"c":        {".c", ".h"},
		"cpp":      {".cc", ".cpp", ".cxx", ".hpp"},
		"csharp":   {".cs"},
		"ruby":     {".rb"},
		"php":      {".php"},
		"swift":    {".swift"},
		"scala":    {".scala"},
		"lua":      {".lua"},
		"shell":    {".sh", ".bash"},
		"markdown": {".md"},
	}
	for name, exts := range plain {
		r.registerLanguage(&LanguageConfig{Name: name, Extensions: exts}, nil)
	}
}

// defaultRegistry is the global language registry
var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the global language registry
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
