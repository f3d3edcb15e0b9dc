package chunk

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps tree-sitter to pull identifier leaves out of source text.
// A Parser is not safe for concurrent use.
type Parser struct {
	parser   *sitter.Parser
	registry *LanguageRegistry
}

// NewParser creates a new parser with the default language registry
func NewParser() *Parser {
	return NewParserWithRegistry(DefaultRegistry())
}

// NewParserWithRegistry creates a new parser with a custom language registry
func NewParserWithRegistry(registry *LanguageRegistry) *Parser {
	return &Parser{
		parser:   sitter.NewParser(),
		registry: registry,
	}
}

// Identifiers parses source and returns the text of every identifier leaf,
// in document order. Duplicates are kept.
func (p *Parser) Identifiers(ctx context.Context, source []byte, language string) ([]string, error) {
	tsLang, ok := p.registry.GetTreeSitterLanguage(language)
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}
	config, _ := p.registry.GetByName(language)

	identifierTypes := make(map[string]struct{}, len(config.IdentifierTypes))
	for _, t := range config.IdentifierTypes {
		identifierTypes[t] = struct{}{}
	}

	// smacker bindings don't return an error from SetLanguage
	p.parser.SetLanguage(tsLang)

	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("failed to parse source: nil tree")
	}
	defer tree.Close()

	var identifiers []string
	stack := []*sitter.Node{tree.RootNode()}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}

		count := int(node.ChildCount())
		if count == 0 {
			if _, ok := identifierTypes[node.Type()]; ok {
				identifiers = append(identifiers, node.Content(source))
			}
			continue
		}

		// Push in reverse so children pop in document order.
		for i := count - 1; i >= 0; i-- {
			stack = append(stack, node.Child(i))
		}
	}

	return identifiers, nil
}

// Close releases parser resources
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}
