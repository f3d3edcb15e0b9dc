package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codesnip/internal/document"
	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
	"github.com/Aman-CERP/codesnip/internal/mcp"
	"github.com/Aman-CERP/codesnip/internal/output"
	"github.com/Aman-CERP/codesnip/internal/search"
	"github.com/Aman-CERP/codesnip/internal/workspace"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit     int
	languages []string
	files     []string
	format    string // "text", "json"
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Index the workspace and search it once",
		Long: `Load the workspace into a fresh in-memory index and print the snippets
matching the query, best first.

The index holds at most chunking.max_chunks snippets; in larger workspaces
the files loaded first are evicted.`,
		Example: `  codesnip search handleRequest
  codesnip search "parse config" --language go --limit 5
  codesnip search Router --file internal/server/router.go
  codesnip search Router --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, root.dir, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: search.default_limit)")
	cmd.Flags().StringSliceVarP(&opts.languages, "language", "l", nil, "Only return snippets in these languages (repeatable)")
	cmd.Flags().StringSliceVar(&opts.files, "file", nil, "Only return snippets from these files (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, dir, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return cserrors.ValidationError(fmt.Sprintf("unknown format %q", opts.format), nil).
			WithSuggestion("Use --format text or --format json.")
	}

	root, cfg, err := loadWorkspace(dir)
	if err != nil {
		return err
	}
	a, err := newApp(root, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.indexWorkspace(ctx, nil); err != nil {
		return err
	}

	limit := opts.limit
	if limit <= 0 {
		limit = cfg.Search.DefaultLimit
	}
	results, err := a.searcher.Search(ctx, query, search.Options{
		FilepathsFilter: fileURIs(root, opts.files),
		LanguagesFilter: opts.languages,
		Limit:           limit,
	})
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.String("query", query), slog.Int("results", len(results)))

	if opts.format == "json" {
		snippets := make([]mcp.SnippetOutput, 0, len(results))
		for _, r := range results {
			snippets = append(snippets, mcp.ToSnippetOutput(r))
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snippets)
	}

	out := output.New(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Warningf("No results for %q", query)
		return nil
	}
	for i, r := range results {
		out.Snippet(i+1, location(root, r.URI, r.Range), r.Language, r.Score, r.Text)
	}
	return nil
}

// fileURIs converts workspace paths to document URIs.
func fileURIs(root string, files []string) []string {
	if len(files) == 0 {
		return nil
	}
	uris := make([]string, len(files))
	for i, f := range files {
		if !filepath.IsAbs(f) {
			f = filepath.Join(root, f)
		}
		uris[i] = workspace.URIFromPath(f)
	}
	return uris
}

// location renders a URI and range as path:first-last with 1-based lines.
func location(root, uri string, r document.Range) string {
	name := uri
	if path, err := workspace.PathFromURI(uri); err == nil {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			name = filepath.ToSlash(rel)
		}
	}
	last := r.End.Line
	if r.End.Character > 0 {
		last++
	}
	return fmt.Sprintf("%s:%d-%d", name, r.Start.Line+1, max(last, r.Start.Line+1))
}
