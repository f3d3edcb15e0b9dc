package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codesnip/internal/index"
	"github.com/Aman-CERP/codesnip/internal/output"
)

// indexReport is the JSON output of the index command.
type indexReport struct {
	Root  string              `json:"root"`
	Run   *index.RunnerResult `json:"run"`
	Stats index.Stats         `json:"stats"`
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the workspace and report what fits",
		Long: `Load and index the workspace once, then print how many documents and
snippets the bounded index holds. Useful to check exclude patterns and
chunking settings before running 'codesnip serve'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, root.dir, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, dir string, jsonOutput bool) error {
	root, cfg, err := loadWorkspace(dir)
	if err != nil {
		return err
	}
	a, err := newApp(root, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	out := output.New(cmd.OutOrStdout())
	var progress index.ProgressFunc
	if !jsonOutput && output.IsTTY(cmd.OutOrStdout()) {
		progress = func(done, total int) { out.Progress(done, total, "Indexing") }
	}

	result, err := a.indexWorkspace(ctx, progress)
	if err != nil {
		return err
	}
	stats, err := a.manager.Stats(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(indexReport{Root: root, Run: result, Stats: stats})
	}

	out.Successf("Indexed %d documents in %s", result.Documents, result.Duration.Round(time.Millisecond))
	if result.Failed > 0 {
		out.Warningf("%d documents failed to index, see the log", result.Failed)
	}
	out.KeyValue("Root", root)
	out.KeyValue("Backend", cfg.Search.Backend)
	out.KeyValue("Documents", stats.Documents)
	out.KeyValue("Chunks", stats.Chunks)
	out.KeyValue("Capacity", stats.MaxChunks)
	if stats.Documents < result.Documents {
		out.Warningf("%d documents were evicted to stay within capacity", result.Documents-stats.Documents)
	}
	return nil
}
