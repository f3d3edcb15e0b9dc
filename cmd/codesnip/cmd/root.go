// Package cmd provides the CLI commands for codesnip.
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codesnip/internal/config"
	"github.com/Aman-CERP/codesnip/internal/logging"
	"github.com/Aman-CERP/codesnip/pkg/version"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	dir      string
	logLevel string
	debug    bool

	loggingCleanup func()
}

// level returns the log level for CLI commands. Serve reads its level from
// the configuration instead.
func (o *rootOptions) level(fallback string) string {
	switch {
	case o.debug:
		return "debug"
	case o.logLevel != "":
		return o.logLevel
	default:
		return fallback
	}
}

// NewRootCmd creates the root command for the codesnip CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "codesnip",
		Short: "Bounded in-memory code snippet index with MCP search",
		Long: `codesnip chunks the files of a workspace into snippets, keeps a bounded
number of them in an in-memory full-text index and answers snippet queries.

Run 'codesnip serve' inside a project to expose the index to MCP clients
over stdio, or 'codesnip search <query>' for a one-off search.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cleanup, err := logging.SetupDefault(logging.DefaultConfig(opts.level("warn")))
			if err != nil {
				return err
			}
			opts.loggingCleanup = cleanup
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.loggingCleanup != nil {
				opts.loggingCleanup()
				opts.loggingCleanup = nil
			}
		},
	}

	cmd.SetVersionTemplate("codesnip version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.dir, "dir", "C", ".", "Workspace directory")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// loadWorkspace resolves the project root above dir and loads its
// configuration.
func loadWorkspace(dir string) (string, *config.Config, error) {
	root, err := config.FindProjectRoot(dir)
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}
	slog.Debug("workspace_resolved", slog.String("root", root), slog.String("backend", cfg.Search.Backend))
	return root, cfg, nil
}
