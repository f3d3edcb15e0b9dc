package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/codesnip/configs"
	"github.com/Aman-CERP/codesnip/internal/config"
	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
	"github.com/Aman-CERP/codesnip/internal/output"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Create and inspect codesnip configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/codesnip/config.yaml)
  3. Project config (.codesnip.yaml)
  4. .env in the project directory
  5. Environment variables (CODESNIP_*)`,
		Example: `  # Create .codesnip.yaml in the project root
  codesnip config init

  # Create the user config instead
  codesnip config init --user

  # Show effective configuration
  codesnip config show --json`,
	}

	cmd.AddCommand(newConfigInitCmd(root))
	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigPathCmd(root))

	return cmd
}

func newConfigInitCmd(root *rootOptions) *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented configuration template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			path, template := config.GetUserConfigPath(), configs.UserConfigTemplate
			if !user {
				projectRoot, err := config.FindProjectRoot(root.dir)
				if err != nil {
					return err
				}
				path, template = filepath.Join(projectRoot, config.ProjectConfigFile), configs.ProjectConfigTemplate
			}

			if _, err := os.Stat(path); err == nil && !force {
				out.Warning("Configuration already exists")
				out.Statusf("→", "Location: %s", path)
				out.Status("", "Use --force to overwrite it with the template")
				return nil
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return cserrors.New(cserrors.ErrCodeFilePermission, "create config directory", err).WithDetail("path", path)
			}
			if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
				return cserrors.New(cserrors.ErrCodeFilePermission, "write config file", err).WithDetail("path", path)
			}

			out.Success("Created configuration")
			out.Statusf("→", "Location: %s", path)
			out.Status("", "Run 'codesnip config show' to verify")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")

	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := loadWorkspace(root.dir)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return cserrors.InternalError("marshal config", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectRoot, err := config.FindProjectRoot(root.dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\n", config.GetUserConfigPath())
			fmt.Fprintf(cmd.OutOrStdout(), "project: %s\n", filepath.Join(projectRoot, config.ProjectConfigFile))
			return nil
		},
	}
}
