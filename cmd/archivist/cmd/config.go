package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/archivist/configs"
	"github.com/Aman-CERP/archivist/internal/config"
	aerrors "github.com/Aman-CERP/archivist/internal/errors"
)

// projectConfigName is the per-directory configuration file.
const projectConfigName = ".archivist.yaml"

func newConfigCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage archivist configuration",
		Long: `Configuration is loaded in order of increasing precedence:
  1. Built-in defaults
  2. User config (~/.config/archivist/config.yaml)
  3. Project config (.archivist.yaml in the current directory)
  4. Environment variables (ARCHIVIST_*)`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(g))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		user  bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented configuration template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if !user {
				dir, err := os.Getwd()
				if err != nil {
					return aerrors.InternalError("failed to get working directory", err)
				}
				path = filepath.Join(dir, projectConfigName)
			}

			if exists(path) && !force {
				return aerrors.New(aerrors.ErrCodeConfigInvalid, "config already exists at "+path, nil).
					WithSuggestion("Use --force to overwrite")
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return aerrors.ConfigError("failed to create config directory", err)
			}
			if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
				return aerrors.ConfigError("failed to write config", err)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return err
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of .archivist.yaml")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func newConfigShowCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := g.writer(cmd)
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if out.IsJSON() {
				return out.JSON(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return aerrors.InternalError("failed to marshal config", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := os.Getwd()
			if err != nil {
				dir = "."
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "user:    %s%s\n", config.GetUserConfigPath(), presence(config.GetUserConfigPath()))
			project := filepath.Join(dir, projectConfigName)
			_, err = fmt.Fprintf(w, "project: %s%s\n", project, presence(project))
			return err
		},
	}
}

func presence(path string) string {
	if exists(path) {
		return ""
	}
	return " (not found)"
}
