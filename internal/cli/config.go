// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/promptcon/internal/auth"
	"github.com/jeranaias/promptcon/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Long:  "Print the effective configuration (file, environment and flags merged) as TOML. Secrets are masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := *a.cfg
			if shown.Auth.APIKey != "" {
				shown.Auth.APIKey = auth.Mask(shown.Auth.APIKey)
			}
			if shown.SSO.ClientSecret != "" {
				shown.SSO.ClientSecret = auth.Mask(shown.SSO.ClientSecret)
			}
			data, err := shown.Encode()
			if err != nil {
				return err
			}
			_, err = a.out.Write(data)
			return err
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default config file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigPathTOML()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.Save(config.Default()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render("Wrote "+path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Print the config directory and file paths",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path, err := config.ConfigPathTOML()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "dir:    %s\n", dir)
			fmt.Fprintf(a.out, "config: %s\n", path)
			return nil
		},
	})
	return cmd
}
