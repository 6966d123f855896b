// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build information, set by main.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// skipConfig marks commands that run against defaults so they still work
// when the config file is broken.
const skipConfig = "skip-config"

// NewRootCmd builds the promptcon command tree.
func NewRootCmd() *cobra.Command {
	a := newApp()

	root := &cobra.Command{
		Use:   "promptcon",
		Short: "Streaming console for agent backends",
		Long: `promptcon is a terminal console for chatting with agent backends.

Replies stream in as they are generated. In demo mode canned replies are
synthesized locally; in live mode prompts are posted to each backend's
/chat endpoint and the event-stream or line-delimited response is rendered
as it arrives.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			a.errOut = cmd.ErrOrStderr()
			if cmd.Annotations[skipConfig] != "" {
				a.loadDefaults()
				return nil
			}
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context(), a)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.flags.configPath, "config", "", "config file (default ~/.promptcon/config.toml)")
	flags.StringVar(&a.flags.mode, "mode", "", "operating mode: demo or live")
	flags.StringVar(&a.flags.backend, "backend", "", "backend id to start with")
	flags.BoolVarP(&a.flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newChatCmd(a),
		newAskCmd(a),
		newBackendsCmd(a),
		newAuthCmd(a),
		newConfigCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		return 1
	}
	return 0
}
