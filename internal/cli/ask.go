// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/promptcon/internal/stream"
	"github.com/jeranaias/promptcon/internal/ui/markdown"
)

func newAskCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send one prompt and print the reply",
		Long: `Send a single prompt to the active backend and print the reply.

On a terminal, markdown replies are rendered once complete. With --raw, or
when stdout is redirected, tokens are written as they arrive. Use "-" to read
the prompt from stdin.`,
		Example: `  promptcon ask "summarize the release notes"
  git diff | promptcon ask --backend charlie -
  promptcon ask --raw "list three colors" > colors.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read prompt from stdin: %w", err)
				}
				prompt = string(data)
			}
			prompt = strings.TrimSpace(prompt)
			if prompt == "" {
				return errors.New("prompt is empty")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runAsk(ctx, a, prompt, raw || !isTerminalWriter(a.out))
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "write tokens as they arrive without rendering")
	return cmd
}

// runAsk streams one reply. In raw mode tokens go straight to the output;
// otherwise the reply is buffered and rendered when the stream ends.
func runAsk(ctx context.Context, a *app, prompt string, raw bool) error {
	keys, err := a.keyStore()
	if err != nil {
		return err
	}
	ctl := a.controller(ctx, keys)
	backend := a.cfg.ActiveBackend()

	var (
		buf    strings.Builder
		failed error
	)
	res := ctl.Start(ctx, backend, prompt, stream.Callbacks{
		OnToken: func(tok string) {
			if raw {
				fmt.Fprint(a.out, tok)
				return
			}
			buf.WriteString(tok)
		},
		OnError: func(err error) { failed = err },
	})

	if raw {
		fmt.Fprintln(a.out)
	} else if buf.Len() > 0 {
		text := buf.String()
		if res.IsMarkdown {
			text = markdown.NewRenderer("").Render(text, GetTerminalWidth())
		}
		fmt.Fprintln(a.out, text)
	}

	if failed != nil {
		if errors.Is(failed, stream.ErrStopped) {
			fmt.Fprintln(a.errOut, mutedStyle.Render("[stopped]"))
			return nil
		}
		return failed
	}
	return nil
}
