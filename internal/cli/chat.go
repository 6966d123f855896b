// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/promptcon/internal/model"
	"github.com/jeranaias/promptcon/internal/storage"
	"github.com/jeranaias/promptcon/internal/stream"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Line-mode chat with input history",
		Long: `Chat with a backend one line at a time.

Up and down recall earlier prompts, shared with the console. Ctrl+C while a
reply is streaming stops it; Ctrl+C or Ctrl+D at the prompt exits.

Commands:
  /backend <id>   switch backend
  /backends       list backends
  /help           show this help
  /quit           exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), a, cmd.InOrStdin())
		},
	}
}

// lineReader reads prompts. The liner implementation is used on a terminal;
// anything else (pipes, tests) is read line by line.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

type linerReader struct {
	state *liner.State
}

func newLinerReader(history []string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	for _, h := range history {
		state.AppendHistory(h)
	}
	return &linerReader{state: state}
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	return line, err
}

func (r *linerReader) AppendHistory(item string) { r.state.AppendHistory(item) }
func (r *linerReader) Close() error             { return r.state.Close() }

type plainReader struct {
	in  *bufio.Scanner
	out io.Writer
}

func (r *plainReader) Prompt(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.in.Scan() {
		if err := r.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.in.Text(), nil
}

func (r *plainReader) AppendHistory(string) {}
func (r *plainReader) Close() error         { return nil }

// chatSession is one line-mode conversation.
type chatSession struct {
	a       *app
	ctl     *stream.Controller
	store   *storage.Store
	backend model.Backend
	reader  lineReader
}

func runChat(ctx context.Context, a *app, in io.Reader) error {
	keys, err := a.keyStore()
	if err != nil {
		return err
	}
	s := &chatSession{
		a:       a,
		ctl:     a.controller(ctx, keys),
		backend: a.cfg.ActiveBackend(),
	}

	store, err := a.openStore()
	if err != nil {
		a.logger.Warn("input history unavailable", zap.Error(err))
	} else {
		s.store = store
		defer store.Close()
	}

	if f, ok := in.(*os.File); ok && f == os.Stdin && IsTTY() {
		var history []string
		if s.store != nil {
			if history, err = s.store.Recent(ctx, a.cfg.Storage.HistoryLimit); err != nil {
				a.logger.Warn("failed to read input history", zap.Error(err))
			}
		}
		s.reader = newLinerReader(history)
	} else {
		s.reader = &plainReader{in: bufio.NewScanner(in), out: a.out}
	}
	defer s.reader.Close()

	// SIGINT outside the prompt stops the reply in flight.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-sigs:
				if s.ctl.Active() {
					a.logger.Debug("reply interrupted")
					s.ctl.Cancel()
				}
			case <-done:
				return
			}
		}
	}()

	fmt.Fprintf(a.out, "%s %s\n", titleStyle.Render("promptcon"), mutedStyle.Render("("+a.cfg.Mode+" mode, /help for commands)"))
	for {
		line, err := s.reader.Prompt(s.backend.ID + "> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out)
				return nil
			}
			return err
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "/") {
			if quit := s.command(text); quit {
				return nil
			}
			continue
		}
		if err := s.send(ctx, text); err != nil {
			return err
		}
	}
}

// send streams one reply to stdout. Errors from the stream are printed and
// the session continues; only a cancelled parent context ends it.
func (s *chatSession) send(ctx context.Context, text string) error {
	s.reader.AppendHistory(text)

	var failed error
	s.ctl.Start(ctx, s.backend, text, stream.Callbacks{
		OnToken: func(tok string) { fmt.Fprint(s.a.out, tok) },
		OnError: func(err error) { failed = err },
	})
	fmt.Fprintln(s.a.out)

	if s.store != nil {
		if err := s.store.Append(context.WithoutCancel(ctx), text, s.backend.ID); err != nil {
			s.a.logger.Warn("failed to persist prompt", zap.Error(err))
		}
	}

	switch {
	case failed == nil:
	case errors.Is(failed, stream.ErrStopped):
		fmt.Fprintln(s.a.out, mutedStyle.Render("[stopped]"))
	default:
		fmt.Fprintln(s.a.errOut, errorStyle.Render("Error: "+failed.Error()))
	}
	return ctx.Err()
}

// command runs a slash command and reports whether the session should end.
func (s *chatSession) command(text string) bool {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true
	case "/help", "/?":
		fmt.Fprintln(s.a.out, "/backend <id>  switch backend")
		fmt.Fprintln(s.a.out, "/backends      list backends")
		fmt.Fprintln(s.a.out, "/quit          exit")
	case "/backends":
		writeBackendTable(s.a.out, s.a.cfg.Backends, s.backend.ID, nil)
	case "/backend":
		if len(fields) < 2 {
			fmt.Fprintf(s.a.out, "backend: %s (%s)\n", s.backend.ID, s.backend.Name)
			return false
		}
		b, ok := model.FindBackend(s.a.cfg.Backends, fields[1])
		if !ok {
			fmt.Fprintln(s.a.errOut, errorStyle.Render(fmt.Sprintf("unknown backend %q", fields[1])))
			return false
		}
		s.backend = b
		fmt.Fprintln(s.a.out, successStyle.Render("backend: "+b.Name))
	default:
		fmt.Fprintln(s.a.errOut, warningStyle.Render(fmt.Sprintf("unknown command %s (try /help)", fields[0])))
	}
	return false
}
