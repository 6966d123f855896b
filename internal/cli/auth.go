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
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/promptcon/internal/auth"
	"github.com/jeranaias/promptcon/internal/model"
)

// loginTimeout bounds the token round-trip made by `auth login`.
const loginTimeout = 30 * time.Second

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage backend credentials",
		Long: `Manage the credentials attached to live requests.

Backends marked "api key" receive the stored key (or auth.api_key from the
config, or PROMPTCON_API_KEY) in the configured header. Backends marked "sso"
receive a bearer token from the [sso] identity provider.`,
	}
	cmd.AddCommand(
		newSetKeyCmd(a),
		&cobra.Command{
			Use:   "clear-key",
			Short: "Remove the stored API key",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				keys, err := a.keyStore()
				if err != nil {
					return err
				}
				if err := keys.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(a.out, successStyle.Render("API key removed from "+keys.Path()))
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show which credentials are available",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return authStatus(a)
			},
		},
		&cobra.Command{
			Use:   "login",
			Short: "Check that an SSO token can be obtained",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return authLogin(cmd.Context(), a)
			},
		},
	)
	return cmd
}

func newSetKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-key [key]",
		Short: "Store the API key",
		Long: `Store the API key used for "api key" backends.

Without an argument the key is read from the terminal without echo, or from
the first line of stdin when it is not a terminal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				k, err := readSecret(cmd.InOrStdin(), a.errOut, "API key: ")
				if err != nil {
					return err
				}
				key = k
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("API key is empty")
			}

			keys, err := a.keyStore()
			if err != nil {
				return err
			}
			if err := keys.Set(key); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s\n", successStyle.Render("API key saved to "+keys.Path()), mutedStyle.Render("("+auth.Mask(key)+")"))
			return nil
		},
	}
}

// readSecret reads a secret without echo from a terminal stdin, or one line
// from any other reader.
func readSecret(in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return line, nil
}

func authStatus(a *app) error {
	keys, err := a.keyStore()
	if err != nil {
		return err
	}

	row := func(label, value string) {
		fmt.Fprintf(a.out, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label)), value)
	}

	fmt.Fprintln(a.out, titleStyle.Render("Credentials"))
	switch key := keys.Key(); {
	case keys.HasStoredKey():
		row("api key", auth.Mask(key)+mutedStyle.Render(" (stored in "+keys.Path()+")"))
	case key != "":
		row("api key", auth.Mask(key)+mutedStyle.Render(" (from config or environment)"))
	default:
		row("api key", warningStyle.Render("not set"))
	}
	header := a.cfg.Auth.HeaderName
	if a.cfg.Auth.Prefix != "" {
		header += ": " + a.cfg.Auth.Prefix + " <key>"
	} else {
		header += ": <key>"
	}
	row("header", header)

	if auth.SSOConfigured(a.cfg.SSO) {
		row("sso", "configured"+mutedStyle.Render(" ("+a.cfg.SSO.Authority()+")"))
	} else {
		row("sso", mutedStyle.Render("not configured"))
	}

	var gated []string
	for _, b := range a.cfg.Backends {
		if kind := b.AuthKind(); kind != model.AuthNone {
			gated = append(gated, b.ID+" ("+kind.Label()+")")
		}
	}
	if len(gated) == 0 {
		row("backends", mutedStyle.Render("none require credentials"))
	} else {
		row("backends", strings.Join(gated, ", "))
	}
	return nil
}

func authLogin(ctx context.Context, a *app) error {
	if !auth.SSOConfigured(a.cfg.SSO) {
		return fmt.Errorf("%w: set [sso] client_id and client_secret in the config", auth.ErrNotAuthenticated)
	}
	keys, err := a.keyStore()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()
	tok, err := a.provider(ctx, keys).CheckSSO()
	if err != nil {
		return err
	}

	msg := "Signed in"
	if !tok.Expiry.IsZero() {
		msg += "; token expires " + tok.Expiry.Local().Format(time.RFC1123)
	}
	fmt.Fprintln(a.out, successStyle.Render(msg))
	return nil
}
