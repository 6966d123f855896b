// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/promptcon/internal/model"
	"github.com/jeranaias/promptcon/internal/util"
)

// maxConcurrentProbes bounds parallel probe requests.
const maxConcurrentProbes = 4

// probeResult is the outcome of one reachability check.
type probeResult struct {
	Latency time.Duration
	Status  int
	Err     error
}

// String formats the result for the PROBE column.
func (r probeResult) String() string {
	if r.Err != nil {
		return "unreachable"
	}
	return fmt.Sprintf("%dms (%d)", r.Latency.Milliseconds(), r.Status)
}

func newBackendsCmd(a *app) *cobra.Command {
	var (
		probe   bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:     "backends",
		Aliases: []string{"ls"},
		Short:   "List the backend catalog",
		Long: `List the configured backends. The active backend is marked with *.

With --probe each backend URL is requested once and the round-trip time is
shown. Probes run in parallel and are bounded by --timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []probeResult
			if probe {
				client := &http.Client{Timeout: timeout}
				results = probeBackends(cmd.Context(), client, a.cfg.Backends)
				for i, r := range results {
					if r.Err != nil {
						a.logger.Debug("probe failed", zap.String("backend", a.cfg.Backends[i].ID), zap.Error(r.Err))
					}
				}
			}
			writeBackendTable(a.out, a.cfg.Backends, a.cfg.ActiveBackend().ID, results)
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "measure round-trip time to each backend")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-backend probe timeout")
	return cmd
}

// probeBackends issues a HEAD request to every backend URL in parallel.
// Results are returned in catalog order.
func probeBackends(ctx context.Context, client *http.Client, backends []model.Backend) []probeResult {
	results := make([]probeResult, len(backends))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for i, b := range backends {
		g.Go(func() error {
			results[i] = probeOne(ctx, client, b)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func probeOne(ctx context.Context, client *http.Client, b model.Backend) probeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, b.URL, nil)
	if err != nil {
		return probeResult{Err: err}
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return probeResult{Err: err}
	}
	resp.Body.Close()
	return probeResult{Latency: time.Since(start), Status: resp.StatusCode}
}

// writeBackendTable prints the catalog. results, when non-nil, adds a PROBE
// column aligned with backends.
func writeBackendTable(w io.Writer, backends []model.Backend, activeID string, results []probeResult) {
	headers := []string{"ID", "NAME", "AUTH", "LATENCY", "CAPABILITIES"}
	if results != nil {
		headers = append(headers, "PROBE")
	}

	rows := make([][]string, 0, len(backends))
	for i, b := range backends {
		id := "  " + b.ID
		if b.ID == activeID {
			id = "* " + b.ID
		}
		row := []string{id, b.Name, b.AuthKind().Label(), b.LatencyString(), b.Capabilities()}
		if results != nil {
			row = append(row, results[i].String())
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = util.StringWidth(h)
	}
	widths[0] += 2
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], util.StringWidth(cell))
		}
	}

	fmt.Fprintln(w, labelStyle.Render(formatRow(headers, widths, true)))
	for i, row := range rows {
		line := formatRow(row, widths, false)
		if backends[i].ID == activeID {
			line = activeStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}

func formatRow(cells []string, widths []int, header bool) string {
	var sb strings.Builder
	for i, cell := range cells {
		if header && i == 0 {
			cell = "  " + cell
		}
		if i == len(cells)-1 {
			sb.WriteString(cell)
			break
		}
		sb.WriteString(util.PadRight(cell, widths[i]+2))
	}
	return strings.TrimRight(sb.String(), " ")
}
