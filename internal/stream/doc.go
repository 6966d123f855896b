// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream turns agent replies into ordered text tokens.
//
// # Components
//
//   - Decoder: reassembles SSE records or newline-delimited frames from
//     arbitrarily split body chunks and extracts the text of each frame
//     (delta, then content, then text, else the raw payload)
//   - Synthesizer: plays canned demo replies with randomized network and
//     per-character pacing
//   - Controller: owns the single active session, dispatches to the demo or
//     live path and guarantees a superseded session delivers nothing after
//     its successor starts
//
// # Usage
//
//	ctl := stream.NewController(stream.WithLive(true), stream.WithAuth(provider))
//	res := ctl.Start(ctx, backend, "hello", stream.Callbacks{
//	    OnToken: func(tok string) { reply.AppendToken(tok) },
//	    OnError: func(err error) { reply.SetError(err) },
//	})
//	reply.FinalizeStream(res.IsMarkdown)
package stream
