// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the promptcon command line.
//
// Running promptcon with no subcommand opens the full-screen console.
// The subcommands cover scripting and setup:
//
//	promptcon                 open the console
//	promptcon chat            line-mode chat with persistent input history
//	promptcon ask <prompt>    one-shot prompt; reply printed to stdout
//	promptcon backends        list the backend catalog (--probe measures latency)
//	promptcon auth ...        manage the API key and check sign-in
//	promptcon config ...      show, initialize or locate the config file
//	promptcon history         list saved prompts ("history clear" forgets them)
//
// Global flags:
//
//	--config <path>   load this config file instead of ~/.promptcon/config.*
//	--mode <mode>     demo or live
//	--backend <id>    start with this backend selected
//	--verbose         debug logging
package cli
