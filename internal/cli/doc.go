// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the drecho commands.
//
// main parses the command line with Parse, builds an App holding the
// conversation store, assistant client and facility directory, and calls
// App.Run. Commands return errors; main shows them with DisplayError and
// exits with GetExitCode.
//
// # Commands
//
//	(none), tui    Full-screen chat
//	chat           Line-based chat with history and slash commands
//	ask            One question, one reply
//	status         Assistant, conversation and storage status
//	history        Show or export the conversation
//	clear          Start over with the greeting
//	serve          HTTP API
//	wellness       Wellness score and consultation
//	meditate       Meditation timer
//	facilities     Nearby hospitals, clinics and pharmacies
//	config         Show and edit configuration
//
// Most commands accept --json and write a JSONResponse envelope.
package cli
