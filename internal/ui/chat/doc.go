// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the full-screen Dr. Echo chat built on Bubble Tea.
//
// The model never keeps its own copy of the conversation. It subscribes to
// the conversation store and redraws from the store's snapshot whenever an
// event arrives, so replies sent from elsewhere (the HTTP API, another
// terminal) show up as they stream.
//
// # Screens
//
// While the assistant panel is closed the view shows a short landing page
// with a "Chat with Dr. Echo" button. Enter opens the panel; Esc closes it
// again. Both map to the store's Open and Close.
//
// # Keys
//
//	Enter      Send the message
//	Esc        Close the panel, or cancel the reply in progress
//	Ctrl+L     Clear the conversation
//	PgUp/PgDn  Scroll
//	?          Toggle help
//	Ctrl+C     Cancel the reply in progress, or quit
//
// # Usage
//
//	m := chat.New(store, chat.Options{Model: "gemini-1.5-pro", Markdown: true})
//	defer m.Close()
//	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
package chat
