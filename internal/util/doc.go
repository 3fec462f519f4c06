// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across drecho.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync and rename
//   - ExpandHome: Resolve a leading ~ to the user's home directory
//
// Display Helpers:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateDisplay: Truncation by terminal column width
//   - PadDisplay: Right-pad to a column width
//   - OneLine: Collapse whitespace for single-line previews
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0600)
//	cell := util.PadDisplay(util.TruncateDisplay(name, 24), 24)
package util
