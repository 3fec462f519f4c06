// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package facilities provides the nearby healthcare facility directory.
//
// The directory starts from a built-in sample catalog around New Delhi and
// can be replaced by a JSON file, optionally reloaded when the file changes.
//
// # Key Types
//
//   - Facility: A hospital, clinic or pharmacy with coordinates
//   - Directory: Concurrent-safe catalog with distance search
//   - Watcher: fsnotify hot reload of a catalog file
//
// # Usage
//
//	dir := facilities.NewDirectory(facilities.DefaultCatalog())
//	near := dir.Nearest(facilities.DefaultCenter, 3, facilities.TypeHospital)
package facilities
