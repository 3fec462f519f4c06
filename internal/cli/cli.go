// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command line parsing and usage text for drecho.
package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information, set at build time with -ldflags.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is a top-level drecho command.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdStatus
	CmdHistory
	CmdClear
	CmdServe
	CmdWellness
	CmdMeditate
	CmdFacilities
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

var commandNames = map[Command]string{
	CmdTUI:        "tui",
	CmdChat:       "chat",
	CmdAsk:        "ask",
	CmdStatus:     "status",
	CmdHistory:    "history",
	CmdClear:      "clear",
	CmdServe:      "serve",
	CmdWellness:   "wellness",
	CmdMeditate:   "meditate",
	CmdFacilities: "facilities",
	CmdConfig:     "config",
	CmdVersion:    "version",
	CmdHelp:       "help",
}

// String returns the command name as typed.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// NeedsServices reports whether the command talks to the conversation
// store or assistant, so main must open storage before running it.
func (c Command) NeedsServices() bool {
	switch c {
	case CmdConfig, CmdVersion, CmdHelp, CmdUnknown, CmdMeditate:
		return false
	default:
		return true
	}
}

// valueFlags lists every flag that takes a value, global or per command.
var valueFlags = []string{
	"config", "model", "m",
	"export", "o", "output",
	"addr", "type", "near", "limit", "n",
	"minutes", "mood", "anxiety", "sleep", "energy", "focus", "journal",
}

// Args holds the parsed command line.
type Args struct {
	// Global flags
	ConfigPath string
	Model      string
	Offline    bool
	Quiet      bool
	Verbose    bool
	JSON       bool
	NoMarkdown bool

	// Name is the command word as typed, kept for error messages.
	Name string

	// Parser holds the command's own flags and positionals.
	Parser *ArgParser
}

// Parse parses argv (without the program name). No command starts the TUI.
func Parse(argv []string) (Command, Args) {
	p := NewArgParser(argv, valueFlags...)
	args := Args{
		ConfigPath: p.Flag("config"),
		Model:      p.FlagOrDefault("model", p.Flag("m")),
		Offline:    p.BoolFlag("offline"),
		Quiet:      p.BoolFlag("quiet") || p.BoolFlag("q"),
		Verbose:    p.BoolFlag("verbose") || p.BoolFlag("v"),
		JSON:       p.BoolFlag("json"),
		NoMarkdown: p.BoolFlag("no-markdown") || p.BoolFlag("plain"),
	}

	if p.BoolFlag("help") || p.BoolFlag("h") {
		args.Parser = NewArgParser(nil)
		return CmdHelp, args
	}
	if p.BoolFlag("version") {
		args.Parser = NewArgParser(nil)
		return CmdVersion, args
	}

	// The command's parser sees everything after the command word.
	name := strings.ToLower(p.Subcommand())
	args.Name = name
	args.Parser = NewArgParser(dropFirstPositional(argv), valueFlags...)

	switch name {
	case "", "tui":
		return CmdTUI, args
	case "chat":
		return CmdChat, args
	case "ask":
		return CmdAsk, args
	case "status", "s":
		return CmdStatus, args
	case "history", "log":
		return CmdHistory, args
	case "clear", "reset":
		return CmdClear, args
	case "serve", "server":
		return CmdServe, args
	case "wellness", "checkin":
		return CmdWellness, args
	case "meditate":
		return CmdMeditate, args
	case "facilities", "nearby":
		return CmdFacilities, args
	case "config":
		return CmdConfig, args
	case "version":
		return CmdVersion, args
	case "help":
		return CmdHelp, args
	default:
		return CmdUnknown, args
	}
}

// dropFirstPositional removes the command word from argv, leaving flags in
// place wherever they were typed.
func dropFirstPositional(argv []string) []string {
	out := make([]string, 0, len(argv))
	dropped := false
	takesValue := make(map[string]bool, len(valueFlags))
	for _, f := range valueFlags {
		takesValue[f] = true
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if dropped {
			out = append(out, arg)
			continue
		}
		if arg == "--" {
			out = append(out, argv[i:]...)
			break
		}
		if strings.HasPrefix(arg, "-") && arg != "-" {
			out = append(out, arg)
			name := strings.TrimLeft(arg, "-")
			if !strings.Contains(name, "=") && takesValue[name] && i+1 < len(argv) {
				i++
				out = append(out, argv[i])
			}
			continue
		}
		dropped = true
	}
	return out
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `drecho - Dr. Echo, the EchoMed AI health assistant

Dr. Echo answers general health questions using Google Gemini, and keeps
working offline with built-in guidance when the service is unavailable.
It does not replace a medical professional.

Usage:
  drecho                          Start the full-screen chat (default)
  drecho chat                     Interactive chat in the terminal
  drecho ask "question"           Ask one question and print the reply
  drecho status                   Show assistant and storage status
  drecho history [--export FILE]  Show or export the conversation
  drecho clear                    Clear the conversation
  drecho serve [--addr ADDR]      Run the HTTP API
  drecho wellness score|consult   Mental wellness check-in
  drecho meditate [--minutes N]   Meditation timer
  drecho facilities [--type T] [--near LAT,LNG] [--limit N]
                                  Nearby hospitals, clinics and pharmacies
  drecho config show|get|set|init Configuration
  drecho version                  Version information

Wellness flags:
  --mood N --anxiety N --sleep N --energy N --focus N   1-10 each
  --journal TEXT                                       Optional journal entry

Global flags:
  --config PATH     Config file (default ~/.drecho/config.toml)
  --model NAME      Gemini model (default gemini-1.5-pro)
  --offline         Skip Gemini and use built-in replies
  --json            JSON output where supported
  --no-markdown     Print replies as plain text
  -q, --quiet       Less output
  -v, --verbose     Debug logging

Chat commands:
  /help  /history  /export FILE  /status  /clear  /quit

Environment:
  GEMINI_API_KEY, GOOGLE_GEMINI_API_KEY, DRECHO_GEMINI_API_KEY
  DRECHO_MODEL, DRECHO_STORAGE, DRECHO_DATA, DRECHO_PASSPHRASE, DRECHO_ADDR

Version: %s
`

// PrintUsage writes the help text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// VersionData is the --json form of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer, jsonMode bool) error {
	if jsonMode {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		}).Write(w)
	}
	fmt.Fprintf(w, "drecho version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
