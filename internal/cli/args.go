// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits command arguments into flags and positionals.
//
// Supported forms:
//
//	--flag value   value flag (only for names listed as value flags)
//	--flag=value   value flag, any name
//	-f value       short value flag
//	--flag         boolean flag
//	--             everything after is positional
//
// Listing the value flags up front keeps "drecho ask --json is it flu"
// from swallowing "is" as the value of --json.
type ArgParser struct {
	subcommand string
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
	raw        []string
}

// NewArgParser parses raw. Names in valueFlags (without dashes) take the
// following argument as their value.
//
//	args := NewArgParser([]string{"score", "--mood", "7", "--json"}, "mood")
//	args.Subcommand()     // "score"
//	args.Flag("mood")     // "7"
//	args.BoolFlag("json") // true
func NewArgParser(raw []string, valueFlags ...string) *ArgParser {
	takesValue := make(map[string]bool, len(valueFlags))
	for _, name := range valueFlags {
		takesValue[strings.TrimLeft(name, "-")] = true
	}

	p := &ArgParser{
		flags:     make(map[string]string),
		boolFlags: make(map[string]bool),
		raw:       raw,
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		if arg == "--" {
			p.positional = append(p.positional, raw[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" || isNumber(arg) {
			p.positional = append(p.positional, arg)
			continue
		}

		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		switch {
		case hasValue && takesValue[name]:
			p.flags[name] = value
		case hasValue:
			if b, err := ParseBoolString(value); err == nil {
				p.boolFlags[name] = b
			} else {
				p.flags[name] = value
			}
		case takesValue[name] && i+1 < len(raw):
			p.flags[name] = raw[i+1]
			i++
		default:
			p.boolFlags[name] = true
		}
	}

	if len(p.positional) > 0 {
		p.subcommand = p.positional[0]
	}
	return p
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// Subcommand returns the first positional argument, or "".
func (p *ArgParser) Subcommand() string {
	return p.subcommand
}

// Flag returns the value of a value flag, or "".
func (p *ArgParser) Flag(name string) string {
	return p.flags[strings.TrimLeft(name, "-")]
}

// FlagOrDefault returns the flag value or def when it is unset.
func (p *ArgParser) FlagOrDefault(name, def string) string {
	if v := p.Flag(name); v != "" {
		return v
	}
	return def
}

// FlagInt parses the flag as an integer.
func (p *ArgParser) FlagInt(name string) (int, error) {
	v := p.Flag(name)
	if v == "" {
		return 0, fmt.Errorf("flag --%s not set", strings.TrimLeft(name, "-"))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, NewValidationErrorWithExample(strings.TrimLeft(name, "-"), v, "must be a whole number", "--"+strings.TrimLeft(name, "-")+" 5")
	}
	return n, nil
}

// FlagIntOrDefault returns the flag as an integer, or def when unset.
// A set but malformed value is an error.
func (p *ArgParser) FlagIntOrDefault(name string, def int) (int, error) {
	if !p.HasFlag(name) {
		return def, nil
	}
	return p.FlagInt(name)
}

// BoolFlag reports whether a boolean flag is set and true.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.boolFlags[strings.TrimLeft(name, "-")]
}

// HasFlag reports whether the flag appeared in either form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, s := p.flags[name]
	_, b := p.boolFlags[name]
	return s || b
}

// Positional returns the positional argument at index, or "". Index 0 is
// the subcommand.
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positional arguments from index on.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return nil
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// Raw returns the arguments as given.
func (p *ArgParser) Raw() []string {
	return p.raw
}

// JoinPositional joins the positional arguments from index into one string,
// the way multi-word questions are typed without quotes.
func (p *ArgParser) JoinPositional(index int) string {
	return strings.Join(p.PositionalFrom(index), " ")
}

// =============================================================================
// VALUE HELPERS
// =============================================================================

// ParseBoolString accepts true/false, yes/no, y/n, 1/0 and on/off.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}
