// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for drecho.
//
// Command: config [subcommand]
//
// Subcommands:
//
//	show (default)      Display the current configuration, secrets masked
//	get <key>           Print one value
//	set <key> <value>   Change one value in the config file
//	keys                List every key
//	init [--force]      Write a config file with the defaults
//	reset               Same as init --force
//	path                Show the config file location
//
// Examples:
//
//	drecho config set assistant.model gemini-1.5-flash
//	drecho config set storage.driver sqlite
//	drecho config set ui.markdown false
//	drecho config get server.addr
//
// set edits the file alone: values that came from the environment or a
// .env file are not written back.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/echomed/drecho/internal/config"
)

const configUsage = "drecho config show|get KEY|set KEY VALUE|keys|init [--force]|reset|path"

// RunConfig dispatches the config subcommands.
func (a *App) RunConfig(ctx context.Context, args Args) error {
	p := args.Parser
	sub := strings.ToLower(p.Subcommand())

	switch sub {
	case "", "show":
		return a.configShow(args)
	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "drecho config get assistant.model")
		}
		return a.configGet(args, key)
	case "set":
		key, value := p.Positional(1), strings.Join(p.PositionalFrom(2), " ")
		if key == "" || p.PositionalCount() < 3 {
			return ErrMissingArgument("key and value", "drecho config set assistant.model gemini-1.5-flash")
		}
		return a.configSet(args, key, value)
	case "keys":
		return a.configKeys(args)
	case "init":
		return a.configInit(args, p.BoolFlag("force"))
	case "reset":
		return a.configInit(args, true)
	case "path":
		path, err := a.configPath()
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config", map[string]string{"path": path}).Write(a.Out)
		}
		fmt.Fprintln(a.Out, path)
		return nil
	default:
		return ErrUnknownSubcommand("config", sub, configUsage)
	}
}

// configPath returns --config when given, otherwise ~/.drecho/config.toml.
func (a *App) configPath() (string, error) {
	if a.ConfigPath != "" {
		return a.ConfigPath, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", NewCommandError("config", "path", "", err)
	}
	return path, nil
}

func (a *App) configShow(args Args) error {
	if args.JSON {
		return NewJSONResponse("config", a.Config.Redacted()).Write(a.Out)
	}
	path, _ := a.configPath()

	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, TitleStyle.Render("Dr. Echo Configuration"))
	fmt.Fprintln(a.Out, DimStyle.Render(path))
	fmt.Fprintln(a.Out, RenderSeparator(41))
	fmt.Fprint(a.Out, a.Config.String())
	fmt.Fprintln(a.Out)
	return nil
}

func (a *App) configGet(args Args, key string) error {
	v, err := a.Config.Redacted().Get(key)
	if err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(), "assistant.model (see drecho config keys)")
	}
	if args.JSON {
		return NewJSONResponse("config", map[string]interface{}{"key": key, "value": v}).Write(a.Out)
	}
	fmt.Fprintln(a.Out, v)
	return nil
}

func (a *App) configSet(args Args, key, value string) error {
	path, err := a.configPath()
	if err != nil {
		return err
	}

	// Start from the file alone so environment overrides stay out of it.
	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := loadConfigFile(cfg, path); err != nil {
			return NewCommandError("config", "set", "Fix or remove "+path, err)
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(), "assistant.model (see drecho config keys)")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveConfigFile(cfg, path); err != nil {
		return NewCommandError("config", "set", "", err)
	}

	// Keep the running config in step for the rest of this process.
	_ = a.Config.Set(key, value)

	if args.JSON {
		return NewJSONResponse("config", map[string]string{"key": key, "value": maskIfSecret(key, value), "path": path}).Write(a.Out)
	}
	if !args.Quiet {
		fmt.Fprintf(a.Out, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, maskIfSecret(key, value))
	}
	return nil
}

func (a *App) configKeys(args Args) error {
	keys := config.Keys()
	if args.JSON {
		return NewJSONResponse("config", keys).Write(a.Out)
	}
	for _, k := range keys {
		fmt.Fprintln(a.Out, k)
	}
	return nil
}

func (a *App) configInit(args Args, force bool) error {
	path, err := a.configPath()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil && !force {
		return NewCommandError("config", "init", "Use --force to overwrite it", fmt.Errorf("%s already exists", path))
	}
	if err := saveConfigFile(config.Default(), path); err != nil {
		return NewCommandError("config", "init", "", err)
	}
	if args.JSON {
		return NewJSONResponse("config", map[string]string{"path": path}).Write(a.Out)
	}
	if !args.Quiet {
		fmt.Fprintf(a.Out, "%s Wrote %s\n", SuccessStyle.Render("[OK]"), path)
	}
	return nil
}

func isJSONPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".json")
}

func loadConfigFile(cfg *config.Config, path string) error {
	if isJSONPath(path) {
		return config.LoadJSON(cfg, path)
	}
	return config.LoadTOML(cfg, path)
}

func saveConfigFile(cfg *config.Config, path string) error {
	if isJSONPath(path) {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

// maskIfSecret hides credential values in command output.
func maskIfSecret(key, value string) string {
	k := strings.ToLower(key)
	if value == "" || !(strings.Contains(k, "key") || strings.Contains(k, "passphrase")) {
		return value
	}
	if len(value) <= 8 {
		return "********"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
