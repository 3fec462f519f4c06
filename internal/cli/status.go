// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command.
//
// Command: status
// Aliases: s
//
// Examples:
//
//	drecho status          Assistant, conversation and storage status
//	drecho status --json   The same as JSON
//
// Sections:
//
//	Assistant     Online or offline mode, model, backend, last error
//	Conversation  Message count and last activity
//	Storage       Driver, data directory, encryption
package cli

import (
	"context"
	"fmt"
	"time"
)

// StatusData is the --json form of the status command.
type StatusData struct {
	Assistant    StatusAssistantInfo    `json:"assistant"`
	Conversation StatusConversationInfo `json:"conversation"`
	Storage      StatusStorageInfo      `json:"storage"`
	Facilities   int                    `json:"facilities"`
}

// StatusAssistantInfo describes the completion client.
type StatusAssistantInfo struct {
	Mode        string `json:"mode"`
	Model       string `json:"model"`
	Backend     string `json:"backend"`
	Initialized bool   `json:"initialized"`
	APIKey      bool   `json:"api_key_configured"`
	LastError   string `json:"last_error,omitempty"`
}

// StatusConversationInfo describes the saved conversation.
type StatusConversationInfo struct {
	Messages     int       `json:"messages"`
	LastActivity time.Time `json:"last_activity"`
}

// StatusStorageInfo describes the storage backend.
type StatusStorageInfo struct {
	Driver    string `json:"driver"`
	Path      string `json:"path,omitempty"`
	Encrypted bool   `json:"encrypted"`
}

// collectStatus gathers everything the status command shows.
func (a *App) collectStatus() StatusData {
	st := a.Assistant.Status()
	mode := "online"
	if st.FallbackActive {
		mode = "offline"
	}

	msgs := a.Store.Messages().Visible()
	var last time.Time
	if m, ok := msgs.Last(); ok {
		last = m.Timestamp
	}

	driver := a.StorageInfo.Driver
	if driver == "" {
		driver = a.Config.Storage.Driver
	}

	return StatusData{
		Assistant: StatusAssistantInfo{
			Mode:        mode,
			Model:       st.Model,
			Backend:     st.Backend,
			Initialized: st.Initialized,
			APIKey:      a.Config.Assistant.APIKey != "",
			LastError:   st.LastErrorString(),
		},
		Conversation: StatusConversationInfo{
			Messages:     len(msgs),
			LastActivity: last,
		},
		Storage: StatusStorageInfo{
			Driver:    driver,
			Path:      a.StorageInfo.Path,
			Encrypted: a.StorageInfo.Encrypt,
		},
		Facilities: a.Directory.Len(),
	}
}

// RunStatus prints assistant, conversation and storage status.
func (a *App) RunStatus(ctx context.Context, args Args) error {
	data := a.collectStatus()
	if args.JSON {
		return NewJSONResponse("status", data).Write(a.Out)
	}

	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, TitleStyle.Render("Dr. Echo Status"))
	fmt.Fprintln(a.Out, RenderSeparator(41))

	fmt.Fprintln(a.Out, SectionStyle.Render("Assistant"))
	a.printAssistantStatus(data.Assistant)

	fmt.Fprintln(a.Out, SectionStyle.Render("Conversation"))
	fmt.Fprintln(a.Out, RenderField("Messages:", fmt.Sprintf("%d", data.Conversation.Messages)))
	if !data.Conversation.LastActivity.IsZero() {
		ago := formatDuration(time.Since(data.Conversation.LastActivity))
		fmt.Fprintln(a.Out, RenderField("Last activity:", ago+" ago"))
	}

	fmt.Fprintln(a.Out, SectionStyle.Render("Storage"))
	fmt.Fprintln(a.Out, RenderField("Driver:", data.Storage.Driver))
	if data.Storage.Path != "" {
		fmt.Fprintln(a.Out, RenderField("Location:", data.Storage.Path))
	}
	fmt.Fprintln(a.Out, RenderField("Encrypted:", yesNo(data.Storage.Encrypted)))

	fmt.Fprintln(a.Out, SectionStyle.Render("Facilities"))
	fmt.Fprintln(a.Out, RenderField("Listed:", fmt.Sprintf("%d", data.Facilities)))
	fmt.Fprintln(a.Out)
	return nil
}

func (a *App) printAssistantStatus(info StatusAssistantInfo) {
	if info.Mode == "online" {
		fmt.Fprintln(a.Out, RenderField("Mode:", "online")+" "+RenderStatus("ok"))
	} else {
		fmt.Fprintln(a.Out, RenderField("Mode:", "offline, built-in guidance")+" "+RenderStatus("offline"))
	}
	fmt.Fprintln(a.Out, RenderField("Model:", info.Model))
	fmt.Fprintln(a.Out, RenderField("Backend:", info.Backend))
	if info.APIKey {
		fmt.Fprintln(a.Out, RenderField("API key:", "configured"))
	} else {
		fmt.Fprintln(a.Out, RenderField("API key:", "not set")+" "+DimStyle.Render("(set GEMINI_API_KEY)"))
	}
	if info.LastError != "" {
		fmt.Fprintln(a.Out, RenderField("Last error:", info.LastError))
	}
}

// printStatusSummary is the short status shown by /status in chat.
func (a *App) printStatusSummary() {
	fmt.Fprintln(a.Out)
	a.printAssistantStatus(a.collectStatus().Assistant)
	fmt.Fprintln(a.Out, RenderField("Messages:", fmt.Sprintf("%d", len(a.Store.Messages().Visible()))))
	fmt.Fprintln(a.Out)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
