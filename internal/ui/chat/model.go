// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/echomed/drecho/internal/conversation"
)

// maxInput bounds one typed message.
const maxInput = 4000

// Options configures the chat model.
type Options struct {
	// Model is the Gemini model name shown in the header.
	Model string

	// Offline shows the built-in guidance badge instead of the model.
	Offline bool

	// Markdown renders assistant replies with glamour.
	Markdown bool

	// WordWrap caps the reply width; 0 follows the window.
	WordWrap int
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	store *conversation.Store
	opts  Options

	events      <-chan conversation.Event
	unsubscribe func()

	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
	keys     KeyMap

	renderer  *glamour.TermRenderer
	cancelMgr *cancelManager

	sending   bool
	showHelp  bool
	statusMsg string
	lastError error
	quitting  bool
}

// New returns a chat model subscribed to store. Call Close when the
// program exits to drop the subscription.
func New(store *conversation.Store, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type your health question..."
	ti.CharLimit = maxInput
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
		FPS:    time.Second / 6,
	}

	events, unsubscribe := store.Subscribe()

	m := Model{
		store:       store,
		opts:        opts,
		events:      events,
		unsubscribe: unsubscribe,
		viewport:    vp,
		input:       ti,
		spinner:     sp,
		help:        help.New(),
		keys:        DefaultKeyMap(),
		cancelMgr:   newCancelManager(),
		width:       80,
		height:      24,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForEvent(m.events))
}

// Close cancels any reply in progress and drops the store subscription.
func (m Model) Close() {
	m.cancelMgr.cancel()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// IsOpen reports whether the chat panel is showing.
func (m Model) IsOpen() bool {
	return m.store.IsOpen()
}

// Sending reports whether a send is in progress from this screen.
func (m Model) Sending() bool {
	return m.sending
}

// Input returns the text typed so far.
func (m Model) Input() string {
	return m.input.Value()
}

// LastError returns the most recent error shown in the status line.
func (m Model) LastError() error {
	return m.lastError
}

// startSend clears the input and returns the command that sends text.
func (m *Model) startSend(text string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)
	m.sending = true
	m.lastError = nil
	m.statusMsg = ""
	m.input.Reset()
	return sendCmd(ctx, m.store, text)
}

// resize lays the components out for a width x height window.
func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.ready = true

	m.viewport.Width = width
	m.viewport.Height = max(height-headerHeight-inputHeight-footerHeight, 3)
	m.input.Width = max(width-6, 10)
	m.help.Width = width

	m.renderer = nil
	if m.opts.Markdown {
		m.renderer = newRenderer(m.contentWidth())
	}
	m.refresh()
}

// contentWidth is the width available to message text.
func (m Model) contentWidth() int {
	w := m.width - 4
	if m.opts.WordWrap > 0 && m.opts.WordWrap < w {
		w = m.opts.WordWrap
	}
	return max(w, 20)
}

// refresh redraws the transcript from the store and keeps the view pinned
// to the bottom when it already was.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.store.IsTyping() {
		m.viewport.GotoBottom()
	}
}

func newRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}
