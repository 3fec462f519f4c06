// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/echomed/drecho/internal/model"
)

// replyPrinter writes a streaming reply to the terminal. Tokens carry the
// cumulative text, so only the new suffix is printed; when the text no
// longer extends what is on screen (a fallback restarting after an error)
// printing restarts on a fresh line.
type replyPrinter struct {
	w      io.Writer
	stream bool

	mu      sync.Mutex
	printed string
	final   string
	done    bool
}

func newReplyPrinter(w io.Writer, stream bool) *replyPrinter {
	return &replyPrinter{w: w, stream: stream}
}

func (p *replyPrinter) OnStart() {}

func (p *replyPrinter) OnToken(partial string) {
	if !p.stream {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeExtending(partial)
}

func (p *replyPrinter) OnComplete(final string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.final = final
	p.done = true
	if p.stream {
		p.writeExtending(final)
		fmt.Fprintln(p.w)
	}
}

func (p *replyPrinter) OnError(err error) {
	if !p.stream {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed != "" {
		fmt.Fprintln(p.w)
	}
	fmt.Fprintln(p.w, DimStyle.Render("(connection problem, answering offline)"))
	p.printed = ""
}

// writeExtending prints the part of text not yet on screen. Callers hold mu.
func (p *replyPrinter) writeExtending(text string) {
	if strings.HasPrefix(text, p.printed) {
		io.WriteString(p.w, text[len(p.printed):])
	} else {
		fmt.Fprintf(p.w, "\n%s", text)
	}
	p.printed = text
}

// Final returns the completed reply, or "" before completion.
func (p *replyPrinter) Final() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.final
}

// converse sends text through the store and prints the reply. Plain
// output streams word by word; markdown output is rendered once complete.
func (a *App) converse(ctx context.Context, args Args, text string, speaker bool) (string, error) {
	streaming := !a.markdownEnabled(args) && !args.JSON
	p := newReplyPrinter(a.Out, streaming)

	if speaker && !args.JSON {
		fmt.Fprintf(a.Out, "%s: ", RenderSpeaker(model.RoleAssistant))
		if !streaming {
			fmt.Fprintln(a.Out, DimStyle.Render("typing..."))
		}
	}

	if err := a.Store.SendStreaming(ctx, text, p); err != nil {
		if streaming && speaker {
			fmt.Fprintln(a.Out)
		}
		return "", err
	}

	reply := p.Final()
	if !streaming && !args.JSON {
		fmt.Fprint(a.Out, a.render(args, reply))
	}
	return reply, nil
}
