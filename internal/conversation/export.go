// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/echomed/drecho/internal/model"
)

// ExportMarkdown renders the visible transcript as a Markdown document.
func (s *Store) ExportMarkdown() string {
	return RenderMarkdown(s.Messages(), time.Now())
}

// RenderMarkdown renders t without its system message. now stamps the header.
func RenderMarkdown(t model.Transcript, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Conversation with Dr. Echo\n\n")
	fmt.Fprintf(&b, "_Exported %s. Dr. Echo is not a replacement for professional medical care._\n\n", now.Format("2006-01-02 15:04"))

	for _, m := range t.Visible() {
		fmt.Fprintf(&b, "### %s · %s\n\n", m.Role.DisplayName(), m.Timestamp.Local().Format("Jan 2 15:04"))
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n\n")
	}
	return b.String()
}
