// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package wellness

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/echomed/drecho/internal/model"
)

// =============================================================================
// METRICS
// =============================================================================

// Metric names one self-assessed dimension.
type Metric string

const (
	Mood    Metric = "mood"
	Anxiety Metric = "anxiety"
	Sleep   Metric = "sleep"
	Energy  Metric = "energy"
	Focus   Metric = "focus"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{Mood, Anxiety, Sleep, Energy, Focus}

const (
	MinValue = 1
	MaxValue = 10
)

// labels are defined for odd values only; the scale shows them as anchors.
var labels = map[Metric]map[int]string{
	Mood:    {1: "Very Low", 3: "Low", 5: "Neutral", 7: "Good", 9: "Excellent"},
	Anxiety: {1: "None", 3: "Mild", 5: "Moderate", 7: "High", 9: "Severe"},
	Sleep:   {1: "Poor", 3: "Fair", 5: "Average", 7: "Good", 9: "Excellent"},
	Energy:  {1: "Exhausted", 3: "Tired", 5: "Neutral", 7: "Energetic", 9: "Very Energetic"},
	Focus:   {1: "Distracted", 3: "Somewhat Focused", 5: "Moderately Focused", 7: "Focused", 9: "Highly Focused"},
}

// weights are percentages summing to 100. Anxiety is inverted before weighting.
var weights = map[Metric]int{
	Mood:    25,
	Anxiety: 25,
	Sleep:   20,
	Energy:  15,
	Focus:   15,
}

var titleCaser = cases.Title(language.English)

// Title returns the display heading, e.g. "Sleep Quality".
func (m Metric) Title() string {
	switch m {
	case Sleep:
		return "Sleep Quality"
	case Anxiety, Energy, Focus:
		return titleCaser.String(string(m)) + " Level"
	default:
		return titleCaser.String(string(m))
	}
}

// ParseMetric accepts a metric name in any case.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := weights[m]; !ok {
		return "", fmt.Errorf("unknown metric %q", s)
	}
	return m, nil
}

// Label returns the anchor label for value, or "N/A" when value has none.
func Label(m Metric, value int) string {
	if l, ok := labels[m][value]; ok {
		return l
	}
	return "N/A"
}

// =============================================================================
// ASSESSMENT
// =============================================================================

// Assessment is one check-in. Every metric runs from 1 to 10.
type Assessment struct {
	Mood    int    `json:"mood"`
	Anxiety int    `json:"anxiety"`
	Sleep   int    `json:"sleep"`
	Energy  int    `json:"energy"`
	Focus   int    `json:"focus"`
	Journal string `json:"journal,omitempty"`
}

// DefaultAssessment returns the starting values of the check-in form.
func DefaultAssessment() Assessment {
	return Assessment{Mood: 7, Anxiety: 3, Sleep: 8, Energy: 6, Focus: 7}
}

// Value returns the score for m.
func (a Assessment) Value(m Metric) int {
	switch m {
	case Mood:
		return a.Mood
	case Anxiety:
		return a.Anxiety
	case Sleep:
		return a.Sleep
	case Energy:
		return a.Energy
	case Focus:
		return a.Focus
	}
	return 0
}

// Set assigns the score for m.
func (a *Assessment) Set(m Metric, v int) {
	switch m {
	case Mood:
		a.Mood = v
	case Anxiety:
		a.Anxiety = v
	case Sleep:
		a.Sleep = v
	case Energy:
		a.Energy = v
	case Focus:
		a.Focus = v
	}
}

// Validate reports the first metric outside 1..10.
func (a Assessment) Validate() error {
	for _, m := range Metrics {
		if v := a.Value(m); v < MinValue || v > MaxValue {
			return fmt.Errorf("%s must be between %d and %d, got %d", m, MinValue, MaxValue, v)
		}
	}
	return nil
}

// Score returns the overall wellness score from 0 to 100, rounded half up.
// The weighted sum is kept in integer tenths so halves round exactly.
func (a Assessment) Score() int {
	tenths := 0
	for _, m := range Metrics {
		v := a.Value(m)
		if m == Anxiety {
			v = 10 - v
		}
		tenths += v * weights[m]
	}
	return (tenths + 5) / 10
}

// ScoreBand describes a score in a few words.
func ScoreBand(score int) string {
	switch {
	case score >= 80:
		return "Thriving"
	case score >= 60:
		return "Doing well"
	case score >= 40:
		return "Getting by"
	default:
		return "Struggling"
	}
}

// ConsultPrompt renders the assessment as a request for advice.
func (a Assessment) ConsultPrompt() string {
	var b strings.Builder
	b.WriteString("I'd like some mental wellness advice based on my current state:\n\n")
	for _, m := range Metrics {
		v := a.Value(m)
		fmt.Fprintf(&b, "%s: %d/10 (%s)\n", m.Title(), v, Label(m, v))
	}

	journal := strings.TrimSpace(a.Journal)
	if journal == "" {
		journal = "No journal entry provided"
	}
	fmt.Fprintf(&b, "\nJournal Entry: %s\n\n", journal)
	b.WriteString("Based on this information, could you provide some personalized mental wellness recommendations?")
	return b.String()
}

// =============================================================================
// CONSULT
// =============================================================================

// Conversation is the part of conversation.Store a consult needs.
type Conversation interface {
	Open()
	Ask(ctx context.Context, text string) (model.Message, error)
}

// Consult opens the assistant, sends the assessment as a message and
// returns the assistant's reply to it.
func Consult(ctx context.Context, conv Conversation, a Assessment) (model.Message, error) {
	if err := a.Validate(); err != nil {
		return model.Message{}, err
	}
	conv.Open()
	reply, err := conv.Ask(ctx, a.ConsultPrompt())
	if err != nil {
		return model.Message{}, fmt.Errorf("consult: %w", err)
	}
	return reply, nil
}
