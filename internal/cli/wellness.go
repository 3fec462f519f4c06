// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// wellness.go - Mental wellness check-in and meditation timer.
//
// Commands:
//
//	wellness score   [--mood N --anxiety N --sleep N --energy N --focus N]
//	wellness consult [same flags] [--journal TEXT]
//	meditate         [--minutes N]
//
// Examples:
//
//	drecho wellness score --mood 4 --anxiety 8
//	drecho wellness consult --sleep 3 --journal "Up all night before exams"
//	drecho meditate --minutes 10
//
// Unset metrics keep the check-in form's starting values.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/echomed/drecho/internal/model"
	"github.com/echomed/drecho/internal/wellness"
)

const wellnessUsage = "drecho wellness score|consult [--mood N] [--anxiety N] [--sleep N] [--energy N] [--focus N] [--journal TEXT]"

// WellnessData is the --json form of the wellness commands.
type WellnessData struct {
	Assessment wellness.Assessment `json:"assessment"`
	Score      int                 `json:"score"`
	Band       string              `json:"band"`
	Labels     map[string]string   `json:"labels"`
	Reply      string              `json:"reply,omitempty"`
}

// RunWellness handles "wellness score" and "wellness consult".
func (a *App) RunWellness(ctx context.Context, args Args) error {
	sub := strings.ToLower(args.Parser.Subcommand())
	switch sub {
	case "", "score":
		return a.runWellnessScore(args)
	case "consult", "advice":
		return a.runWellnessConsult(ctx, args)
	default:
		return ErrUnknownSubcommand("wellness", sub, wellnessUsage)
	}
}

// assessmentFromFlags builds an assessment from the metric flags.
func assessmentFromFlags(p *ArgParser) (wellness.Assessment, error) {
	as := wellness.DefaultAssessment()
	for _, m := range wellness.Metrics {
		v, err := p.FlagIntOrDefault(string(m), as.Value(m))
		if err != nil {
			return as, err
		}
		if v < wellness.MinValue || v > wellness.MaxValue {
			return as, NewValidationErrorWithExample(string(m), fmt.Sprint(v),
				fmt.Sprintf("must be between %d and %d", wellness.MinValue, wellness.MaxValue),
				"--"+string(m)+" 6")
		}
		as.Set(m, v)
	}
	as.Journal = p.Flag("journal")
	return as, nil
}

func wellnessData(as wellness.Assessment) WellnessData {
	labels := make(map[string]string, len(wellness.Metrics))
	for _, m := range wellness.Metrics {
		labels[string(m)] = wellness.Label(m, as.Value(m))
	}
	score := as.Score()
	return WellnessData{
		Assessment: as,
		Score:      score,
		Band:       wellness.ScoreBand(score),
		Labels:     labels,
	}
}

func (a *App) runWellnessScore(args Args) error {
	as, err := assessmentFromFlags(args.Parser)
	if err != nil {
		return err
	}
	data := wellnessData(as)
	if args.JSON {
		return NewJSONResponse("wellness", data).Write(a.Out)
	}
	a.printAssessment(data)
	return nil
}

func (a *App) runWellnessConsult(ctx context.Context, args Args) error {
	as, err := assessmentFromFlags(args.Parser)
	if err != nil {
		return err
	}
	reply, err := wellness.Consult(ctx, a.Store, as)
	if err != nil {
		return NewCommandError("wellness", "consult", "", err)
	}

	data := wellnessData(as)
	data.Reply = reply.Content
	if args.JSON {
		return NewJSONResponse("wellness", data).Write(a.Out)
	}

	if !args.Quiet {
		a.printAssessment(data)
	}
	fmt.Fprintf(a.Out, "%s\n%s\n\n", RenderSpeaker(model.RoleAssistant), a.render(args, data.Reply))
	return nil
}

func (a *App) printAssessment(data WellnessData) {
	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, TitleStyle.Render("Mental Wellness Check-in"))
	fmt.Fprintln(a.Out, RenderSeparator(36))
	for _, m := range wellness.Metrics {
		v := data.Assessment.Value(m)
		fmt.Fprintln(a.Out, RenderField(m.Title()+":", fmt.Sprintf("%2d/10  %s", v, DimStyle.Render(data.Labels[string(m)]))))
	}
	if data.Assessment.Journal != "" {
		fmt.Fprintln(a.Out, RenderField("Journal:", data.Assessment.Journal))
	}
	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, RenderField("Wellness score:", fmt.Sprintf("%d/100", data.Score))+" "+scoreStyle(data.Score).Render(data.Band))
	fmt.Fprintln(a.Out)
}

func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 60:
		return SuccessStyle
	case score >= 40:
		return WarningStyle
	default:
		return ErrorStyle
	}
}

// =============================================================================
// MEDITATION
// =============================================================================

// RunMeditate counts down a meditation session on one terminal line.
func (a *App) RunMeditate(ctx context.Context, args Args) error {
	minutes, err := args.Parser.FlagIntOrDefault("minutes", int(wellness.DefaultMeditation.Minutes()))
	if err != nil {
		return err
	}
	timer := wellness.NewTimer()
	if err := timer.SetDuration(minutes); err != nil {
		return NewValidationErrorWithExample("minutes", fmt.Sprint(minutes), "must be positive", "--minutes 5")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !args.Quiet {
		fmt.Fprintf(a.Out, "%s %s\n", TitleStyle.Render("Meditation"),
			DimStyle.Render(fmt.Sprintf("%d min, breathe slowly. Ctrl+C to stop.", minutes)))
	}
	fmt.Fprintf(a.Out, "\r%s ", ValueStyle.Render(wellness.FormatTime(timer.Remaining())))

	err = timer.Run(ctx, func(remaining int) {
		fmt.Fprintf(a.Out, "\r%s ", ValueStyle.Render(wellness.FormatTime(remaining)))
	})
	fmt.Fprintln(a.Out)

	switch {
	case err == nil:
		fmt.Fprintln(a.Out, SuccessStyle.Render("Session complete. Well done."))
		return nil
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(a.Out, DimStyle.Render("Session stopped."))
		return nil
	default:
		return err
	}
}
