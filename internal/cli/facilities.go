// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// facilities.go - Nearby healthcare facilities.
//
// Command: facilities [--type hospital|clinic|pharmacy] [--near LAT,LNG] [--limit N]
// Aliases: nearby
//
// Examples:
//
//	drecho facilities                          Everything, nearest to New Delhi first
//	drecho facilities --type pharmacy -n 3     Three closest pharmacies
//	drecho facilities --near 28.55,77.25       Sorted from a given location
//	drecho facilities show 5                   One facility by id
package cli

import (
	"context"
	"fmt"

	"github.com/echomed/drecho/internal/facilities"
	"github.com/echomed/drecho/internal/util"
)

// FacilitiesData is the --json form of the facilities command.
type FacilitiesData struct {
	Origin  facilities.Point    `json:"origin"`
	Type    string              `json:"type,omitempty"`
	Results []facilities.Result `json:"results"`
}

// RunFacilities lists facilities nearest a location.
func (a *App) RunFacilities(ctx context.Context, args Args) error {
	p := args.Parser
	if p.Subcommand() == "show" {
		return a.showFacility(args, p.Positional(1))
	}

	t, err := facilities.ParseType(p.Flag("type"))
	if err != nil {
		return NewValidationErrorWithExample("type", p.Flag("type"), "must be hospital, clinic or pharmacy", "--type clinic")
	}

	origin := facilities.DefaultCenter
	if near := p.Flag("near"); near != "" {
		if origin, err = facilities.ParsePoint(near); err != nil {
			return NewValidationErrorWithExample("near", near, err.Error(), "--near 28.61,77.21")
		}
	}

	limit, err := p.FlagIntOrDefault("limit", 0)
	if err != nil {
		return err
	}
	if limit, err = p.FlagIntOrDefault("n", limit); err != nil {
		return err
	}
	if limit < 0 {
		return NewValidationErrorWithExample("limit", fmt.Sprint(limit), "must not be negative", "--limit 5")
	}

	results := a.Directory.Nearest(origin, limit, t)
	if args.JSON {
		return NewJSONResponse("facilities", FacilitiesData{
			Origin:  origin,
			Type:    string(t),
			Results: results,
		}).Write(a.Out)
	}

	if len(results) == 0 {
		fmt.Fprintln(a.Out, DimStyle.Render("No facilities match."))
		return nil
	}
	a.printFacilities(results)
	return nil
}

func (a *App) showFacility(args Args, id string) error {
	if id == "" {
		return ErrMissingArgument("facility id", "drecho facilities show 5")
	}
	f, ok := a.Directory.Get(id)
	if !ok {
		return &NotFoundError{Resource: "facility", ID: id}
	}
	if args.JSON {
		return NewJSONResponse("facilities", f).Write(a.Out)
	}

	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, TitleStyle.Render(f.Name))
	fmt.Fprintln(a.Out, RenderLabel("Type:")+RenderFacilityType(f.Type))
	fmt.Fprintln(a.Out, RenderField("Address:", f.Address))
	if f.Phone != "" {
		fmt.Fprintln(a.Out, RenderField("Phone:", f.Phone))
	}
	fmt.Fprintln(a.Out, RenderField("Location:", fmt.Sprintf("%.4f, %.4f", f.Lat, f.Lng)))
	fmt.Fprintln(a.Out)
	return nil
}

func (a *App) printFacilities(results []facilities.Result) {
	nameWidth := GetTerminalWidth() - 32
	if nameWidth < 20 {
		nameWidth = 20
	}
	if nameWidth > 48 {
		nameWidth = 48
	}

	fmt.Fprintln(a.Out)
	fmt.Fprintf(a.Out, "  %s  %s  %s  %s\n",
		DimStyle.Render(util.PadDisplay("ID", 3)),
		DimStyle.Render(util.PadDisplay("NAME", nameWidth)),
		DimStyle.Render(util.PadDisplay("TYPE", 9)),
		DimStyle.Render("DISTANCE"),
	)
	for _, r := range results {
		fmt.Fprintf(a.Out, "  %s  %s  %s  %s\n",
			util.PadDisplay(r.ID, 3),
			util.PadDisplay(util.TruncateDisplay(r.Name, nameWidth), nameWidth),
			RenderFacilityType(r.Type)+util.PadDisplay("", 9-len(r.Type)),
			fmt.Sprintf("%6.1f km", r.DistanceKm),
		)
	}
	fmt.Fprintln(a.Out)
}
