package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/neuralliquid/portal/internal/theme"
)

// palettes are the swatch colors per variant, light then dark.
var palettes = map[theme.Variant][2]lipgloss.Color{
	theme.VariantStandard:     {"#2f6fed", "#5b8def"},
	theme.VariantNeuralLiquid: {"#7c4dff", "#a57cff"},
	theme.VariantCorporate:    {"#1f3a5f", "#4a6d99"},
	theme.VariantVeritasVault: {"#c9a227", "#e0c15a"},
}

// resolveOutput is the -json form of the resolve subcommand.
type resolveOutput struct {
	Selection       theme.Selection `json:"selection"`
	VariantSource   theme.Source    `json:"variant_source"`
	ColorModeSource theme.Source    `json:"color_mode_source"`
	Markers         []theme.Marker  `json:"markers"`
	ClassList       string          `json:"class_list"`
}

// runResolve resolves a selection from flags the way a page request would
// and prints it. It returns the process exit code.
func runResolve(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	experience := fs.String("experience", string(theme.DefaultExperience), "experience: standard or corporate")
	query := fs.String("theme", "", `URL parameter value, e.g. "neuralliquid-dark"`)
	stored := fs.String("stored", "", "persisted preference value")
	system := fs.String("system", "none", "system preference: dark, light, auto (terminal background) or none")
	asJSON := fs.Bool("json", false, "print JSON instead of a preview")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	exp, err := theme.ParseExperience(*experience)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	sys, err := systemSource(*system)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	src := theme.Sources{Query: *query, System: sys}
	if *stored != "" {
		src.Store = fixedStore{theme.DefaultPreferenceKey: *stored}
	}
	res := theme.Resolve(src, theme.Selection{
		Experience: exp,
		Variant:    theme.DefaultVariant(exp),
		ColorMode:  theme.ColorModeLight,
	})
	markers := theme.MarkersFor(res.Selection)

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resolveOutput{
			Selection:       res.Selection,
			VariantSource:   res.VariantSource,
			ColorModeSource: res.ColorModeSource,
			Markers:         markers.Sorted(),
			ClassList:       markers.ClassList(),
		}); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}

	fmt.Fprintln(stdout, preview(res, markers))
	return 0
}

func systemSource(s string) (theme.SystemSource, error) {
	switch s {
	case "none", "":
		return nil, nil
	case "dark":
		return theme.PrefersDark(true), nil
	case "light":
		return theme.PrefersDark(false), nil
	case "auto":
		return theme.SystemFunc(func() (bool, bool) { return lipgloss.HasDarkBackground(), true }), nil
	default:
		return nil, fmt.Errorf("invalid -system %q: must be dark, light, auto or none", s)
	}
}

func preview(res theme.Resolution, markers theme.MarkerSet) string {
	sel := res.Selection
	dark := sel.ColorMode == theme.ColorModeDark

	accent := palettes[sel.Variant][0]
	bg, fg := lipgloss.Color("#f7f8fa"), lipgloss.Color("#14171f")
	if dark {
		accent = palettes[sel.Variant][1]
		bg, fg = lipgloss.Color("#0e1117"), lipgloss.Color("#e6e9ef")
	}

	swatch := lipgloss.NewStyle().
		Background(bg).
		Foreground(fg).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 2).
		Render(lipgloss.NewStyle().Foreground(accent).Bold(true).Render(sel.String()))

	label := lipgloss.NewStyle().Faint(true)
	details := lipgloss.JoinVertical(lipgloss.Left,
		label.Render("variant    ")+string(sel.Variant)+label.Render(" ("+res.VariantSource.String()+")"),
		label.Render("color mode ")+string(sel.ColorMode)+label.Render(" ("+res.ColorModeSource.String()+")"),
		label.Render("class      ")+markers.ClassList(),
	)
	return lipgloss.JoinHorizontal(lipgloss.Center, swatch, "  ", details)
}

// fixedStore is a read-only theme.Store over a map.
type fixedStore map[string]string

func (s fixedStore) Get(key string) (string, error) {
	v, ok := s[key]
	if !ok {
		return "", errors.New("not set")
	}
	return v, nil
}

func (fixedStore) Set(string, string, time.Duration) error {
	return errors.New("read-only store")
}
