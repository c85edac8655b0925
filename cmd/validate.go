package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/ambilight/internal/config"
	"github.com/smazurov/ambilight/internal/zonemap"
)

// CreateValidateCmd creates the validate command.
func CreateValidateCmd(defaultPath string) *cobra.Command {
	var showTable bool

	cmd := &cobra.Command{
		Use:   "validate [strip-settings]",
		Short: "Validate the strip settings file",
		Long: `Loads the strip settings file, checks the geometry the way the renderer does ` +
			`and prints the resulting zone layout.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := defaultPath
			if len(args) == 1 {
				path = args[0]
			}
			exitOnError(validateSettings(cmd.OutOrStdout(), path, showTable))
		},
	}

	cmd.Flags().BoolVar(&showTable, "table", false, "Print the zone id of every bin")
	return cmd
}

func validateSettings(w io.Writer, path string, showTable bool) error {
	settings, err := config.LoadStripSettings(path)
	if err != nil {
		return err
	}

	g := settings.Geometry
	fmt.Fprintf(w, "%s: ok\n", path)
	fmt.Fprintf(w, "  mode:     %s\n", settings.Mode)
	fmt.Fprintf(w, "  device:   %s\n", valueOr(settings.Device, "(none)"))
	fmt.Fprintf(w, "  screen:   %dx%d\n", g.ScreenWidth, g.ScreenHeight)
	fmt.Fprintf(w, "  zones:    %d (%d horizontal, %d vertical, first at %s)\n",
		g.ZoneCount(), g.HorizontalLeds, g.VerticalLeds, g.Corner)
	fmt.Fprintf(w, "  sampling: margin %d, thickness %d\n", g.Margin, g.Thickness)

	if !showTable {
		return nil
	}
	m := zonemap.Build(g)
	table := m.Table()
	for _, b := range []zonemap.Band{zonemap.BandRight, zonemap.BandTop, zonemap.BandLeft, zonemap.BandBottom} {
		fmt.Fprintf(w, "  %-6s", b.String()+":")
		for pos := range table[b] {
			fmt.Fprintf(w, " %3d", table.Lookup(b, pos))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
