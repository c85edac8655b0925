package cmd

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/spf13/cobra"
	"golang.org/x/image/draw"

	"github.com/smazurov/ambilight/internal/capture"
	"github.com/smazurov/ambilight/internal/config"
	"github.com/smazurov/ambilight/internal/types"
	"github.com/smazurov/ambilight/internal/zonemap"
)

const (
	previewWidth  = 960 // screen area width in the rendered preview
	previewBorder = 48  // depth of the zone ring around it
)

// CreatePreviewCmd creates the preview command.
func CreatePreviewCmd(defaultSettings string) *cobra.Command {
	var settingsPath, imagePath, outPath string
	var list bool

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the zone colors a still image produces",
		Long: `Samples a still image with the configured geometry exactly as monitor mode samples the ` +
			`screen, and renders the image surrounded by the resulting zone colors as a PNG.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			exitOnError(runPreview(cmd.OutOrStdout(), settingsPath, imagePath, outPath, list))
		},
	}

	cmd.Flags().StringVarP(&settingsPath, "settings", "s", defaultSettings, "Strip settings file")
	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Still image to sample (png, jpeg, gif, bmp)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "preview.png", "Output PNG")
	cmd.Flags().BoolVar(&list, "list", false, "Also print the zone colors as sent to the strip")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func runPreview(w io.Writer, settingsPath, imagePath, outPath string, list bool) error {
	settings, err := config.LoadStripSettings(settingsPath)
	if err != nil {
		return err
	}
	img, err := capture.LoadImage(imagePath)
	if err != nil {
		return err
	}

	dc, zones, err := renderPreview(settings.Geometry, img)
	if err != nil {
		return err
	}
	if err := dc.SavePNG(outPath); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	fmt.Fprintf(w, "Wrote %s (%d zones)\n", outPath, len(zones))

	if list {
		for _, z := range zones {
			fmt.Fprintf(w, "%3d %s\n", z.ID, z.Color)
		}
	}
	return nil
}

// renderPreview reduces img with geometry g and draws it framed by the
// zone colors. The returned zones carry the gamma compressed values the
// strip receives.
func renderPreview(g zonemap.Geometry, img image.Image) (*gg.Context, []types.LedZone, error) {
	if err := zonemap.Validate(g); err != nil {
		return nil, nil, err
	}

	m := zonemap.Build(g)
	zones, err := zonemap.ReduceFrame(m, capture.ImageToBGRA(img, g.ScreenWidth, g.ScreenHeight))
	if err != nil {
		return nil, nil, err
	}

	pw := previewWidth
	ph := max(1, int(math.Round(float64(g.ScreenHeight)*float64(pw)/float64(g.ScreenWidth))))

	dc := gg.NewContext(pw+2*previewBorder, ph+2*previewBorder)
	dc.SetColor(color.Black)
	dc.Clear()

	screen := image.NewRGBA(image.Rect(0, 0, pw, ph))
	draw.ApproxBiLinear.Scale(screen, screen.Bounds(), img, img.Bounds(), draw.Src, nil)
	dc.DrawImage(screen, previewBorder, previewBorder)

	table := m.Table()
	vBins, hBins := len(table[zonemap.BandRight]), len(table[zonemap.BandTop])
	cellH := float64(ph) / float64(vBins)
	cellW := float64(pw) / float64(hBins)
	b := float64(previewBorder)

	cell := func(band zonemap.Band, pos int) (x, y, w, h float64) {
		switch band {
		case zonemap.BandRight:
			return b + float64(pw), b + float64(pos)*cellH, b, cellH
		case zonemap.BandLeft:
			return 0, b + float64(pos)*cellH, b, cellH
		case zonemap.BandTop:
			return b + float64(pos)*cellW, 0, cellW, b
		default:
			return b + float64(pos)*cellW, b + float64(ph), cellW, b
		}
	}

	for _, band := range []zonemap.Band{zonemap.BandRight, zonemap.BandTop, zonemap.BandLeft, zonemap.BandBottom} {
		for pos := range table[band] {
			id := table.Lookup(band, pos)
			c := displayColor(zones[id].Color)
			x, y, w, h := cell(band, pos)

			dc.DrawRectangle(x+1, y+1, w-2, h-2)
			dc.SetColor(c)
			dc.Fill()

			dc.SetColor(labelColor(c))
			dc.DrawStringAnchored(fmt.Sprint(id), x+w/2, y+h/2, 0.5, 0.5)
		}
	}
	return dc, zones, nil
}

// displayColor undoes the strip gamma so the preview shows roughly what
// the LEDs emit.
func displayColor(c types.Color) color.RGBA {
	expand := func(v uint8) uint8 {
		return uint8(math.Round(255 * math.Sqrt(float64(min(v, 127))/127)))
	}
	return color.RGBA{R: expand(c.R), G: expand(c.G), B: expand(c.B), A: 255}
}

func labelColor(c color.RGBA) color.Color {
	luma := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	if luma > 140 {
		return color.Black
	}
	return color.White
}
