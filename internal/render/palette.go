package render

import (
	"fmt"
	"sort"

	"github.com/gogpu/gg"
)

// DefaultPalette is used when no color scheme is configured.
const DefaultPalette = "aurora"

// Palette is a named set of surface colors. It only affects the background
// and the cursor overlay, never vertex colors.
type Palette struct {
	Name       string
	Background gg.RGBA
	Cursor     gg.RGBA // Open hand ring
	Press      gg.RGBA // Fist brush outline
	Pinch      gg.RGBA // Pinch dot
}

var palettes = map[string]Palette{
	"aurora": {
		Name:       "aurora",
		Background: gg.Hex("#05060a"),
		Cursor:     gg.RGBA{R: 0.55, G: 0.95, B: 0.85, A: 0.8},
		Press:      gg.RGBA{R: 1, G: 1, B: 1, A: 0.35},
		Pinch:      gg.RGBA{R: 0.95, G: 0.5, B: 0.9, A: 0.9},
	},
	"ember": {
		Name:       "ember",
		Background: gg.Hex("#0c0503"),
		Cursor:     gg.RGBA{R: 1, G: 0.6, B: 0.25, A: 0.8},
		Press:      gg.RGBA{R: 1, G: 0.85, B: 0.7, A: 0.35},
		Pinch:      gg.RGBA{R: 1, G: 0.3, B: 0.2, A: 0.9},
	},
	"ocean": {
		Name:       "ocean",
		Background: gg.Hex("#020812"),
		Cursor:     gg.RGBA{R: 0.35, G: 0.7, B: 1, A: 0.8},
		Press:      gg.RGBA{R: 0.8, G: 0.9, B: 1, A: 0.35},
		Pinch:      gg.RGBA{R: 0.2, G: 1, B: 0.8, A: 0.9},
	},
	"mono": {
		Name:       "mono",
		Background: gg.Hex("#000000"),
		Cursor:     gg.RGBA{R: 0.9, G: 0.9, B: 0.9, A: 0.8},
		Press:      gg.RGBA{R: 1, G: 1, B: 1, A: 0.3},
		Pinch:      gg.RGBA{R: 1, G: 1, B: 1, A: 1},
	},
}

// LookupPalette returns the palette registered under name.
func LookupPalette(name string) (Palette, error) {
	p, ok := palettes[name]
	if !ok {
		return Palette{}, fmt.Errorf("unknown color scheme %q", name)
	}
	return p, nil
}

// PaletteNames lists the registered palettes in sorted order.
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
