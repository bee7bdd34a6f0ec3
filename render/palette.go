// Package render turns trail field frames into images and video.
package render

import (
	"image/color"
	"math/rand/v2"
)

// Palette assigns one colour per population. Populations beyond the
// palette length reuse colours cyclically.
type Palette struct {
	Name   string
	Colors []color.RGBA
}

// Color returns the colour for population i.
func (p Palette) Color(i int) color.RGBA {
	return p.Colors[i%len(p.Colors)]
}

func rgb(hex uint32) color.RGBA {
	return color.RGBA{R: uint8(hex >> 16), G: uint8(hex >> 8), B: uint8(hex), A: 255}
}

// Palettes is the fixed table random palettes are drawn from.
var Palettes = []Palette{
	{Name: "ember", Colors: []color.RGBA{rgb(0xfa2b31), rgb(0xffbf1f), rgb(0xfff146), rgb(0xabe319)}},
	{Name: "lagoon", Colors: []color.RGBA{rgb(0x00b4d8), rgb(0x90e0ef), rgb(0x0077b6), rgb(0xcaf0f8)}},
	{Name: "orchid", Colors: []color.RGBA{rgb(0xf72585), rgb(0x7209b7), rgb(0x4cc9f0), rgb(0x4361ee)}},
	{Name: "moss", Colors: []color.RGBA{rgb(0x95d5b2), rgb(0xd8f3dc), rgb(0x52b788), rgb(0xffd166)}},
	{Name: "dusk", Colors: []color.RGBA{rgb(0xff9e00), rgb(0x9d4edd), rgb(0xff6d00), rgb(0x5a189a)}},
	{Name: "mono", Colors: []color.RGBA{rgb(0xffffff), rgb(0xb0b0b0), rgb(0x707070), rgb(0xe0e0e0)}},
}

// RandomPalette picks a palette from the table and shuffles its colours.
func RandomPalette(rng *rand.Rand) Palette {
	src := Palettes[rng.IntN(len(Palettes))]
	p := Palette{Name: src.Name, Colors: append([]color.RGBA(nil), src.Colors...)}
	rng.Shuffle(len(p.Colors), func(i, j int) {
		p.Colors[i], p.Colors[j] = p.Colors[j], p.Colors[i]
	})
	return p
}
