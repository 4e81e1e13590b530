package render

import "image/color"

// Classic KiCad board editor palette.
var layerColors = map[string]color.NRGBA{
	"F.Cu":      {R: 200, G: 52, B: 52, A: 255},
	"B.Cu":      {R: 77, G: 127, B: 196, A: 255},
	"In1.Cu":    {R: 127, G: 200, B: 127, A: 255},
	"In2.Cu":    {R: 206, G: 125, B: 44, A: 255},
	"F.SilkS":   {R: 242, G: 237, B: 161, A: 255},
	"B.SilkS":   {R: 232, G: 178, B: 167, A: 255},
	"F.Fab":     {R: 175, G: 175, B: 175, A: 255},
	"B.Fab":     {R: 88, G: 93, B: 132, A: 255},
	"F.CrtYd":   {R: 255, G: 38, B: 226, A: 255},
	"B.CrtYd":   {R: 38, G: 233, B: 255, A: 255},
	"Edge.Cuts": {R: 208, G: 210, B: 205, A: 255},
}

var (
	colorPad       = color.NRGBA{R: 227, G: 183, B: 46, A: 255}
	colorVia       = color.NRGBA{R: 236, G: 236, B: 236, A: 255}
	colorSubstrate = color.NRGBA{R: 20, G: 90, B: 50, A: 255}
)

func layerColor(layer string) color.NRGBA {
	if c, ok := layerColors[layer]; ok {
		return c
	}
	return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
}
