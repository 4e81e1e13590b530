// Package render draws a board preview as SVG: substrate, copper
// tracks, pads, vias, silkscreen graphics and the board outline. The
// preview is meant for eyeballing placement results without opening
// the board editor; it draws no zones and no text.
package render

import (
	"errors"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/svg"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/pcb"
)

// Options configures the preview.
type Options struct {
	Margin float64 // millimeters around the board extent
}

// DefaultOptions returns a 2 mm margin.
func DefaultOptions() Options {
	return Options{Margin: 2}
}

// SaveSVG writes the board preview to a file.
func SaveSVG(path string, board *pcb.Board, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := SVG(f, board, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SVG renders the board preview to w.
func SVG(w io.Writer, board *pcb.Board, opts Options) error {
	box := board.BBox().Inflate(opts.Margin)
	width := box.Max.X - box.Min.X
	height := box.Max.Y - box.Min.Y
	if width <= 0 || height <= 0 {
		return errors.New("board has no drawable extent")
	}

	c := canvas.New(width, height)
	ctx := canvas.NewContext(c)
	// Match board coordinates: origin top left, y growing down.
	ctx.SetCoordSystem(canvas.CartesianIV)

	d := drawer{ctx: ctx, origin: box.Min}
	d.substrate(width, height)

	// Back to front so the component side reads on top.
	d.tracks(board, "B.Cu")
	d.footprintGraphics(board, pcb.SideBack)
	d.tracks(board, "F.Cu")
	d.pads(board)
	d.vias(board)
	d.footprintGraphics(board, pcb.SideFront)
	d.outline(board)

	out := svg.New(w, width, height, nil)
	c.RenderTo(out)
	return out.Close()
}

type drawer struct {
	ctx    *canvas.Context
	origin pcb.Position
}

func (d *drawer) pt(p pcb.Position) (float64, float64) {
	return p.X - d.origin.X, p.Y - d.origin.Y
}

func (d *drawer) substrate(width, height float64) {
	d.ctx.SetFillColor(colorSubstrate)
	d.ctx.SetStrokeColor(color.RGBA{})
	d.ctx.DrawPath(0, 0, canvas.Rectangle(width, height))
}

func (d *drawer) tracks(board *pcb.Board, layer string) {
	d.ctx.SetFillColor(color.RGBA{})
	d.ctx.SetStrokeColor(layerColor(layer))
	for _, t := range board.Tracks {
		if t.Layer != layer {
			continue
		}
		d.ctx.SetStrokeWidth(t.Width)
		d.line(t.Start, t.End)
	}
}

func (d *drawer) pads(board *pcb.Board) {
	d.ctx.SetFillColor(colorPad)
	d.ctx.SetStrokeColor(color.RGBA{})
	for _, fp := range board.Footprints {
		for _, pad := range fp.Pads {
			center, _ := fp.PadPosition(pad.Number)
			cx, cy := d.pt(center)
			if pad.Shape == "circle" {
				r := pad.Size.Width / 2
				d.ctx.DrawPath(cx-r, cy-r, canvas.Circle(r))
				continue
			}
			// Non-circular pads draw as their rotated extent; close
			// enough for a preview.
			hw, hh := padExtent(pad)
			d.ctx.DrawPath(cx-hw, cy-hh, canvas.Rectangle(2*hw, 2*hh))
		}
	}
}

func (d *drawer) vias(board *pcb.Board) {
	for _, via := range board.Vias {
		cx, cy := d.pt(via.Position)
		r := via.Size / 2
		d.ctx.SetFillColor(colorVia)
		d.ctx.SetStrokeColor(color.RGBA{})
		d.ctx.DrawPath(cx-r, cy-r, canvas.Circle(r))
		if via.Drill > 0 {
			d.ctx.SetFillColor(colorSubstrate)
			dr := via.Drill / 2
			d.ctx.DrawPath(cx-dr, cy-dr, canvas.Circle(dr))
		}
	}
}

func (d *drawer) footprintGraphics(board *pcb.Board, side pcb.Side) {
	for _, fp := range board.Footprints {
		if fp.Side() != side {
			continue
		}
		for _, g := range fp.Graphics {
			if _, ok := layerColors[g.Layer]; !ok {
				continue
			}
			d.graphic(fp, g)
		}
	}
}

func (d *drawer) graphic(fp *pcb.Footprint, g *pcb.Graphic) {
	width := g.Width
	if width <= 0 {
		width = 0.12
	}
	d.ctx.SetFillColor(color.RGBA{})
	d.ctx.SetStrokeColor(layerColor(g.Layer))
	d.ctx.SetStrokeWidth(width)

	switch g.Type {
	case "circle":
		center := fp.ToBoard(g.Center)
		r := center.DistanceTo(fp.ToBoard(g.End))
		cx, cy := d.pt(center)
		d.ctx.DrawPath(cx-r, cy-r, canvas.Circle(r))
	case "arc":
		d.arc(fp.ToBoard(g.Start), fp.ToBoard(g.Center), fp.ToBoard(g.End))
	case "poly":
		if len(g.Points) < 2 {
			return
		}
		p := &canvas.Path{}
		p.MoveTo(0, 0)
		first := fp.ToBoard(g.Points[0])
		for _, pt := range g.Points[1:] {
			abs := fp.ToBoard(pt)
			p.LineTo(abs.X-first.X, abs.Y-first.Y)
		}
		p.Close()
		x, y := d.pt(first)
		d.ctx.DrawPath(x, y, p)
	default:
		d.line(fp.ToBoard(g.Start), fp.ToBoard(g.End))
	}
}

func (d *drawer) outline(board *pcb.Board) {
	d.ctx.SetFillColor(color.RGBA{})
	d.ctx.SetStrokeColor(layerColor("Edge.Cuts"))
	for _, g := range board.Outline {
		width := g.Width
		if width <= 0 {
			width = 0.1
		}
		d.ctx.SetStrokeWidth(width)
		switch g.Type {
		case "circle":
			r := g.Center.DistanceTo(g.End)
			cx, cy := d.pt(g.Center)
			d.ctx.DrawPath(cx-r, cy-r, canvas.Circle(r))
		case "arc":
			d.arc(g.Start, g.Center, g.End)
		default:
			d.line(g.Start, g.End)
		}
	}
}

func (d *drawer) line(a, b pcb.Position) {
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(b.X-a.X, b.Y-a.Y)
	x, y := d.pt(a)
	d.ctx.DrawPath(x, y, p)
}

// arc draws a three-point arc as a quadratic through the midpoint,
// which is indistinguishable at preview scale for the shallow arcs
// board outlines use.
func (d *drawer) arc(start, mid, end pcb.Position) {
	// The quadratic control point making the curve pass through mid
	// at t=0.5.
	ctrl := pcb.Position{
		X: 2*mid.X - (start.X+end.X)/2,
		Y: 2*mid.Y - (start.Y+end.Y)/2,
	}
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.QuadTo(ctrl.X-start.X, ctrl.Y-start.Y, end.X-start.X, end.Y-start.Y)
	x, y := d.pt(start)
	d.ctx.DrawPath(x, y, p)
}

// padExtent returns the half extents of a pad's axis-aligned bounds
// under its stored rotation.
func padExtent(pad *pcb.Pad) (float64, float64) {
	rad := pad.Angle * math.Pi / 180
	sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))
	hw := pad.Size.Width/2*cos + pad.Size.Height/2*sin
	hh := pad.Size.Width/2*sin + pad.Size.Height/2*cos
	return hw, hh
}
