package pcb

import (
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/sexp"
)

// Footprint is a component footprint. It keeps a handle to its source
// tree node so mutations write through and the document can be saved
// without losing anything the typed model does not cover. Footprints
// built without a node (tests, synthetic boards) mutate the model only.
type Footprint struct {
	Library     string
	Name        string
	Layer       string
	Position    Position
	Orientation float64 // degrees, as stored in the file
	Reference   string
	Value       string
	Pads        []*Pad
	Graphics    []*Graphic

	node *sexp.List
}

// Pad is a footprint pad. Offset is relative to the footprint center
// in the footprint's unrotated frame; Angle is the absolute rotation
// stored in the file (pad rotation plus footprint orientation).
type Pad struct {
	Number    string
	Type      string
	Shape     string
	Offset    Position
	Angle     float64
	Size      Size
	Drill     float64
	Layers    LayerSet
	NetNumber int
	NetName   string

	node *sexp.List
}

// Graphic is a footprint drawing primitive in footprint-relative
// coordinates. Center doubles as the arc midpoint.
type Graphic struct {
	Type   string
	Layer  string
	Start  Position
	End    Position
	Center Position
	Points []Position
	Width  float64

	node *sexp.List
}

// FullName returns the library-qualified footprint name.
func (f *Footprint) FullName() string {
	if f.Library == "" {
		return f.Name
	}
	return f.Library + ":" + f.Name
}

// Side returns which board face the footprint sits on.
func (f *Footprint) Side() Side {
	return SideOfLayer(f.Layer)
}

// SetPosition moves the footprint, leaving its orientation alone.
func (f *Footprint) SetPosition(p Position) {
	f.Position = p
	if f.node == nil {
		return
	}
	if at := f.node.Child("at"); at != nil {
		at.SetFloatAt(1, p.X)
		at.SetFloatAt(2, p.Y)
	}
}

// SetOrientation rotates the footprint in place to the given absolute
// angle. Pad and text angles stored in the file include the footprint
// orientation, so they follow the same delta.
func (f *Footprint) SetOrientation(deg float64) {
	delta := deg - f.Orientation
	if delta == 0 {
		return
	}
	f.Orientation = NormalizeAngle(deg)

	for _, pad := range f.Pads {
		pad.Angle = NormalizeAngle(pad.Angle + delta)
		if pad.node != nil {
			if at := pad.node.Child("at"); at != nil {
				at.SetFloatAt(3, pad.Angle)
			}
		}
	}

	if f.node == nil {
		return
	}
	if at := f.node.Child("at"); at != nil {
		at.SetFloatAt(3, f.Orientation)
	}
	for _, name := range []string{"property", "fp_text", "fp_text_box"} {
		for _, text := range f.node.Children(name) {
			if at := text.Child("at"); at != nil {
				cur, _ := at.FloatAt(3)
				at.SetFloatAt(3, NormalizeAngle(cur+delta))
			}
		}
	}
}

// Rotate turns the footprint about origin by deg degrees, positive
// clockwise on screen, updating position and orientation together.
func (f *Footprint) Rotate(origin Position, deg float64) {
	if deg == 0 {
		return
	}
	f.SetPosition(Rotate(f.Position, origin, deg))
	f.SetOrientation(f.Orientation - deg)
}

// SetSide flips the footprint to the given board face if it is not
// already there. Flipping mirrors the footprint top-to-bottom about
// its own position, the way the board editor does: relative Y
// coordinates and angles negate, layers swap faces.
func (f *Footprint) SetSide(side Side) {
	if f.Side() == side {
		return
	}

	f.Layer = MirrorLayer(f.Layer)
	f.Orientation = NormalizeAngle(-f.Orientation)

	for _, pad := range f.Pads {
		pad.Offset.Y = -pad.Offset.Y
		pad.Angle = NormalizeAngle(-pad.Angle)
		pad.Layers = pad.Layers.Mirror()
		pad.syncFlip()
	}
	for _, g := range f.Graphics {
		g.Start.Y = -g.Start.Y
		g.End.Y = -g.End.Y
		g.Center.Y = -g.Center.Y
		for i := range g.Points {
			g.Points[i].Y = -g.Points[i].Y
		}
		g.Layer = MirrorLayer(g.Layer)
		g.syncFlip()
	}

	if f.node == nil {
		return
	}
	if layer := f.node.Child("layer"); layer != nil {
		layer.SetAt(1, sexp.Str(f.Layer))
	}
	if at := f.node.Child("at"); at != nil {
		if at.Len() > 3 || f.Orientation != 0 {
			at.SetFloatAt(3, f.Orientation)
		}
	}
	for _, name := range []string{"property", "fp_text", "fp_text_box"} {
		for _, text := range f.node.Children(name) {
			if at := text.Child("at"); at != nil {
				y, err := at.FloatAt(2)
				if err == nil {
					at.SetFloatAt(2, -y)
				}
				if at.Len() > 3 {
					angle, _ := at.FloatAt(3)
					at.SetFloatAt(3, NormalizeAngle(-angle))
				}
			}
			if layer := text.Child("layer"); layer != nil {
				if name, err := layer.StringAt(1); err == nil {
					layer.SetAt(1, sexp.Str(MirrorLayer(name)))
				}
			}
		}
	}
}

func (p *Pad) syncFlip() {
	if p.node == nil {
		return
	}
	if at := p.node.Child("at"); at != nil {
		at.SetFloatAt(2, p.Offset.Y)
		if at.Len() > 3 || p.Angle != 0 {
			at.SetFloatAt(3, p.Angle)
		}
	}
	if layers := p.node.Child("layers"); layers != nil {
		for i := 1; i < layers.Len(); i++ {
			if name, err := layers.StringAt(i); err == nil {
				layers.SetAt(i, layerAtom(layers.At(i), MirrorLayer(name)))
			}
		}
	}
}

func (g *Graphic) syncFlip() {
	if g.node == nil {
		return
	}
	for _, key := range []string{"start", "end", "center", "mid"} {
		if pt := g.node.Child(key); pt != nil {
			if y, err := pt.FloatAt(2); err == nil {
				pt.SetFloatAt(2, -y)
			}
		}
	}
	if pts := g.node.Child("pts"); pts != nil {
		for _, xy := range pts.Children("xy") {
			if y, err := xy.FloatAt(2); err == nil {
				xy.SetFloatAt(2, -y)
			}
		}
	}
	if layer := g.node.Child("layer"); layer != nil {
		if name, err := layer.StringAt(1); err == nil {
			layer.SetAt(1, layerAtom(layer.At(1), MirrorLayer(name)))
		}
	}
}

// layerAtom keeps the original quoting of a layer atom when rewriting
// its value.
func layerAtom(orig sexp.Node, value string) sexp.Node {
	if _, bare := orig.(sexp.Symbol); bare {
		return sexp.Symbol(value)
	}
	return sexp.Str(value)
}

// PadByNumber returns the pad with the given number, or nil.
func (f *Footprint) PadByNumber(number string) *Pad {
	for _, pad := range f.Pads {
		if pad.Number == number {
			return pad
		}
	}
	return nil
}

// PadPosition returns the absolute board position of a pad.
func (f *Footprint) PadPosition(number string) (Position, bool) {
	pad := f.PadByNumber(number)
	if pad == nil {
		return Position{}, false
	}
	return f.padAbsolute(pad), true
}

// PadNet returns the net a pad is connected to.
func (f *Footprint) PadNet(number string) (Net, bool) {
	pad := f.PadByNumber(number)
	if pad == nil {
		return Net{}, false
	}
	return Net{Number: pad.NetNumber, Name: pad.NetName}, true
}

func (f *Footprint) padAbsolute(pad *Pad) Position {
	return f.toAbsolute(pad.Offset)
}

// ToBoard maps a footprint-relative point to board coordinates.
func (f *Footprint) ToBoard(rel Position) Position {
	return f.toAbsolute(rel)
}

// toAbsolute maps a footprint-relative point to board coordinates.
// Orientation is stored counter-clockwise positive, the opposite sense
// of Rotate, hence the negation.
func (f *Footprint) toAbsolute(rel Position) Position {
	return Rotate(f.Position.Add(rel), f.Position, -f.Orientation)
}

// BBox returns the axis-aligned extent of the footprint's pads and
// graphics in board coordinates. Used as the broad phase for routing
// collision checks.
func (f *Footprint) BBox() BoundingBox {
	bb := NewBoundingBox(f.Position)
	for _, pad := range f.Pads {
		center := f.padAbsolute(pad)
		half := max(pad.Size.Width, pad.Size.Height) / 2
		bb = bb.Expand(Position{X: center.X - half, Y: center.Y - half})
		bb = bb.Expand(Position{X: center.X + half, Y: center.Y + half})
	}
	for _, g := range f.Graphics {
		for _, p := range g.extents() {
			bb = bb.Expand(f.toAbsolute(p))
		}
	}
	return bb
}

// CourtyardBBox returns the extent of the footprint's courtyard
// outline on its own side, falling back to the pad/graphic extent when
// the footprint defines no courtyard.
func (f *Footprint) CourtyardBBox() BoundingBox {
	layer := "F.CrtYd"
	if f.Side() == SideBack {
		layer = "B.CrtYd"
	}

	var bb BoundingBox
	found := false
	for _, g := range f.Graphics {
		if g.Layer != layer {
			continue
		}
		for _, p := range g.extents() {
			abs := f.toAbsolute(p)
			if !found {
				bb = NewBoundingBox(abs)
				found = true
			} else {
				bb = bb.Expand(abs)
			}
		}
	}
	if !found {
		return f.BBox()
	}
	return bb
}

func (g *Graphic) extents() []Position {
	switch g.Type {
	case "circle":
		r := g.Center.DistanceTo(g.End)
		return []Position{
			{X: g.Center.X - r, Y: g.Center.Y - r},
			{X: g.Center.X + r, Y: g.Center.Y + r},
		}
	case "poly":
		return g.Points
	case "arc":
		return []Position{g.Start, g.Center, g.End}
	default:
		return []Position{g.Start, g.End}
	}
}
