package pcb

import (
	"math"
	"strings"
)

// Position is a 2D board coordinate in millimeters. The Y axis points
// down, matching the KiCad editor.
type Position struct {
	X float64
	Y float64
}

// Add returns p translated by v.
func (p Position) Add(v Position) Position {
	return Position{X: p.X + v.X, Y: p.Y + v.Y}
}

// Sub returns p minus v.
func (p Position) Sub(v Position) Position {
	return Position{X: p.X - v.X, Y: p.Y - v.Y}
}

// DistanceTo returns the euclidean distance to q.
func (p Position) DistanceTo(q Position) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Rotate rotates p about origin by deg degrees. Positive angles turn
// clockwise on screen (the rotation sense layout editors use in the
// y-down coordinate system).
func Rotate(p, origin Position, deg float64) Position {
	if deg == 0 {
		return p
	}
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	dx := p.X - origin.X
	dy := p.Y - origin.Y
	return Position{
		X: origin.X + dx*cos - dy*sin,
		Y: origin.Y + dx*sin + dy*cos,
	}
}

// NormalizeAngle folds an angle in degrees into (-180, 180], the range
// KiCad stores footprint orientations in.
func NormalizeAngle(deg float64) float64 {
	for deg > 180 {
		deg -= 360
	}
	for deg <= -180 {
		deg += 360
	}
	return deg
}

// Size is a width/height pair in millimeters.
type Size struct {
	Width  float64
	Height float64
}

// Side identifies which face of the board an element sits on.
type Side int

const (
	SideFront Side = iota
	SideBack
)

func (s Side) String() string {
	if s == SideBack {
		return "back"
	}
	return "front"
}

// CopperLayer returns the copper layer name for the side.
func (s Side) CopperLayer() string {
	if s == SideBack {
		return "B.Cu"
	}
	return "F.Cu"
}

// SideOfLayer maps a layer name to the board side it belongs to.
func SideOfLayer(layer string) Side {
	if strings.HasPrefix(layer, "B.") {
		return SideBack
	}
	return SideFront
}

// MirrorLayer swaps a layer name between the front and back face.
// Wildcard layers such as "*.Cu" are unchanged.
func MirrorLayer(layer string) string {
	switch {
	case strings.HasPrefix(layer, "F."):
		return "B." + layer[2:]
	case strings.HasPrefix(layer, "B."):
		return "F." + layer[2:]
	default:
		return layer
	}
}

// Layer is a board layer definition.
type Layer struct {
	Number int
	Name   string
	Type   string
}

// LayerSet is the set of layers an element appears on.
type LayerSet []string

// Contains reports whether the set includes the layer, honoring the
// "*." wildcard used by through-hole pads.
func (ls LayerSet) Contains(layer string) bool {
	for _, l := range ls {
		if l == layer {
			return true
		}
		if strings.HasPrefix(l, "*.") && strings.HasSuffix(layer, l[1:]) {
			return true
		}
	}
	return false
}

// Mirror returns the set with every layer swapped front/back.
func (ls LayerSet) Mirror() LayerSet {
	out := make(LayerSet, len(ls))
	for i, l := range ls {
		out[i] = MirrorLayer(l)
	}
	return out
}

// Net is an electrical net.
type Net struct {
	Number int
	Name   string
}

// BoundingBox is an axis-aligned rectangle used for broad-phase
// geometry queries.
type BoundingBox struct {
	Min Position
	Max Position
}

// NewBoundingBox returns a degenerate box positioned at p, ready to be
// expanded.
func NewBoundingBox(p Position) BoundingBox {
	return BoundingBox{Min: p, Max: p}
}

// Expand grows the box to include p.
func (bb BoundingBox) Expand(p Position) BoundingBox {
	if p.X < bb.Min.X {
		bb.Min.X = p.X
	}
	if p.Y < bb.Min.Y {
		bb.Min.Y = p.Y
	}
	if p.X > bb.Max.X {
		bb.Max.X = p.X
	}
	if p.Y > bb.Max.Y {
		bb.Max.Y = p.Y
	}
	return bb
}

// Union merges two boxes.
func (bb BoundingBox) Union(other BoundingBox) BoundingBox {
	return bb.Expand(other.Min).Expand(other.Max)
}

// Inflate grows the box by d on every side.
func (bb BoundingBox) Inflate(d float64) BoundingBox {
	bb.Min.X -= d
	bb.Min.Y -= d
	bb.Max.X += d
	bb.Max.Y += d
	return bb
}

// Intersects reports whether the boxes overlap.
func (bb BoundingBox) Intersects(other BoundingBox) bool {
	return bb.Min.X <= other.Max.X && bb.Max.X >= other.Min.X &&
		bb.Min.Y <= other.Max.Y && bb.Max.Y >= other.Min.Y
}

// Contains reports whether p lies inside the box.
func (bb BoundingBox) Contains(p Position) bool {
	return p.X >= bb.Min.X && p.X <= bb.Max.X &&
		p.Y >= bb.Min.Y && p.Y <= bb.Max.Y
}

// Width returns the horizontal extent.
func (bb BoundingBox) Width() float64 { return bb.Max.X - bb.Min.X }

// Height returns the vertical extent.
func (bb BoundingBox) Height() float64 { return bb.Max.Y - bb.Min.Y }

// Center returns the midpoint of the box.
func (bb BoundingBox) Center() Position {
	return Position{X: (bb.Min.X + bb.Max.X) / 2, Y: (bb.Min.Y + bb.Max.Y) / 2}
}
