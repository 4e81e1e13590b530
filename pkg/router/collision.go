package router

import (
	"fmt"
	"math"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/pcb"
)

// coincident is the distance below which two points count as the
// same board location.
const coincident = 1e-6

// checker tests candidate segments against existing copper on one
// layer. Same-net copper, pads a segment terminates in, and tracks
// sharing an endpoint with the candidate are not obstacles.
type checker struct {
	board     *pcb.Board
	layer     string
	net       int
	clearance float64
	width     float64
}

func newChecker(board *pcb.Board, layer string, net int, opts Options) *checker {
	return &checker{
		board:     board,
		layer:     layer,
		net:       net,
		clearance: opts.Clearance,
		width:     opts.TrackWidth,
	}
}

// blocked reports whether the segment from a to b collides with
// existing copper, and with what.
func (c *checker) blocked(a, b pcb.Position) (string, bool) {
	for _, t := range c.board.Tracks {
		if t.Layer != c.layer {
			continue
		}
		if c.net != 0 && t.NetNumber == c.net {
			continue
		}
		if samePoint(a, t.Start) || samePoint(a, t.End) ||
			samePoint(b, t.Start) || samePoint(b, t.End) {
			continue
		}
		limit := c.clearance + (c.width+t.Width)/2
		if segmentsClose(a, b, t.Start, t.End, limit) {
			return fmt.Sprintf("crosses track (%.3f, %.3f)-(%.3f, %.3f) on %s",
				t.Start.X, t.Start.Y, t.End.X, t.End.Y, t.Layer), true
		}
	}

	margin := c.clearance + c.width/2
	segBox := pcb.NewBoundingBox(a).Expand(b).Inflate(margin)
	for _, fp := range c.board.Footprints {
		if !fp.BBox().Intersects(segBox) {
			continue
		}
		for _, pad := range fp.Pads {
			if !pad.Layers.Contains(c.layer) {
				continue
			}
			if c.net != 0 && pad.NetNumber == c.net {
				continue
			}
			box := padBounds(fp, pad)
			if box.Contains(a) || box.Contains(b) {
				// Segment terminates in the pad; expected contact.
				continue
			}
			if segmentIntersectsBox(a, b, box.Inflate(margin)) {
				return fmt.Sprintf("hits pad %s:%s", fp.Reference, pad.Number), true
			}
		}
	}

	return "", false
}

// padBounds returns the axis-aligned extent of a pad in board
// coordinates, accounting for the pad's stored rotation.
func padBounds(fp *pcb.Footprint, pad *pcb.Pad) pcb.BoundingBox {
	center, _ := fp.PadPosition(pad.Number)
	rad := pad.Angle * math.Pi / 180
	sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))
	hw := pad.Size.Width/2*cos + pad.Size.Height/2*sin
	hh := pad.Size.Width/2*sin + pad.Size.Height/2*cos
	return pcb.BoundingBox{
		Min: pcb.Position{X: center.X - hw, Y: center.Y - hh},
		Max: pcb.Position{X: center.X + hw, Y: center.Y + hh},
	}
}

func samePoint(a, b pcb.Position) bool {
	return a.DistanceTo(b) < coincident
}

// segmentsClose reports whether two segments come within limit of
// each other.
func segmentsClose(a1, a2, b1, b2 pcb.Position, limit float64) bool {
	if segmentsIntersect(a1, a2, b1, b2) {
		return true
	}
	d := math.Min(
		math.Min(pointSegmentDistance(a1, b1, b2), pointSegmentDistance(a2, b1, b2)),
		math.Min(pointSegmentDistance(b1, a1, a2), pointSegmentDistance(b2, a1, a2)),
	)
	return d < limit
}

// pointSegmentDistance returns the distance from p to the segment ab.
func pointSegmentDistance(p, a, b pcb.Position) float64 {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq < coincident*coincident {
		return p.DistanceTo(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / lenSq
	t = math.Max(0, math.Min(1, t))
	return p.DistanceTo(pcb.Position{X: a.X + t*ab.X, Y: a.Y + t*ab.Y})
}

// segmentsIntersect reports whether segments a1a2 and b1b2 cross,
// using orientation tests with collinear overlap handling.
func segmentsIntersect(a1, a2, b1, b2 pcb.Position) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	eps := coincident
	switch {
	case math.Abs(d1) < eps && onSegment(b1, b2, a1):
		return true
	case math.Abs(d2) < eps && onSegment(b1, b2, a2):
		return true
	case math.Abs(d3) < eps && onSegment(a1, a2, b1):
		return true
	case math.Abs(d4) < eps && onSegment(a1, a2, b2):
		return true
	}
	return false
}

func cross(o, a, b pcb.Position) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func onSegment(a, b, p pcb.Position) bool {
	return p.X >= math.Min(a.X, b.X)-coincident && p.X <= math.Max(a.X, b.X)+coincident &&
		p.Y >= math.Min(a.Y, b.Y)-coincident && p.Y <= math.Max(a.Y, b.Y)+coincident
}

// segmentIntersectsBox reports whether the segment ab touches the
// box.
func segmentIntersectsBox(a, b pcb.Position, box pcb.BoundingBox) bool {
	if box.Contains(a) || box.Contains(b) {
		return true
	}
	corners := [4]pcb.Position{
		box.Min,
		{X: box.Max.X, Y: box.Min.Y},
		box.Max,
		{X: box.Min.X, Y: box.Max.Y},
	}
	for i := range corners {
		if segmentsIntersect(a, b, corners[i], corners[(i+1)%4]) {
			return true
		}
	}
	return false
}
