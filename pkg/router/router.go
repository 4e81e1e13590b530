// Package router creates the copper tracks between placed switches
// and their diodes. Each pair either clones a captured reference
// path or gets a synthesized one- or two-segment route; a pair whose
// candidate collides with existing copper is reported unrouted, never
// retried. Committed tracks immediately become obstacles for later
// pairs, so routing order matters and is fixed to pair order.
package router

import (
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/pcb"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/placer"
)

// anchorPad is the pad number connecting switch and diode in the
// col-to-row matrix convention: the diode anode and the switch output.
const anchorPad = "2"

// State is a pair's routing outcome.
type State int

const (
	Pending State = iota
	Cloned
	Synthesized
	Unrouted
)

func (s State) String() string {
	switch s {
	case Cloned:
		return "cloned"
	case Synthesized:
		return "synthesized"
	case Unrouted:
		return "unrouted"
	default:
		return "pending"
	}
}

// Options configures track geometry and collision clearance.
type Options struct {
	TrackWidth float64 // millimeters
	Clearance  float64 // minimum copper-to-copper distance
	Logger     *log.Logger
}

// DefaultOptions returns the stock 0.25 mm track and clearance.
func DefaultOptions() Options {
	return Options{TrackWidth: 0.25, Clearance: 0.25}
}

func (o *Options) logger() *log.Logger {
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o.Logger
}

// Result is the per-pair routing outcome, in pair order. Points is
// the committed polyline from the diode pad to the switch pad.
type Result struct {
	SwitchRef string
	DiodeRef  string
	State     State
	Points    []pcb.Position
	Reason    string
}

// Route connects every record's switch and diode. When template is
// non-empty (a reference path captured relative to the first pair's
// diode pad) every pair is cloned from it; otherwise each pair gets
// an independent synthesized route. Failures are per-pair values; the
// batch always completes.
func Route(board *pcb.Board, records []placer.Record, template []pcb.Position, opts Options) []Result {
	logger := opts.logger()

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		res := routePair(board, rec, template, opts)
		switch res.State {
		case Unrouted:
			logger.Warn("pair not routed", "switch", res.SwitchRef, "diode", res.DiodeRef, "reason", res.Reason)
		default:
			logger.Debug("pair routed", "switch", res.SwitchRef, "diode", res.DiodeRef, "state", res.State)
		}
		results = append(results, res)
	}
	return results
}

func routePair(board *pcb.Board, rec placer.Record, template []pcb.Position, opts Options) Result {
	res := Result{SwitchRef: rec.SwitchRef, DiodeRef: rec.DiodeRef, State: Pending}

	fail := func(format string, args ...any) Result {
		res.State = Unrouted
		res.Reason = fmt.Sprintf(format, args...)
		return res
	}

	sw, err := board.FootprintByReference(rec.SwitchRef)
	if err != nil {
		return fail("switch footprint: %v", err)
	}
	diode, err := board.FootprintByReference(rec.DiodeRef)
	if err != nil {
		return fail("diode footprint: %v", err)
	}

	swPad, ok := sw.PadPosition(anchorPad)
	if !ok {
		return fail("%s has no pad %s", rec.SwitchRef, anchorPad)
	}
	diodePad, ok := diode.PadPosition(anchorPad)
	if !ok {
		return fail("%s has no pad %s", rec.DiodeRef, anchorPad)
	}

	layer := diode.Side().CopperLayer()
	net := 0
	if n, ok := diode.PadNet(anchorPad); ok {
		net = n.Number
	}

	if len(template) > 0 {
		// Clone branch: the operator solved this shape once; commit
		// the transformed copy without collision search.
		points := clonePath(template, diodePad, rec.Rotation)
		prev := diodePad
		for _, p := range points {
			board.AddTrack(prev, p, opts.TrackWidth, layer, net)
			prev = p
		}
		res.State = Cloned
		res.Points = append([]pcb.Position{diodePad}, points...)
		return res
	}

	points := synthesizePath(diodePad, swPad, rec.Rotation)

	// Check every candidate segment before committing any, so an
	// unrouted pair leaves no partial copper behind.
	check := newChecker(board, layer, net, opts)
	for i := 1; i < len(points); i++ {
		if reason, blocked := check.blocked(points[i-1], points[i]); blocked {
			return fail("%s", reason)
		}
	}
	for i := 1; i < len(points); i++ {
		board.AddTrack(points[i-1], points[i], opts.TrackWidth, layer, net)
	}
	res.State = Synthesized
	res.Points = points
	return res
}

// clonePath maps template points (relative to the reference diode
// pad) onto this pair's diode pad, rotating by the pair's key angle.
func clonePath(template []pcb.Position, diodePad pcb.Position, angle float64) []pcb.Position {
	points := make([]pcb.Position, len(template))
	for i, t := range template {
		if angle != 0 {
			anchor := toRotatedFrame(diodePad, angle)
			points[i] = fromRotatedFrame(anchor.Add(t), angle)
		} else {
			points[i] = diodePad.Add(t)
		}
	}
	return points
}

// synthesizePath returns the candidate polyline: a single straight
// segment when the pads align on an axis, otherwise a 45-degree
// diagonal from the diode pad to a corner and an orthogonal run to
// the switch pad. For rotated keys the corner is computed in the
// key's rotated frame so segment angles stay on the 45-degree grid
// relative to the key.
func synthesizePath(diodePad, swPad pcb.Position, angle float64) []pcb.Position {
	if samePoint(diodePad, swPad) {
		return []pcb.Position{diodePad, swPad}
	}
	if math.Abs(diodePad.X-swPad.X) < coincident || math.Abs(diodePad.Y-swPad.Y) < coincident {
		return []pcb.Position{diodePad, swPad}
	}

	var corner pcb.Position
	if angle != 0 {
		dr := toRotatedFrame(diodePad, angle)
		sr := toRotatedFrame(swPad, angle)
		corner = fromRotatedFrame(routeCorner(dr, sr), angle)
	} else {
		corner = routeCorner(diodePad, swPad)
	}
	return []pcb.Position{diodePad, corner, swPad}
}

// routeCorner picks the bend point: the diagonal leaves the diode pad
// and consumes the smaller axis delta, the remaining segment runs
// straight to the switch pad.
func routeCorner(diodePad, swPad pcb.Position) pcb.Position {
	xDiff := diodePad.X - swPad.X
	yDiff := diodePad.Y - swPad.Y
	if math.Abs(xDiff) < math.Abs(yDiff) {
		upOrDown := 1.0
		if yDiff > 0 {
			upOrDown = -1
		}
		return pcb.Position{
			X: diodePad.X - xDiff,
			Y: diodePad.Y + upOrDown*math.Abs(xDiff),
		}
	}
	leftOrRight := 1.0
	if xDiff > 0 {
		leftOrRight = -1
	}
	return pcb.Position{
		X: diodePad.X + leftOrRight*math.Abs(yDiff),
		Y: diodePad.Y - yDiff,
	}
}

// toRotatedFrame maps a board point into a coordinate system rotated
// by angle degrees about the origin.
func toRotatedFrame(p pcb.Position, angle float64) pcb.Position {
	rad := angle * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	return pcb.Position{
		X: p.X*cos + p.Y*sin,
		Y: -p.X*sin + p.Y*cos,
	}
}

// fromRotatedFrame is the inverse of toRotatedFrame.
func fromRotatedFrame(p pcb.Position, angle float64) pcb.Position {
	rad := angle * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	return pcb.Position{
		X: p.X*cos - p.Y*sin,
		Y: p.X*sin + p.Y*cos,
	}
}
