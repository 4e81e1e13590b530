package router

import (
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/pcb"
)

// CaptureReference looks for a pre-routed track chain between the
// first pair's diode and switch pads, removes it from the board, and
// returns its corner points relative to the diode pad. The returned
// path is the clone template for Route; nil means no usable reference
// track exists and routing should synthesize instead.
func CaptureReference(board *pcb.Board, switchRef, diodeRef string) ([]pcb.Position, error) {
	sw, err := board.FootprintByReference(switchRef)
	if err != nil {
		return nil, err
	}
	diode, err := board.FootprintByReference(diodeRef)
	if err != nil {
		return nil, err
	}

	swNet, ok1 := sw.PadNet(anchorPad)
	diodeNet, ok2 := diode.PadNet(anchorPad)
	if !ok1 || !ok2 || swNet.Number == 0 || swNet.Number != diodeNet.Number {
		return nil, nil
	}

	remaining := board.TracksOnNet(diodeNet.Number)
	if len(remaining) == 0 {
		return nil, nil
	}

	swPad, ok := sw.PadPosition(anchorPad)
	if !ok {
		return nil, nil
	}
	diodePad, ok := diode.PadPosition(anchorPad)
	if !ok {
		return nil, nil
	}

	// Walk the chain outward from the diode pad, consuming one
	// segment per step. The walked segments leave the board; the
	// clone pass re-creates them for every pair, the first included.
	var points []pcb.Position
	search := diodePad
	for range len(remaining) + 1 {
		advanced := false
		for i, t := range remaining {
			foundStart := samePoint(t.Start, search)
			foundEnd := samePoint(t.End, search)
			if !foundStart && !foundEnd {
				continue
			}
			points = append(points, search)
			if foundStart {
				search = t.End
			} else {
				search = t.Start
			}
			remaining = append(remaining[:i], remaining[i+1:]...)
			board.RemoveTrack(t)
			advanced = true
			break
		}
		if !advanced {
			break
		}
	}

	if len(points) == 0 {
		return nil, nil
	}

	// The first walked point is the diode pad itself; the chain's
	// far end is the switch pad.
	points = points[1:]
	points = append(points, swPad)

	relative := make([]pcb.Position, len(points))
	for i, p := range points {
		relative[i] = p.Sub(diodePad)
	}
	return relative, nil
}
