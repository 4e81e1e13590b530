package router

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/pcb"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/placer"
)

var (
	columnNet = regexp.MustCompile(`^COL(\d+)$`)
	rowNet    = regexp.MustCompile(`^ROW(\d+)$`)
)

type matrixPad struct {
	pos   pcb.Position
	net   int
	layer string
}

// RouteMatrix chains the key matrix after pair routing: column nets
// (switch pad 1) connect consecutive switches top to bottom, row nets
// (diode pad 1) connect consecutive diodes left to right. Only
// straight runs and a single trailing 45-degree diagonal are
// attempted; anything else is logged and skipped. Returns the number
// of committed segments.
func RouteMatrix(board *pcb.Board, records []placer.Record, opts Options) int {
	logger := opts.logger()

	columns := map[int][]matrixPad{}
	rows := map[int][]matrixPad{}

	for _, rec := range records {
		if sw, err := board.FootprintByReference(rec.SwitchRef); err == nil {
			if pad, net, ok := matrixAnchor(sw, columnNet); ok {
				columns[net] = append(columns[net], pad)
			} else {
				logger.Warn("switch pad 1 has no column net", "ref", rec.SwitchRef)
			}
		}
		if !rec.DiodePlaced {
			continue
		}
		if diode, err := board.FootprintByReference(rec.DiodeRef); err == nil {
			if pad, net, ok := matrixAnchor(diode, rowNet); ok {
				rows[net] = append(rows[net], pad)
			} else {
				logger.Warn("diode pad 1 has no row net", "ref", rec.DiodeRef)
			}
		}
	}

	added := 0
	for _, number := range sortedKeys(columns) {
		pads := columns[number]
		for i := 1; i < len(pads); i++ {
			added += connectColumn(board, pads[i-1], pads[i], opts)
		}
	}
	for _, number := range sortedKeys(rows) {
		pads := rows[number]
		for i := 1; i < len(pads); i++ {
			added += connectRow(board, pads[i-1], pads[i], opts)
		}
	}
	return added
}

// matrixAnchor returns pad 1's absolute position and net number when
// the net name matches the matrix pattern.
func matrixAnchor(fp *pcb.Footprint, pattern *regexp.Regexp) (matrixPad, int, bool) {
	net, ok := fp.PadNet("1")
	if !ok {
		return matrixPad{}, 0, false
	}
	m := pattern.FindStringSubmatch(net.Name)
	if m == nil {
		return matrixPad{}, 0, false
	}
	number, _ := strconv.Atoi(m[1])
	pos, ok := fp.PadPosition("1")
	if !ok {
		return matrixPad{}, 0, false
	}
	return matrixPad{pos: pos, net: net.Number, layer: fp.Side().CopperLayer()}, number, true
}

// connectColumn links two switch pads: straight when x-aligned, else
// a vertical run followed by a 45-degree tail. Column tracks go on
// the front copper where the switch pads are.
func connectColumn(board *pcb.Board, from, to matrixPad, opts Options) int {
	const layer = "F.Cu"
	logger := opts.logger()

	if samePoint(from.pos, to.pos) {
		return 0
	}
	if sameCoord(from.pos.X, to.pos.X) {
		return commitSegments(board, []pcb.Position{from.pos, to.pos}, layer, from.net, opts)
	}

	yDiff := absDiff(from.pos.Y, to.pos.Y)
	xDiff := absDiff(from.pos.X, to.pos.X)
	run := yDiff - xDiff
	if run <= 0 {
		logger.Warn("column pads too far apart for a 45-degree tail",
			"from_x", from.pos.X, "to_x", to.pos.X)
		return 0
	}
	mid := pcb.Position{X: from.pos.X, Y: from.pos.Y + run}
	return commitSegments(board, []pcb.Position{from.pos, mid, to.pos}, layer, from.net, opts)
}

// connectRow links two diode pads with a straight horizontal run on
// the diode's own side; rows with vertically offset diodes are
// skipped.
func connectRow(board *pcb.Board, from, to matrixPad, opts Options) int {
	logger := opts.logger()

	if samePoint(from.pos, to.pos) {
		return 0
	}
	if !sameCoord(from.pos.Y, to.pos.Y) {
		logger.Warn("row routing needs horizontally aligned diodes",
			"from_y", from.pos.Y, "to_y", to.pos.Y)
		return 0
	}
	return commitSegments(board, []pcb.Position{from.pos, to.pos}, from.layer, from.net, opts)
}

// commitSegments collision-checks a candidate polyline and commits
// it whole, or not at all.
func commitSegments(board *pcb.Board, points []pcb.Position, layer string, net int, opts Options) int {
	check := newChecker(board, layer, net, opts)
	for i := 1; i < len(points); i++ {
		if reason, blocked := check.blocked(points[i-1], points[i]); blocked {
			opts.logger().Warn("matrix segment skipped", "reason", reason)
			return 0
		}
	}
	for i := 1; i < len(points); i++ {
		board.AddTrack(points[i-1], points[i], opts.TrackWidth, layer, net)
	}
	return len(points) - 1
}

// RemoveDangling deletes track segments with an endpoint touching
// neither a pad nor another track, repeating until stable so whole
// orphaned chains unwind. Returns the number of removed segments.
func RemoveDangling(board *pcb.Board) int {
	removed := 0
	for {
		var drop []*pcb.Track
		for _, t := range board.Tracks {
			if !endpointAnchored(board, t, t.Start) || !endpointAnchored(board, t, t.End) {
				drop = append(drop, t)
			}
		}
		if len(drop) == 0 {
			return removed
		}
		for _, t := range drop {
			board.RemoveTrack(t)
			removed++
		}
	}
}

func endpointAnchored(board *pcb.Board, track *pcb.Track, p pcb.Position) bool {
	for _, other := range board.Tracks {
		if other == track || other.Layer != track.Layer {
			continue
		}
		if samePoint(p, other.Start) || samePoint(p, other.End) {
			return true
		}
	}
	for _, via := range board.Vias {
		if via.Layers.Contains(track.Layer) && samePoint(p, via.Position) {
			return true
		}
	}
	for _, fp := range board.Footprints {
		if !fp.BBox().Inflate(coincident).Contains(p) {
			continue
		}
		for _, pad := range fp.Pads {
			if !pad.Layers.Contains(track.Layer) {
				continue
			}
			if padBounds(fp, pad).Inflate(coincident).Contains(p) {
				return true
			}
		}
	}
	return false
}

func sortedKeys(m map[int][]matrixPad) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sameCoord(a, b float64) bool { return absDiff(a, b) < coincident }

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
