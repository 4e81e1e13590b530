package router

import (
	"math"
	"strings"
	"testing"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/annotation"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/pcb"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kle"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/placer"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func nearPos(a, b pcb.Position) bool { return near(a.X, b.X) && near(a.Y, b.Y) }

// isOctilinear reports whether a segment direction is on the
// 0/45/90/135 degree grid.
func isOctilinear(a, b pcb.Position) bool {
	dx := math.Abs(a.X - b.X)
	dy := math.Abs(a.Y - b.Y)
	return dx < 1e-6 || dy < 1e-6 || near(dx, dy)
}

// switchAt builds a keyboard switch footprint: pad 1 on the column
// net, pad 2 on the switch/diode net.
func switchAt(ref string, pos pcb.Position, colNet int, pairNet int) *pcb.Footprint {
	return &pcb.Footprint{
		Reference: ref,
		Layer:     "F.Cu",
		Position:  pos,
		Pads: []*pcb.Pad{
			{Number: "1", Offset: pcb.Position{X: 2.54, Y: -5.08}, Size: pcb.Size{Width: 2.2, Height: 2.2},
				Layers: pcb.LayerSet{"*.Cu"}, NetNumber: colNet, NetName: netName(colNet, "COL")},
			{Number: "2", Offset: pcb.Position{X: -3.81, Y: -2.54}, Size: pcb.Size{Width: 2.2, Height: 2.2},
				Layers: pcb.LayerSet{"*.Cu"}, NetNumber: pairNet, NetName: "pair"},
		},
	}
}

// diodeAt builds a diode footprint on the back side: pad 1 on the row
// net, pad 2 on the switch/diode net.
func diodeAt(ref string, pos pcb.Position, rowNet int, pairNet int) *pcb.Footprint {
	return &pcb.Footprint{
		Reference: ref,
		Layer:     "B.Cu",
		Position:  pos,
		Pads: []*pcb.Pad{
			{Number: "1", Offset: pcb.Position{X: -1.65, Y: 0}, Size: pcb.Size{Width: 0.9, Height: 1.2},
				Layers: pcb.LayerSet{"B.Cu"}, NetNumber: rowNet, NetName: netName(rowNet, "ROW")},
			{Number: "2", Offset: pcb.Position{X: 1.65, Y: 0}, Size: pcb.Size{Width: 0.9, Height: 1.2},
				Layers: pcb.LayerSet{"B.Cu"}, NetNumber: pairNet, NetName: "pair"},
		},
	}
}

func netName(n int, prefix string) string {
	if n == 0 {
		return ""
	}
	return prefix + "1"
}

// placedBoard places a single row of n pairs with the default policy
// and returns the board plus the placement records.
func placedBoard(t *testing.T, n int) (*pcb.Board, []placer.Record) {
	t.Helper()

	board := &pcb.Board{}
	keys := make([]kle.Key, n)
	pairs := make([]annotation.Pair, n)
	for i := 0; i < n; i++ {
		pairNet := 10 + i
		board.Footprints = append(board.Footprints,
			switchAt(annotation.Format("SW{}", i+1), pcb.Position{}, 1, pairNet),
			diodeAt(annotation.Format("D{}", i+1), pcb.Position{}, 2, pairNet),
		)
		keys[i] = kle.Key{X: float64(i), Width: 1, Height: 1}
		pairs[i] = annotation.Pair{
			SwitchRef: annotation.Format("SW{}", i+1),
			DiodeRef:  annotation.Format("D{}", i+1),
			Ordinal:   i + 1,
		}
	}

	opts := placer.DefaultOptions()
	opts.StabilizerFormat = ""
	records, err := placer.Place(board, keys, pairs, opts)
	if err != nil {
		t.Fatalf("Place() error: %v", err)
	}
	return board, records
}

func TestRouteSynthesizedRow(t *testing.T) {
	board, records := placedBoard(t, 4)

	results := Route(board, records, nil, DefaultOptions())
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}

	for i, res := range results {
		if res.State != Synthesized {
			t.Errorf("result %d state = %v (%s), want synthesized", i, res.State, res.Reason)
			continue
		}
		if len(res.Points) < 2 {
			t.Errorf("result %d has %d points", i, len(res.Points))
		}
		for j := 1; j < len(res.Points); j++ {
			if !isOctilinear(res.Points[j-1], res.Points[j]) {
				t.Errorf("result %d segment %d off the 45-degree grid: %+v -> %+v",
					i, j, res.Points[j-1], res.Points[j])
			}
		}

		// Path runs diode pad to switch pad on the diode's layer.
		diode, _ := board.FootprintByReference(res.DiodeRef)
		sw, _ := board.FootprintByReference(res.SwitchRef)
		diodePad, _ := diode.PadPosition("2")
		swPad, _ := sw.PadPosition("2")
		if !nearPos(res.Points[0], diodePad) {
			t.Errorf("result %d starts at %+v, want diode pad %+v", i, res.Points[0], diodePad)
		}
		if !nearPos(res.Points[len(res.Points)-1], swPad) {
			t.Errorf("result %d ends at %+v, want switch pad %+v", i, res.Points[len(res.Points)-1], swPad)
		}
	}

	if len(board.Tracks) == 0 {
		t.Error("no tracks committed")
	}
	for _, track := range board.Tracks {
		if track.Layer != "B.Cu" {
			t.Errorf("track on %s, want B.Cu (diodes sit on the back)", track.Layer)
		}
	}
}

func TestRouteStraightWhenAligned(t *testing.T) {
	board := &pcb.Board{}
	sw := switchAt("SW1", pcb.Position{X: 30, Y: 30}, 1, 10)
	diode := diodeAt("D1", pcb.Position{X: 30 - 3.81 - 1.65, Y: 30 - 2.54 + 6}, 2, 10)
	board.Footprints = append(board.Footprints, sw, diode)

	records := []placer.Record{{SwitchRef: "SW1", DiodeRef: "D1", DiodePlaced: true}}
	results := Route(board, records, nil, DefaultOptions())

	if results[0].State != Synthesized {
		t.Fatalf("state = %v (%s), want synthesized", results[0].State, results[0].Reason)
	}
	if len(results[0].Points) != 2 {
		t.Errorf("aligned pads routed with %d points, want 2", len(results[0].Points))
	}
	if len(board.Tracks) != 1 {
		t.Errorf("%d tracks committed, want 1", len(board.Tracks))
	}
}

func TestRouteUnroutedOnCollision(t *testing.T) {
	board := &pcb.Board{}
	sw := switchAt("SW1", pcb.Position{X: 30, Y: 30}, 1, 10)
	diode := diodeAt("D1", pcb.Position{X: 36, Y: 36}, 2, 10)
	board.Footprints = append(board.Footprints, sw, diode)

	// A foreign track cutting across the only candidate path.
	blocker := board.AddTrack(
		pcb.Position{X: 30, Y: 20}, pcb.Position{X: 30, Y: 40}, 0.25, "B.Cu", 99)

	records := []placer.Record{{SwitchRef: "SW1", DiodeRef: "D1", DiodePlaced: true}}
	results := Route(board, records, nil, DefaultOptions())

	if results[0].State != Unrouted {
		t.Fatalf("state = %v, want unrouted", results[0].State)
	}
	if results[0].Reason == "" {
		t.Error("unrouted result carries no reason")
	}
	if len(board.Tracks) != 1 || board.Tracks[0] != blocker {
		t.Errorf("unrouted pair committed copper: %d tracks", len(board.Tracks))
	}
}

func TestRouteBatchContinuesPastFailures(t *testing.T) {
	board, records := placedBoard(t, 3)

	// Block only the middle pair's corridor.
	d2, _ := board.FootprintByReference("D2")
	pad, _ := d2.PadPosition("2")
	board.AddTrack(
		pcb.Position{X: pad.X - 3, Y: pad.Y - 3}, pcb.Position{X: pad.X - 3, Y: pad.Y + 3},
		0.25, "B.Cu", 99)

	results := Route(board, records, nil, DefaultOptions())
	want := []State{Synthesized, Unrouted, Synthesized}
	for i, res := range results {
		if res.State != want[i] {
			t.Errorf("result %d state = %v (%s), want %v", i, res.State, res.Reason, want[i])
		}
	}
}

func TestRouteClonesTemplate(t *testing.T) {
	board, records := placedBoard(t, 3)

	template := []pcb.Position{{X: -2, Y: -2}, {X: -5.96, Y: -2.54}}
	results := Route(board, records, template, DefaultOptions())

	for i, res := range results {
		if res.State != Cloned {
			t.Fatalf("result %d state = %v, want cloned", i, res.State)
		}
		diode, _ := board.FootprintByReference(res.DiodeRef)
		diodePad, _ := diode.PadPosition("2")
		if !nearPos(res.Points[0], diodePad) {
			t.Errorf("result %d clone starts at %+v, want %+v", i, res.Points[0], diodePad)
		}
		for j, rel := range template {
			want := diodePad.Add(rel)
			if !nearPos(res.Points[j+1], want) {
				t.Errorf("result %d point %d = %+v, want %+v", i, j+1, res.Points[j+1], want)
			}
		}
	}

	// One segment per template point per pair.
	if len(board.Tracks) != len(template)*len(records) {
		t.Errorf("%d tracks committed, want %d", len(board.Tracks), len(template)*len(records))
	}
}

func TestClonePathRotated(t *testing.T) {
	diodePad := pcb.Position{X: 50, Y: 40}
	template := []pcb.Position{{X: 3, Y: 0}}

	points := clonePath(template, diodePad, 90)
	// Rotating the frame by 90 degrees turns the template's +x into
	// screen +y at the diode pad.
	want := pcb.Position{X: 50, Y: 43}
	if !nearPos(points[0], want) {
		t.Errorf("rotated clone point = %+v, want %+v", points[0], want)
	}

	if pts := clonePath(template, diodePad, 0); !nearPos(pts[0], pcb.Position{X: 53, Y: 40}) {
		t.Errorf("unrotated clone point = %+v", pts[0])
	}
}

func TestRouteCorner(t *testing.T) {
	cases := []struct {
		name         string
		diode, sw    pcb.Position
		want         pcb.Position
	}{
		{"wide", pcb.Position{X: 6, Y: 3}, pcb.Position{}, pcb.Position{X: 3, Y: 0}},
		{"tall", pcb.Position{X: 3, Y: 6}, pcb.Position{}, pcb.Position{X: 0, Y: 3}},
		{"negative", pcb.Position{X: -6, Y: 3}, pcb.Position{}, pcb.Position{X: -3, Y: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := routeCorner(tc.diode, tc.sw)
			if !nearPos(got, tc.want) {
				t.Errorf("routeCorner(%+v, %+v) = %+v, want %+v", tc.diode, tc.sw, got, tc.want)
			}
			if !isOctilinear(tc.diode, got) || !isOctilinear(got, tc.sw) {
				t.Error("corner breaks the 45-degree grid")
			}
		})
	}
}

func TestCaptureReference(t *testing.T) {
	board := &pcb.Board{
		Nets: []pcb.Net{{Number: 7, Name: "Net-(D1-K)"}},
	}
	sw := &pcb.Footprint{Reference: "SW1", Layer: "F.Cu", Position: pcb.Position{},
		Pads: []*pcb.Pad{{Number: "2", Size: pcb.Size{Width: 2, Height: 2},
			Layers: pcb.LayerSet{"*.Cu"}, NetNumber: 7, NetName: "Net-(D1-K)"}}}
	diode := &pcb.Footprint{Reference: "D1", Layer: "B.Cu", Position: pcb.Position{X: 5, Y: 3},
		Pads: []*pcb.Pad{{Number: "2", Size: pcb.Size{Width: 1, Height: 1},
			Layers: pcb.LayerSet{"B.Cu"}, NetNumber: 7, NetName: "Net-(D1-K)"}}}
	board.Footprints = append(board.Footprints, sw, diode)

	board.AddTrack(pcb.Position{X: 5, Y: 3}, pcb.Position{X: 2, Y: 0}, 0.25, "B.Cu", 7)
	board.AddTrack(pcb.Position{X: 2, Y: 0}, pcb.Position{X: 0, Y: 0}, 0.25, "B.Cu", 7)

	template, err := CaptureReference(board, "SW1", "D1")
	if err != nil {
		t.Fatalf("CaptureReference() error: %v", err)
	}
	want := []pcb.Position{{X: -3, Y: -3}, {X: -5, Y: -3}}
	if len(template) != len(want) {
		t.Fatalf("template = %+v, want %+v", template, want)
	}
	for i := range want {
		if !nearPos(template[i], want[i]) {
			t.Errorf("template[%d] = %+v, want %+v", i, template[i], want[i])
		}
	}

	if len(board.Tracks) != 0 {
		t.Errorf("captured tracks not removed: %d left", len(board.Tracks))
	}
}

func TestCaptureReferenceNoTrack(t *testing.T) {
	board, _ := placedBoard(t, 1)

	template, err := CaptureReference(board, "SW1", "D1")
	if err != nil {
		t.Fatalf("CaptureReference() error: %v", err)
	}
	if template != nil {
		t.Errorf("template = %+v, want nil for unrouted reference pair", template)
	}
}

func TestRouteMissingFootprint(t *testing.T) {
	board := &pcb.Board{}
	records := []placer.Record{{SwitchRef: "SW9", DiodeRef: "D9"}}

	results := Route(board, records, nil, DefaultOptions())
	if results[0].State != Unrouted {
		t.Fatalf("state = %v, want unrouted", results[0].State)
	}
	if !strings.Contains(results[0].Reason, "SW9") {
		t.Errorf("reason %q does not name the missing footprint", results[0].Reason)
	}
}
