package router

import (
	"testing"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/pcb"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/placer"
)

func columnFixture(sw2 pcb.Position) (*pcb.Board, []placer.Record) {
	board := &pcb.Board{}
	board.Footprints = append(board.Footprints,
		switchAt("SW1", pcb.Position{X: 30, Y: 30}, 1, 10),
		switchAt("SW2", sw2, 1, 11),
	)
	records := []placer.Record{
		{SwitchRef: "SW1", DiodeRef: "D1"},
		{SwitchRef: "SW2", DiodeRef: "D2"},
	}
	return board, records
}

func TestRouteMatrixColumn(t *testing.T) {
	cases := []struct {
		name      string
		sw2       pcb.Position
		wantAdded int
	}{
		// Same x: one straight vertical run.
		{"aligned", pcb.Position{X: 30, Y: 49.05}, 1},
		// Staggered by less than the vertical gap: vertical run plus a
		// 45-degree tail.
		{"staggered", pcb.Position{X: 26, Y: 49.05}, 2},
		// Staggered too far for a single diagonal: skipped.
		{"too far", pcb.Position{X: 0, Y: 49.05}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			board, records := columnFixture(tc.sw2)
			added := RouteMatrix(board, records, DefaultOptions())
			if added != tc.wantAdded {
				t.Fatalf("RouteMatrix() added %d segments, want %d", added, tc.wantAdded)
			}
			if len(board.Tracks) != tc.wantAdded {
				t.Fatalf("board has %d tracks, want %d", len(board.Tracks), tc.wantAdded)
			}
			for _, track := range board.Tracks {
				if track.Layer != "F.Cu" {
					t.Errorf("column track on %s, want F.Cu", track.Layer)
				}
				if track.NetNumber != 1 {
					t.Errorf("column track on net %d, want 1", track.NetNumber)
				}
				if !isOctilinear(track.Start, track.End) {
					t.Errorf("column track off the 45-degree grid: %+v -> %+v", track.Start, track.End)
				}
			}
		})
	}
}

func TestRouteMatrixColumnChain(t *testing.T) {
	// Three aligned switches chain pairwise: two segments total, and
	// the shared endpoints keep every segment anchored.
	board := &pcb.Board{}
	var records []placer.Record
	for i := 0; i < 3; i++ {
		ref := "SW" + string(rune('1'+i))
		board.Footprints = append(board.Footprints,
			switchAt(ref, pcb.Position{X: 30, Y: 30 + 19.05*float64(i)}, 1, 10+i))
		records = append(records, placer.Record{SwitchRef: ref, DiodeRef: "D" + string(rune('1'+i))})
	}

	if added := RouteMatrix(board, records, DefaultOptions()); added != 2 {
		t.Fatalf("RouteMatrix() added %d segments, want 2", added)
	}
	if removed := RemoveDangling(board); removed != 0 {
		t.Errorf("RemoveDangling() dropped %d chained column segments", removed)
	}
}

func TestRouteMatrixRow(t *testing.T) {
	cases := []struct {
		name      string
		d2        pcb.Position
		wantAdded int
	}{
		{"aligned", pcb.Position{X: 57, Y: 40}, 1},
		// Rows only route straight; a vertically offset diode is
		// skipped rather than bent around.
		{"offset", pcb.Position{X: 57, Y: 42}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			board := &pcb.Board{}
			board.Footprints = append(board.Footprints,
				diodeAt("D1", pcb.Position{X: 38, Y: 40}, 2, 10),
				diodeAt("D2", tc.d2, 2, 11),
			)
			records := []placer.Record{
				{SwitchRef: "SW1", DiodeRef: "D1", DiodePlaced: true},
				{SwitchRef: "SW2", DiodeRef: "D2", DiodePlaced: true},
			}

			added := RouteMatrix(board, records, DefaultOptions())
			if added != tc.wantAdded {
				t.Fatalf("RouteMatrix() added %d segments, want %d", added, tc.wantAdded)
			}
			for _, track := range board.Tracks {
				if track.Layer != "B.Cu" {
					t.Errorf("row track on %s, want the diode side B.Cu", track.Layer)
				}
				if track.NetNumber != 2 {
					t.Errorf("row track on net %d, want 2", track.NetNumber)
				}
			}
		})
	}
}

func TestRouteMatrixSkipsUnplacedDiodes(t *testing.T) {
	board := &pcb.Board{}
	board.Footprints = append(board.Footprints,
		diodeAt("D1", pcb.Position{X: 38, Y: 40}, 2, 10),
		diodeAt("D2", pcb.Position{X: 57, Y: 40}, 2, 11),
	)
	records := []placer.Record{
		{SwitchRef: "SW1", DiodeRef: "D1"},
		{SwitchRef: "SW2", DiodeRef: "D2"},
	}

	if added := RouteMatrix(board, records, DefaultOptions()); added != 0 {
		t.Errorf("RouteMatrix() routed %d segments for unplaced diodes, want 0", added)
	}
}

func TestRemoveDangling(t *testing.T) {
	board := &pcb.Board{}
	board.Footprints = append(board.Footprints, &pcb.Footprint{
		Reference: "SW1",
		Layer:     "F.Cu",
		Position:  pcb.Position{X: 10, Y: 10},
		Pads: []*pcb.Pad{{Number: "1", Size: pcb.Size{Width: 2, Height: 2},
			Layers: pcb.LayerSet{"*.Cu"}, NetNumber: 1}},
	})
	board.Vias = append(board.Vias, &pcb.Via{
		Position: pcb.Position{X: 10, Y: 20},
		Layers:   pcb.LayerSet{"F.Cu", "B.Cu"},
	})

	// Pad to via: anchored at both ends, survives.
	kept := board.AddTrack(pcb.Position{X: 10, Y: 10}, pcb.Position{X: 10, Y: 20}, 0.25, "F.Cu", 1)
	// Chain off the pad whose far end connects to nothing: both
	// segments unwind, the second only after the first is gone.
	board.AddTrack(pcb.Position{X: 10, Y: 10}, pcb.Position{X: 15, Y: 10}, 0.25, "F.Cu", 1)
	board.AddTrack(pcb.Position{X: 15, Y: 10}, pcb.Position{X: 20, Y: 10}, 0.25, "F.Cu", 1)

	removed := RemoveDangling(board)
	if removed != 2 {
		t.Fatalf("RemoveDangling() = %d, want 2", removed)
	}
	if len(board.Tracks) != 1 || board.Tracks[0] != kept {
		t.Fatalf("surviving tracks = %d, want only the pad-to-via run", len(board.Tracks))
	}
}
