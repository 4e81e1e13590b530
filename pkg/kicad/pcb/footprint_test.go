package pcb

import (
	"strings"
	"testing"
)

func TestFootprintSetPosition(t *testing.T) {
	board := parseFixture(t)
	sw := board.FindFootprint("SW1")

	sw.SetPosition(Position{X: 44.05, Y: 28.525})

	if !near(sw.Position.X, 44.05) || !near(sw.Position.Y, 28.525) {
		t.Errorf("model position = %+v", sw.Position)
	}

	// The document node must follow the model.
	at := sw.node.Child("at")
	x, _ := at.FloatAt(1)
	y, _ := at.FloatAt(2)
	if !near(x, 44.05) || !near(y, 28.525) {
		t.Errorf("node position = (%v, %v)", x, y)
	}

	// Pads track the footprint without their offsets changing.
	pos, _ := sw.PadPosition("1")
	if !near(pos.X, 44.05+2.54) || !near(pos.Y, 28.525-5.08) {
		t.Errorf("pad 1 moved to (%v, %v)", pos.X, pos.Y)
	}
}

func TestFootprintSetOrientation(t *testing.T) {
	board := parseFixture(t)
	sw := board.FindFootprint("SW1")

	sw.SetOrientation(-30)

	if !near(sw.Orientation, -30) {
		t.Errorf("orientation = %v, want -30", sw.Orientation)
	}
	angle, _ := sw.node.Child("at").FloatAt(3)
	if !near(angle, -30) {
		t.Errorf("node angle = %v, want -30", angle)
	}

	// Pad angles in the file carry the footprint orientation.
	pad := sw.PadByNumber("1")
	if !near(pad.Angle, -30) {
		t.Errorf("pad angle = %v, want -30", pad.Angle)
	}
	padAngle, _ := pad.node.Child("at").FloatAt(3)
	if !near(padAngle, -30) {
		t.Errorf("pad node angle = %v, want -30", padAngle)
	}

	// Reference text rotates with the footprint.
	for _, prop := range sw.node.Children("property") {
		if name, _ := prop.StringAt(1); name != "Reference" {
			continue
		}
		textAngle, _ := prop.Child("at").FloatAt(3)
		if !near(textAngle, -30) {
			t.Errorf("reference text angle = %v, want -30", textAngle)
		}
	}
}

func TestFootprintRotateAboutOrigin(t *testing.T) {
	tests := []struct {
		name       string
		start      Position
		origin     Position
		deg        float64
		wantPos    Position
		wantOrient float64
	}{
		{
			name:       "quarter turn about remote origin",
			start:      Position{X: 60, Y: 50},
			origin:     Position{X: 50, Y: 50},
			deg:        90,
			wantPos:    Position{X: 50, Y: 60},
			wantOrient: -90,
		},
		{
			name:       "rotation about own position keeps position",
			start:      Position{X: 50, Y: 50},
			origin:     Position{X: 50, Y: 50},
			deg:        15,
			wantPos:    Position{X: 50, Y: 50},
			wantOrient: -15,
		},
		{
			name:       "zero angle is a no-op",
			start:      Position{X: 50, Y: 50},
			origin:     Position{X: 0, Y: 0},
			deg:        0,
			wantPos:    Position{X: 50, Y: 50},
			wantOrient: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := parseFixture(t)
			sw := board.FindFootprint("SW1")
			sw.SetPosition(tt.start)

			sw.Rotate(tt.origin, tt.deg)

			if !near(sw.Position.X, tt.wantPos.X) || !near(sw.Position.Y, tt.wantPos.Y) {
				t.Errorf("position = %+v, want %+v", sw.Position, tt.wantPos)
			}
			if !near(sw.Orientation, tt.wantOrient) {
				t.Errorf("orientation = %v, want %v", sw.Orientation, tt.wantOrient)
			}
		})
	}
}

func TestFootprintSetSide(t *testing.T) {
	board := parseFixture(t)
	d := board.FindFootprint("D1")

	d.SetSide(SideBack)
	if d.Layer != "B.Cu" {
		t.Fatal("SetSide to current side must be a no-op")
	}

	d.SetSide(SideFront)

	if d.Layer != "F.Cu" {
		t.Errorf("layer = %q, want F.Cu", d.Layer)
	}
	if !near(d.Orientation, -90) {
		t.Errorf("orientation = %v, want -90", d.Orientation)
	}

	pad := d.PadByNumber("1")
	if !pad.Layers.Contains("F.Cu") || pad.Layers.Contains("B.Cu") {
		t.Errorf("pad layers = %v, want front side set", pad.Layers)
	}
	if !near(pad.Angle, -90) {
		t.Errorf("pad angle = %v, want -90", pad.Angle)
	}

	layerName, _ := d.node.Child("layer").StringAt(1)
	if layerName != "F.Cu" {
		t.Errorf("node layer = %q, want F.Cu", layerName)
	}

	// Flipping back restores the original geometry.
	d.SetSide(SideBack)
	pos, _ := d.PadPosition("2")
	if !near(pos.X, 55) || !near(pos.Y, 51.35) {
		t.Errorf("pad 2 after double flip at (%v, %v), want (55, 51.35)", pos.X, pos.Y)
	}
}

func TestAddRemoveTrack(t *testing.T) {
	board := parseFixture(t)
	before := len(board.Tracks)

	track := board.AddTrack(Position{X: 50, Y: 50}, Position{X: 52, Y: 52}, 0.25, "F.Cu", 1)

	if len(board.Tracks) != before+1 {
		t.Fatalf("track count = %d, want %d", len(board.Tracks), before+1)
	}
	if track.node == nil {
		t.Fatal("added track has no document node")
	}
	// This fixture predates the 8.0 format, so new elements carry
	// tstamp identifiers like the rest of the file.
	if track.node.Child("tstamp") == nil {
		t.Error("new segment should carry a tstamp identifier")
	}
	if track.node.Child("uuid") != nil {
		t.Error("new segment should not mix uuid into a tstamp file")
	}

	var buf strings.Builder
	if err := board.Write(&buf); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if !strings.Contains(buf.String(), "(start 50 50)") {
		t.Error("serialized document missing the new segment")
	}

	if !board.RemoveTrack(track) {
		t.Fatal("RemoveTrack returned false")
	}
	if len(board.Tracks) != before {
		t.Errorf("track count after removal = %d, want %d", len(board.Tracks), before)
	}

	buf.Reset()
	if err := board.Write(&buf); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if strings.Contains(buf.String(), "(start 50 50)") {
		t.Error("removed segment still serialized")
	}

	if board.RemoveTrack(track) {
		t.Error("second RemoveTrack of same segment returned true")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	board := parseFixture(t)

	sw := board.FindFootprint("SW1")
	sw.SetPosition(Position{X: 44.05, Y: 44.05})
	board.AddTrack(Position{X: 44.05, Y: 44.05}, Position{X: 49.13, Y: 47.08}, 0.25, "B.Cu", 3)

	path := t.TempDir() + "/out.kicad_pcb"
	if err := board.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	sw2 := reloaded.FindFootprint("SW1")
	if sw2 == nil || !near(sw2.Position.X, 44.05) {
		t.Errorf("reloaded SW1 = %+v", sw2)
	}
	if len(reloaded.Tracks) != 2 {
		t.Errorf("reloaded track count = %d, want 2", len(reloaded.Tracks))
	}

	// Content the typed model ignores survives the round trip.
	if reloaded.Tree().Child("setup") == nil {
		t.Error("setup section lost in round trip")
	}
	if reloaded.Tree().Child("paper") == nil {
		t.Error("paper section lost in round trip")
	}
}
