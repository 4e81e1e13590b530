package pcb

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/sexp"
)

// ErrNotFound is returned when a referenced board element does not
// exist.
var ErrNotFound = errors.New("not found")

// Board is a KiCad PCB document: the typed view used by placement and
// routing plus the full source tree, so saving reproduces everything
// the view does not model (zones, setup, groups, plot settings).
type Board struct {
	Version    int
	Generator  string
	Thickness  float64
	Layers     []Layer
	Nets       []Net
	Footprints []*Footprint
	Tracks     []*Track
	Vias       []*Via
	Outline    []*Graphic // board-level graphics on Edge.Cuts

	root    *sexp.List
	uuidKey string // "uuid" or "tstamp", matching the file's own vintage
}

// Track is a straight copper segment.
type Track struct {
	Start     Position
	End       Position
	Width     float64
	Layer     string
	NetNumber int
	Locked    bool

	node *sexp.List
}

// Via is a plated through connection between copper layers.
type Via struct {
	Position  Position
	Size      float64
	Drill     float64
	Layers    LayerSet
	NetNumber int

	node *sexp.List
}

// FootprintByReference returns the footprint with the given reference
// designator.
func (b *Board) FootprintByReference(ref string) (*Footprint, error) {
	if fp := b.FindFootprint(ref); fp != nil {
		return fp, nil
	}
	return nil, fmt.Errorf("footprint %q: %w", ref, ErrNotFound)
}

// FindFootprint returns the footprint with the given reference, or nil.
func (b *Board) FindFootprint(ref string) *Footprint {
	for _, fp := range b.Footprints {
		if fp.Reference == ref {
			return fp
		}
	}
	return nil
}

// NetByName returns the net with the given name.
func (b *Board) NetByName(name string) (Net, bool) {
	for _, net := range b.Nets {
		if net.Name == name && name != "" {
			return net, true
		}
	}
	return Net{}, false
}

// NetByNumber returns the net with the given number.
func (b *Board) NetByNumber(number int) (Net, bool) {
	for _, net := range b.Nets {
		if net.Number == number {
			return net, true
		}
	}
	return Net{}, false
}

// TracksOnNet returns every track segment assigned to the net.
func (b *Board) TracksOnNet(number int) []*Track {
	var out []*Track
	for _, t := range b.Tracks {
		if t.NetNumber == number {
			out = append(out, t)
		}
	}
	return out
}

// AddTrack creates a copper segment and appends it to the document.
func (b *Board) AddTrack(start, end Position, width float64, layer string, net int) *Track {
	track := &Track{
		Start:     start,
		End:       end,
		Width:     width,
		Layer:     layer,
		NetNumber: net,
	}

	if b.root != nil {
		node := sexp.NewList("segment",
			sexp.NewList("start", sexp.Float(start.X), sexp.Float(start.Y)),
			sexp.NewList("end", sexp.Float(end.X), sexp.Float(end.Y)),
			sexp.NewList("width", sexp.Float(width)),
			sexp.NewList("layer", sexp.Str(layer)),
			sexp.NewList("net", sexp.Int(net)),
			sexp.NewList(b.uuidNodeName(), sexp.Str(uuid.NewString())),
		)
		b.root.Append(node)
		track.node = node
	}

	b.Tracks = append(b.Tracks, track)
	return track
}

// RemoveTrack deletes a segment from the board and the document.
func (b *Board) RemoveTrack(track *Track) bool {
	for i, t := range b.Tracks {
		if t == track {
			b.Tracks = append(b.Tracks[:i], b.Tracks[i+1:]...)
			if b.root != nil && track.node != nil {
				b.root.Remove(track.node)
			}
			return true
		}
	}
	return false
}

// uuidNodeName picks the identifier key new elements should carry:
// whatever the file already uses, else by format vintage. KiCad
// renamed tstamp to uuid in the 8.0 format.
func (b *Board) uuidNodeName() string {
	if b.uuidKey != "" {
		return b.uuidKey
	}
	if b.Version >= 20240101 {
		b.uuidKey = "uuid"
	} else {
		b.uuidKey = "tstamp"
	}
	return b.uuidKey
}

// BBox returns the extent of the board outline, or of all footprints
// when no outline is drawn yet.
func (b *Board) BBox() BoundingBox {
	var bb BoundingBox
	found := false
	expand := func(p Position) {
		if !found {
			bb = NewBoundingBox(p)
			found = true
		} else {
			bb = bb.Expand(p)
		}
	}

	for _, g := range b.Outline {
		for _, p := range g.extents() {
			expand(p)
		}
	}
	if found {
		return bb
	}

	for _, fp := range b.Footprints {
		box := fp.BBox()
		expand(box.Min)
		expand(box.Max)
	}
	for _, t := range b.Tracks {
		expand(t.Start)
		expand(t.End)
	}
	return bb
}
