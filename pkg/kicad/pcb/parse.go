package pcb

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/sexp"
)

// MinSupportedVersion is the oldest board format accepted: 20211014,
// the KiCad 6.0 release format.
const MinSupportedVersion = 20211014

// Load reads and parses a board file.
func Load(path string) (*Board, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open board: %w", err)
	}
	defer file.Close()

	board, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return board, nil
}

// Parse reads a board document from r.
func Parse(r io.Reader) (*Board, error) {
	root, err := sexp.ParseOne(r)
	if err != nil {
		return nil, fmt.Errorf("parse board: %w", err)
	}
	return FromTree(root)
}

// FromTree decodes a board from an already parsed document root.
func FromTree(root *sexp.List) (*Board, error) {
	if root.Name() != "kicad_pcb" {
		return nil, fmt.Errorf("not a KiCad PCB file: expected kicad_pcb, got %q", root.Name())
	}

	board := &Board{root: root}

	if err := parseHeader(board, root); err != nil {
		return nil, err
	}
	detectUUIDKey(board, root)

	if general := root.Child("general"); general != nil {
		if thickness := general.Child("thickness"); thickness != nil {
			board.Thickness, _ = thickness.FloatAt(1)
		}
	}

	if err := parseLayers(board, root); err != nil {
		return nil, err
	}
	parseNets(board, root)

	for _, node := range root.Children("footprint") {
		fp, err := parseFootprint(node)
		if err != nil {
			return nil, fmt.Errorf("footprint %q: %w", fp.describe(), err)
		}
		board.Footprints = append(board.Footprints, fp)
	}

	for _, node := range root.Children("segment") {
		track, err := parseSegment(node)
		if err != nil {
			return nil, fmt.Errorf("segment: %w", err)
		}
		board.Tracks = append(board.Tracks, track)
	}

	for _, node := range root.Children("via") {
		via, err := parseVia(node)
		if err != nil {
			return nil, fmt.Errorf("via: %w", err)
		}
		board.Vias = append(board.Vias, via)
	}

	for _, name := range []string{"gr_line", "gr_rect", "gr_circle", "gr_arc", "gr_poly"} {
		for _, node := range root.Children(name) {
			g := parseGraphic(node, strings.TrimPrefix(name, "gr_"))
			if g.Layer == "Edge.Cuts" {
				board.Outline = append(board.Outline, g)
			}
		}
	}

	return board, nil
}

// detectUUIDKey learns which identifier key the file already uses so
// elements added later match its vintage.
func detectUUIDKey(board *Board, root *sexp.List) {
	for _, name := range []string{"footprint", "segment", "via", "gr_line"} {
		for _, node := range root.Children(name) {
			if node.Child("uuid") != nil {
				board.uuidKey = "uuid"
				return
			}
			if node.Child("tstamp") != nil {
				board.uuidKey = "tstamp"
				return
			}
		}
	}
}

func parseHeader(board *Board, root *sexp.List) error {
	version := root.Child("version")
	if version == nil {
		return fmt.Errorf("missing version")
	}
	v, err := version.IntAt(1)
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	if v < MinSupportedVersion {
		return fmt.Errorf("unsupported board format %d, need %d (KiCad 6.0) or newer", v, MinSupportedVersion)
	}
	board.Version = v

	board.Generator = "unknown"
	if gen := root.Child("generator"); gen != nil {
		if name, err := gen.StringAt(1); err == nil {
			board.Generator = name
		}
	} else if host := root.Child("host"); host != nil {
		if name, err := host.StringAt(1); err == nil {
			board.Generator = name
		}
	}
	return nil
}

func parseLayers(board *Board, root *sexp.List) error {
	layers := root.Child("layers")
	if layers == nil {
		return fmt.Errorf("missing layers section")
	}
	for _, entry := range layers.Lists() {
		number, err := entry.IntAt(0)
		if err != nil {
			continue
		}
		name, err := entry.StringAt(1)
		if err != nil {
			return fmt.Errorf("layer %d: %w", number, err)
		}
		layer := Layer{Number: number, Name: name}
		layer.Type, _ = entry.StringAt(2)
		board.Layers = append(board.Layers, layer)
	}
	return nil
}

func parseNets(board *Board, root *sexp.List) {
	for _, node := range root.Children("net") {
		number, err := node.IntAt(1)
		if err != nil {
			continue
		}
		name, _ := node.StringAt(2)
		board.Nets = append(board.Nets, Net{Number: number, Name: name})
	}
}

func parseFootprint(node *sexp.List) (*Footprint, error) {
	fp := &Footprint{node: node}

	full, err := node.StringAt(1)
	if err != nil {
		return fp, fmt.Errorf("name: %w", err)
	}
	if lib, name, ok := strings.Cut(full, ":"); ok {
		fp.Library, fp.Name = lib, name
	} else {
		fp.Name = full
	}

	layer := node.Child("layer")
	if layer == nil {
		return fp, fmt.Errorf("missing layer")
	}
	if fp.Layer, err = layer.StringAt(1); err != nil {
		return fp, fmt.Errorf("layer: %w", err)
	}

	at := node.Child("at")
	if at == nil {
		return fp, fmt.Errorf("missing position")
	}
	if fp.Position.X, err = at.FloatAt(1); err != nil {
		return fp, fmt.Errorf("position x: %w", err)
	}
	if fp.Position.Y, err = at.FloatAt(2); err != nil {
		return fp, fmt.Errorf("position y: %w", err)
	}
	if at.Len() > 3 {
		fp.Orientation, _ = at.FloatAt(3)
	}

	// Reference and value: property nodes since the 7.0 format,
	// typed fp_text nodes in 6.0 files.
	for _, prop := range node.Children("property") {
		key, err1 := prop.StringAt(1)
		value, err2 := prop.StringAt(2)
		if err1 != nil || err2 != nil {
			continue
		}
		switch key {
		case "Reference":
			fp.Reference = value
		case "Value":
			fp.Value = value
		}
	}
	for _, text := range node.Children("fp_text") {
		kind, err1 := text.StringAt(1)
		value, err2 := text.StringAt(2)
		if err1 != nil || err2 != nil {
			continue
		}
		switch kind {
		case "reference":
			if fp.Reference == "" {
				fp.Reference = value
			}
		case "value":
			if fp.Value == "" {
				fp.Value = value
			}
		}
	}

	for _, padNode := range node.Children("pad") {
		pad, err := parsePad(padNode)
		if err != nil {
			return fp, fmt.Errorf("pad %q: %w", pad.Number, err)
		}
		fp.Pads = append(fp.Pads, pad)
	}

	for _, name := range []string{"fp_line", "fp_rect", "fp_circle", "fp_arc", "fp_poly"} {
		for _, gNode := range node.Children(name) {
			fp.Graphics = append(fp.Graphics, parseGraphic(gNode, strings.TrimPrefix(name, "fp_")))
		}
	}

	return fp, nil
}

func (f *Footprint) describe() string {
	if f.Reference != "" {
		return f.Reference
	}
	return f.FullName()
}

func parsePad(node *sexp.List) (*Pad, error) {
	pad := &Pad{node: node}

	var err error
	if pad.Number, err = node.StringAt(1); err != nil {
		return pad, fmt.Errorf("number: %w", err)
	}
	if pad.Type, err = node.StringAt(2); err != nil {
		return pad, fmt.Errorf("type: %w", err)
	}
	if pad.Shape, err = node.StringAt(3); err != nil {
		return pad, fmt.Errorf("shape: %w", err)
	}

	at := node.Child("at")
	if at == nil {
		return pad, fmt.Errorf("missing position")
	}
	if pad.Offset.X, err = at.FloatAt(1); err != nil {
		return pad, fmt.Errorf("position x: %w", err)
	}
	if pad.Offset.Y, err = at.FloatAt(2); err != nil {
		return pad, fmt.Errorf("position y: %w", err)
	}
	if at.Len() > 3 {
		pad.Angle, _ = at.FloatAt(3)
	}

	size := node.Child("size")
	if size == nil {
		return pad, fmt.Errorf("missing size")
	}
	if pad.Size.Width, err = size.FloatAt(1); err != nil {
		return pad, fmt.Errorf("size: %w", err)
	}
	if pad.Size.Height, err = size.FloatAt(2); err != nil {
		return pad, fmt.Errorf("size: %w", err)
	}

	if drill := node.Child("drill"); drill != nil {
		// Either (drill d) or (drill oval w h).
		if d, err := drill.FloatAt(1); err == nil {
			pad.Drill = d
		} else if d, err := drill.FloatAt(2); err == nil {
			pad.Drill = d
		}
	}

	layers := node.Child("layers")
	if layers == nil {
		return pad, fmt.Errorf("missing layers")
	}
	for i := 1; i < layers.Len(); i++ {
		if name, err := layers.StringAt(i); err == nil {
			pad.Layers = append(pad.Layers, name)
		}
	}

	if net := node.Child("net"); net != nil {
		pad.NetNumber, _ = net.IntAt(1)
		pad.NetName, _ = net.StringAt(2)
	}

	return pad, nil
}

func parseSegment(node *sexp.List) (*Track, error) {
	track := &Track{node: node, Width: 0.25}

	var err error
	if track.Start, err = parsePoint(node, "start"); err != nil {
		return track, err
	}
	if track.End, err = parsePoint(node, "end"); err != nil {
		return track, err
	}
	if width := node.Child("width"); width != nil {
		if track.Width, err = width.FloatAt(1); err != nil {
			return track, fmt.Errorf("width: %w", err)
		}
	}
	layer := node.Child("layer")
	if layer == nil {
		return track, fmt.Errorf("missing layer")
	}
	if track.Layer, err = layer.StringAt(1); err != nil {
		return track, fmt.Errorf("layer: %w", err)
	}
	if net := node.Child("net"); net != nil {
		track.NetNumber, _ = net.IntAt(1)
	}
	track.Locked = node.HasFlag("locked")

	return track, nil
}

func parseVia(node *sexp.List) (*Via, error) {
	via := &Via{node: node}

	var err error
	if via.Position, err = parsePoint(node, "at"); err != nil {
		return via, err
	}
	if size := node.Child("size"); size != nil {
		via.Size, _ = size.FloatAt(1)
	}
	if drill := node.Child("drill"); drill != nil {
		via.Drill, _ = drill.FloatAt(1)
	}
	if layers := node.Child("layers"); layers != nil {
		for i := 1; i < layers.Len(); i++ {
			if name, err := layers.StringAt(i); err == nil {
				via.Layers = append(via.Layers, name)
			}
		}
	}
	if net := node.Child("net"); net != nil {
		via.NetNumber, _ = net.IntAt(1)
	}

	return via, nil
}

func parsePoint(node *sexp.List, key string) (Position, error) {
	pt := node.Child(key)
	if pt == nil {
		return Position{}, fmt.Errorf("missing %s", key)
	}
	x, err := pt.FloatAt(1)
	if err != nil {
		return Position{}, fmt.Errorf("%s x: %w", key, err)
	}
	y, err := pt.FloatAt(2)
	if err != nil {
		return Position{}, fmt.Errorf("%s y: %w", key, err)
	}
	return Position{X: x, Y: y}, nil
}

func parseGraphic(node *sexp.List, kind string) *Graphic {
	g := &Graphic{Type: kind, node: node}

	if start := node.Child("start"); start != nil {
		g.Start, _ = parsePoint(node, "start")
	}
	if end := node.Child("end"); end != nil {
		g.End, _ = parsePoint(node, "end")
	}
	if center := node.Child("center"); center != nil {
		g.Center, _ = parsePoint(node, "center")
	}
	if mid := node.Child("mid"); mid != nil {
		g.Center, _ = parsePoint(node, "mid")
	}
	if pts := node.Child("pts"); pts != nil {
		for _, xy := range pts.Children("xy") {
			x, err1 := xy.FloatAt(1)
			y, err2 := xy.FloatAt(2)
			if err1 == nil && err2 == nil {
				g.Points = append(g.Points, Position{X: x, Y: y})
			}
		}
	}
	if layer := node.Child("layer"); layer != nil {
		g.Layer, _ = layer.StringAt(1)
	}
	// Stroke width since 7.0, bare width in 6.0 files.
	if stroke := node.Child("stroke"); stroke != nil {
		if width := stroke.Child("width"); width != nil {
			g.Width, _ = width.FloatAt(1)
		}
	} else if width := node.Child("width"); width != nil {
		g.Width, _ = width.FloatAt(1)
	}

	return g
}
