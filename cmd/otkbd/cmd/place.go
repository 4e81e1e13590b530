package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/annotation"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/netlist"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/pcb"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kle"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/placer"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/router"
)

var (
	placeLayout     string
	placeNetlist    string
	placeRoute      bool
	placeDiode      string
	placeScheme     string
	placeStride     int
	placeKeyFmt     string
	placeDiodeFmt   string
	placeStabFmt    string
	placePitch      string
	placeOrigin     string
	placeTrackWidth float64
	placeClearance  float64
	placeOut        string
	placeReport     string
)

var placeCmd = &cobra.Command{
	Use:   "place <board_file>",
	Short: "Place switches and diodes on the board from a layout",
	Long: `Reads a keyboard-layout-editor layout, pairs each key's switch with
its diode, and moves the footprints into position. With --route the
switch-diode connections and the row/column matrix are routed too.

The diode policy controls diode positions:
  default      fixed offset below-right of the switch, back side
  current      replicate the first pair's hand-placed diode
  skip         leave every diode where it is
  X,Y,DEG,SIDE explicit offset, orientation and side (e.g. 5.08,3.03,90,back)`,
	Args: cobra.ExactArgs(1),
	RunE: runPlace,
}

func init() {
	rootCmd.AddCommand(placeCmd)

	f := placeCmd.Flags()
	f.StringVar(&placeLayout, "layout", "", "keyboard-layout-editor layout file (required)")
	f.StringVar(&placeNetlist, "netlist", "", "netlist export to take component references from")
	f.BoolVar(&placeRoute, "route", false, "route switch-diode pairs and the key matrix")
	f.StringVar(&placeDiode, "diode", "default", "diode policy: default, current, skip, or X,Y,DEG,SIDE")
	f.StringVar(&placeScheme, "scheme", "shared", "pairing scheme: shared or stride")
	f.IntVar(&placeStride, "stride", 1, "diode ordinal offset for the stride scheme")
	f.StringVar(&placeKeyFmt, "key-format", "SW{}", "switch reference template")
	f.StringVar(&placeDiodeFmt, "diode-format", "D{}", "diode reference template")
	f.StringVar(&placeStabFmt, "stabilizer-format", "ST{}", "stabilizer reference template, empty disables")
	f.StringVar(&placePitch, "pitch", "mx", "switch pitch: mx, choc, cfx, or WxH in mm")
	f.StringVar(&placeOrigin, "origin", "25,25", "board position of the layout origin, X,Y in mm")
	f.Float64Var(&placeTrackWidth, "track-width", 0.25, "routed track width in mm")
	f.Float64Var(&placeClearance, "clearance", 0.25, "copper clearance for collision checks in mm")
	f.StringVar(&placeOut, "out", "", "output board file (default: overwrite the input)")
	f.StringVar(&placeReport, "report", "", "write a JSON run report to this file")

	placeCmd.MarkFlagRequired("layout")
}

func runPlace(cmd *cobra.Command, args []string) error {
	board, err := pcb.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading board: %w", err)
	}
	layout, err := kle.Load(placeLayout)
	if err != nil {
		return fmt.Errorf("loading layout: %w", err)
	}
	logger.Info("loaded inputs", "board", args[0], "keys", len(layout.Keys))

	resolution, err := resolvePairs(board)
	if err != nil {
		return err
	}

	opts, err := placeOptions()
	if err != nil {
		return err
	}

	records, err := placer.Place(board, layout.Keys, resolution.Pairs, opts)
	if err != nil {
		return fmt.Errorf("placement: %w", err)
	}
	logger.Info("placed switches", "count", len(records), "diode_policy", opts.Policy)

	report := runReport{Board: args[0], Layout: placeLayout}
	for _, rec := range records {
		report.Pairs = append(report.Pairs, pairReport{
			Switch:   rec.SwitchRef,
			Diode:    rec.DiodeRef,
			X:        rec.Position.X,
			Y:        rec.Position.Y,
			Rotation: rec.Rotation,
		})
	}

	if placeRoute {
		routeBoard(board, records, opts.Policy, &report)
	}

	out := placeOut
	if out == "" {
		out = args[0]
	}
	if err := board.Save(out); err != nil {
		return fmt.Errorf("writing board: %w", err)
	}
	logger.Info("board written", "path", out)

	if placeReport != "" {
		if err := writeReport(placeReport, &report); err != nil {
			return err
		}
		logger.Info("report written", "path", placeReport)
	}
	return nil
}

// resolvePairs joins switch and diode references, preferring the
// netlist when given because it names components the board may not
// carry yet.
func resolvePairs(board *pcb.Board) (*annotation.Resolution, error) {
	var refs []string
	if placeNetlist != "" {
		nl, err := netlist.Load(placeNetlist)
		if err != nil {
			return nil, fmt.Errorf("loading netlist: %w", err)
		}
		refs = nl.ComponentRefs()
	} else {
		for _, fp := range board.Footprints {
			refs = append(refs, fp.Reference)
		}
	}

	scheme, err := annotation.ParseScheme(placeScheme)
	if err != nil {
		return nil, err
	}
	resolution, err := annotation.Resolve(refs, scheme, annotation.Options{
		SwitchFormat: placeKeyFmt,
		DiodeFormat:  placeDiodeFmt,
		Stride:       placeStride,
	})
	if err != nil {
		return nil, err
	}
	for _, skip := range resolution.Skipped {
		logger.Warn("switch skipped", "ref", skip.Ref, "reason", skip.Err)
	}
	return resolution, nil
}

func placeOptions() (placer.Options, error) {
	opts := placer.DefaultOptions()
	opts.StabilizerFormat = placeStabFmt
	opts.Logger = logger

	pitch, err := parsePitch(placePitch)
	if err != nil {
		return opts, err
	}
	opts.Pitch = pitch

	origin, err := parseXY(placeOrigin)
	if err != nil {
		return opts, fmt.Errorf("--origin: %w", err)
	}
	opts.Origin = origin

	opts.Policy, opts.Diode, err = parseDiode(placeDiode)
	return opts, err
}

func routeBoard(board *pcb.Board, records []placer.Record, policy placer.DiodePolicy, report *runReport) {
	ropts := router.Options{
		TrackWidth: placeTrackWidth,
		Clearance:  placeClearance,
		Logger:     logger,
	}

	var template []pcb.Position
	if policy == placer.DiodeCurrent && len(records) > 0 {
		var err error
		template, err = router.CaptureReference(board, records[0].SwitchRef, records[0].DiodeRef)
		if err != nil {
			logger.Warn("no reference track captured", "err", err)
		} else if template != nil {
			logger.Info("captured reference track", "corners", len(template))
		}
	}

	results := router.Route(board, records, template, ropts)
	counts := map[router.State]int{}
	for i, res := range results {
		counts[res.State]++
		report.Pairs[i].Routed = res.State.String()
		report.Pairs[i].Reason = res.Reason
	}
	logger.Info("routed pairs",
		"cloned", counts[router.Cloned],
		"synthesized", counts[router.Synthesized],
		"unrouted", counts[router.Unrouted])

	report.MatrixSegments = router.RouteMatrix(board, records, ropts)
	logger.Info("routed matrix", "segments", report.MatrixSegments)

	report.DanglingRemoved = router.RemoveDangling(board)
	if report.DanglingRemoved > 0 {
		logger.Info("removed dangling tracks", "count", report.DanglingRemoved)
	}
}

type runReport struct {
	Board           string       `json:"board"`
	Layout          string       `json:"layout"`
	Pairs           []pairReport `json:"pairs"`
	MatrixSegments  int          `json:"matrix_segments,omitempty"`
	DanglingRemoved int          `json:"dangling_removed,omitempty"`
}

type pairReport struct {
	Switch   string  `json:"switch"`
	Diode    string  `json:"diode"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation,omitempty"`
	Routed   string  `json:"routed,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

func writeReport(path string, report *runReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func parsePitch(s string) (placer.Pitch, error) {
	switch strings.ToLower(s) {
	case "mx", "":
		return placer.PitchMX, nil
	case "choc":
		return placer.PitchChoc, nil
	case "cfx":
		return placer.PitchCfx, nil
	}
	parts := strings.SplitN(s, "x", 2)
	if len(parts) == 2 {
		x, errX := strconv.ParseFloat(parts[0], 64)
		y, errY := strconv.ParseFloat(parts[1], 64)
		if errX == nil && errY == nil && x > 0 && y > 0 {
			return placer.Pitch{X: x, Y: y}, nil
		}
	}
	return placer.Pitch{}, fmt.Errorf("--pitch %q: want mx, choc, cfx, or WxH", s)
}

func parseXY(s string) (pcb.Position, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return pcb.Position{}, fmt.Errorf("%q: want X,Y", s)
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errX != nil || errY != nil {
		return pcb.Position{}, fmt.Errorf("%q: want X,Y", s)
	}
	return pcb.Position{X: x, Y: y}, nil
}

func parseDiode(s string) (placer.DiodePolicy, placer.Position, error) {
	switch strings.ToLower(s) {
	case "default", "":
		return placer.DiodeDefault, placer.DefaultDiodePosition(), nil
	case "current":
		return placer.DiodeCurrent, placer.Position{}, nil
	case "skip":
		return placer.DiodeSkip, placer.Position{}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, placer.Position{}, fmt.Errorf("--diode %q: want default, current, skip, or X,Y,DEG,SIDE", s)
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	deg, errD := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if errX != nil || errY != nil || errD != nil {
		return 0, placer.Position{}, fmt.Errorf("--diode %q: bad number", s)
	}

	var side pcb.Side
	switch strings.ToLower(strings.TrimSpace(parts[3])) {
	case "front":
		side = pcb.SideFront
	case "back":
		side = pcb.SideBack
	default:
		return 0, placer.Position{}, fmt.Errorf("--diode %q: side must be front or back", s)
	}

	return placer.DiodeDefault, placer.Position{
		Offset:      pcb.Position{X: x, Y: y},
		Orientation: deg,
		Side:        side,
	}, nil
}
