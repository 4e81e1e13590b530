// Package placer turns layout keys and annotation pairs into absolute
// footprint positions on the board. It owns the layout-unit to
// millimeter scaling, the rotation about per-key cluster anchors, and
// the diode placement policies.
package placer

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/annotation"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/pcb"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kle"
)

// ErrCountMismatch is returned when layout key and annotation pair
// counts differ. The positional join is undefined then, so the run
// aborts before touching the board.
var ErrCountMismatch = errors.New("layout key and annotation pair counts differ")

// Board is the placement-facing view of the board document. The pcb
// package's Board satisfies it; tests supply synthetic boards.
type Board interface {
	// FootprintByReference returns the footprint with the given
	// reference, wrapping pcb.ErrNotFound when absent.
	FootprintByReference(ref string) (*pcb.Footprint, error)
}

// Pitch is the center-to-center key spacing in millimeters per layout
// unit.
type Pitch struct {
	X float64
	Y float64
}

// Common switch pitch presets.
var (
	PitchMX   = Pitch{X: 19.05, Y: 19.05}
	PitchChoc = Pitch{X: 18, Y: 17}
	PitchCfx  = Pitch{X: 17.05, Y: 17.05}
)

// Position is a diode placement rule: offset from the switch in the
// unrotated key frame, absolute orientation, and board side.
type Position struct {
	Offset      pcb.Position
	Orientation float64
	Side        pcb.Side
}

// DefaultDiodePosition places the diode below-right of the switch
// center on the back side, the arrangement that clears common MX
// switch footprints. A product constant, not derived from libraries.
func DefaultDiodePosition() Position {
	return Position{
		Offset:      pcb.Position{X: 5.08, Y: 3.03},
		Orientation: 90,
		Side:        pcb.SideBack,
	}
}

// DiodePolicy selects how diode positions are derived.
type DiodePolicy int

const (
	// DiodeDefault applies the configured fixed offset to every pair.
	DiodeDefault DiodePolicy = iota

	// DiodeCurrent reads the first pair's user-placed diode offset
	// and replicates it; the first pair itself is left untouched.
	DiodeCurrent

	// DiodeSkip leaves every diode where it is.
	DiodeSkip
)

func (p DiodePolicy) String() string {
	switch p {
	case DiodeCurrent:
		return "current"
	case DiodeSkip:
		return "skip"
	default:
		return "default"
	}
}

// Options configures a placement run.
type Options struct {
	Pitch            Pitch
	Origin           pcb.Position // board position of layout coordinate (0, 0)
	Policy           DiodePolicy
	Diode            Position // used by DiodeDefault
	StabilizerFormat string   // reference template, "" disables stabilizer placement
	Logger           *log.Logger
}

// DefaultOptions returns MX pitch, the conventional (25, 25) board
// origin, and the default diode rule.
func DefaultOptions() Options {
	return Options{
		Pitch:            PitchMX,
		Origin:           pcb.Position{X: 25, Y: 25},
		Diode:            DefaultDiodePosition(),
		StabilizerFormat: "ST{}",
	}
}

func (o *Options) logger() *log.Logger {
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o.Logger
}

// Record is the placement outcome for one switch/diode pair, in pair
// order. Rotation is the layout angle (clockwise positive on screen);
// DiodeRotation is the footprint orientation as stored on the board.
type Record struct {
	SwitchRef     string
	DiodeRef      string
	Position      pcb.Position
	Rotation      float64
	DiodePosition pcb.Position
	DiodeRotation float64
	DiodePlaced   bool
}

// CurrentDiodePosition reads the relative transform between a
// user-placed diode and its switch, for replication onto the
// remaining pairs.
func CurrentDiodePosition(board Board, switchRef, diodeRef string) (Position, error) {
	sw, err := board.FootprintByReference(switchRef)
	if err != nil {
		return Position{}, err
	}
	d, err := board.FootprintByReference(diodeRef)
	if err != nil {
		return Position{}, err
	}
	return Position{
		Offset:      d.Position.Sub(sw.Position),
		Orientation: d.Orientation,
		Side:        d.Side(),
	}, nil
}

type placement struct {
	key        kle.Key
	pair       annotation.Pair
	sw         *pcb.Footprint
	diode      *pcb.Footprint
	stabilizer *pcb.Footprint
}

// Place positions every switch (and diode, per policy) according to
// the layout. Keys marked as decals are dropped first and consume no
// pair. All footprints are resolved before the first mutation, so a
// missing reference or a count mismatch leaves the board untouched.
func Place(board Board, keys []kle.Key, pairs []annotation.Pair, opts Options) ([]Record, error) {
	logger := opts.logger()

	active := make([]kle.Key, 0, len(keys))
	for _, key := range keys {
		if key.Decal {
			logger.Debug("skipping decal key", "x", key.X, "y", key.Y)
			continue
		}
		active = append(active, key)
	}

	if len(active) != len(pairs) {
		return nil, fmt.Errorf("%d keys, %d pairs: %w", len(active), len(pairs), ErrCountMismatch)
	}
	if len(active) == 0 {
		return nil, nil
	}

	placements, err := resolve(board, active, pairs, opts)
	if err != nil {
		return nil, err
	}

	diode := opts.Diode
	if opts.Policy == DiodeCurrent {
		diode, err = CurrentDiodePosition(board, pairs[0].SwitchRef, pairs[0].DiodeRef)
		if err != nil {
			return nil, fmt.Errorf("capture reference pair: %w", err)
		}
		logger.Info("captured diode position from reference pair",
			"offset_x", diode.Offset.X, "offset_y", diode.Offset.Y,
			"orientation", diode.Orientation, "side", diode.Side)
	}

	records := make([]Record, 0, len(placements))
	for i, p := range placements {
		if opts.Policy == DiodeCurrent && i == 0 {
			// The reference pair stays exactly where the user put it.
			records = append(records, record(p))
			continue
		}
		apply(p, diode, opts, logger)
		records = append(records, record(p))
	}

	return records, nil
}

// resolve looks up every footprint a run will touch before any of
// them moves.
func resolve(board Board, keys []kle.Key, pairs []annotation.Pair, opts Options) ([]placement, error) {
	placements := make([]placement, len(pairs))
	for i, pair := range pairs {
		p := placement{key: keys[i], pair: pair}

		var err error
		if p.sw, err = board.FootprintByReference(pair.SwitchRef); err != nil {
			return nil, err
		}

		if opts.Policy != DiodeSkip {
			if p.diode, err = board.FootprintByReference(pair.DiodeRef); err != nil {
				return nil, err
			}
		}

		if opts.StabilizerFormat != "" {
			ref := annotation.Format(opts.StabilizerFormat, pair.Ordinal)
			p.stabilizer, err = board.FootprintByReference(ref)
			if err != nil && !errors.Is(err, pcb.ErrNotFound) {
				return nil, err
			}
		}

		placements[i] = p
	}
	return placements, nil
}

func apply(p placement, diode Position, opts Options, logger *log.Logger) {
	center := pcb.Position{
		X: opts.Origin.X + opts.Pitch.X*p.key.CenterX(),
		Y: opts.Origin.Y + opts.Pitch.Y*p.key.CenterY(),
	}

	logger.Debug("placing switch", "ref", p.pair.SwitchRef, "x", center.X, "y", center.Y)
	p.sw.SetPosition(center)
	p.sw.SetOrientation(0)

	if p.stabilizer != nil {
		p.stabilizer.SetPosition(center)
		p.stabilizer.SetOrientation(0)
		if p.key.IsISOEnter() {
			// The ISO enter takes the vertical stabilizer.
			p.stabilizer.SetOrientation(90)
		}
	}

	if p.diode != nil {
		p.diode.SetOrientation(0)
		p.diode.SetSide(diode.Side)
		p.diode.SetOrientation(diode.Orientation)
		p.diode.SetPosition(center.Add(diode.Offset))
	}

	if angle := p.key.RotationAngle; angle != 0 {
		anchor := pcb.Position{
			X: opts.Origin.X + opts.Pitch.X*p.key.RotationX,
			Y: opts.Origin.Y + opts.Pitch.Y*p.key.RotationY,
		}
		logger.Debug("rotating pair", "ref", p.pair.SwitchRef,
			"angle", angle, "anchor_x", anchor.X, "anchor_y", anchor.Y)
		p.sw.Rotate(anchor, angle)
		if p.stabilizer != nil {
			p.stabilizer.Rotate(anchor, angle)
		}
		if p.diode != nil {
			p.diode.Rotate(anchor, angle)
		}
	}
}

func record(p placement) Record {
	rec := Record{
		SwitchRef: p.pair.SwitchRef,
		DiodeRef:  p.pair.DiodeRef,
		Position:  p.sw.Position,
		Rotation:  p.key.RotationAngle,
	}
	if p.diode != nil {
		rec.DiodePosition = p.diode.Position
		rec.DiodeRotation = p.diode.Orientation
		rec.DiodePlaced = true
	}
	return rec
}
