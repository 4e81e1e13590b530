package kle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrFormat is wrapped by every layout parsing failure.
var ErrFormat = errors.New("invalid layout format")

// Parse decodes a layout from either supported encoding. A document
// starting with an object is the internal {meta, keys} form, one
// starting with an array is the editor's raw row form.
func Parse(data []byte) (*Layout, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrFormat)
	}

	switch trimmed[0] {
	case '{':
		return parseInternal(trimmed)
	case '[':
		return parseRaw(trimmed)
	default:
		return nil, fmt.Errorf("%w: expected JSON object or array", ErrFormat)
	}
}

// Load reads and parses a layout file.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open layout: %w", err)
	}
	layout, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return layout, nil
}

func parseInternal(data []byte) (*Layout, error) {
	var layout Layout
	if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return &layout, nil
}

// UnmarshalJSON fills the editor's implicit defaults: keys are one
// unit square and the secondary rectangle matches the primary unless
// stated otherwise.
func (k *Key) UnmarshalJSON(data []byte) error {
	type plain Key
	p := plain{Width: 1, Height: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Width2 == 0 {
		p.Width2 = p.Width
	}
	if p.Height2 == 0 {
		p.Height2 = p.Height
	}
	*k = Key(p)
	return nil
}

// parseRaw replays the editor's row deserialization: strings emit
// keys, objects mutate a running property state. Per-key properties
// (size, secondary rectangle, nub, stepped, decal) reset after each
// key; position advances by key width within a row and by one unit
// between rows; rx/ry start a rotation cluster and reset the running
// position to the cluster anchor.
func parseRaw(data []byte) (*Layout, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	layout := &Layout{}
	cur := Key{Width: 1, Height: 1}
	var clusterX, clusterY float64

	for i, raw := range rows {
		item := bytes.TrimLeft(raw, " \t\r\n")
		if len(item) == 0 {
			return nil, fmt.Errorf("%w: empty row entry", ErrFormat)
		}

		switch item[0] {
		case '{':
			if i != 0 {
				return nil, fmt.Errorf("%w: metadata block allowed only before the first row", ErrFormat)
			}
			if err := json.Unmarshal(item, &layout.Meta); err != nil {
				return nil, fmt.Errorf("%w: metadata: %v", ErrFormat, err)
			}

		case '[':
			var row []json.RawMessage
			if err := json.Unmarshal(item, &row); err != nil {
				return nil, fmt.Errorf("%w: row %d: %v", ErrFormat, i, err)
			}
			for _, entry := range row {
				if err := applyRowEntry(layout, &cur, &clusterX, &clusterY, entry); err != nil {
					return nil, fmt.Errorf("row %d: %w", i, err)
				}
			}
			cur.Y++
			cur.X = cur.RotationX

		default:
			return nil, fmt.Errorf("%w: row %d: expected array or metadata object", ErrFormat, i)
		}
	}

	return layout, nil
}

func applyRowEntry(layout *Layout, cur *Key, clusterX, clusterY *float64, raw json.RawMessage) error {
	entry := bytes.TrimLeft(raw, " \t\r\n")

	if entry[0] == '"' {
		var label string
		if err := json.Unmarshal(entry, &label); err != nil {
			return fmt.Errorf("%w: key label: %v", ErrFormat, err)
		}
		key := *cur
		if key.Width2 == 0 {
			key.Width2 = key.Width
		}
		if key.Height2 == 0 {
			key.Height2 = key.Height
		}
		if label != "" {
			key.Labels = strings.Split(label, "\n")
		}
		layout.Keys = append(layout.Keys, key)

		// Advance and reset per-key state; sticky properties
		// (rotation, ghost, profile, color) carry over.
		cur.X += cur.Width
		cur.Width, cur.Height = 1, 1
		cur.X2, cur.Y2, cur.Width2, cur.Height2 = 0, 0, 0, 0
		cur.Nub, cur.Stepped, cur.Decal = false, false, false
		return nil
	}

	var props map[string]json.RawMessage
	if err := json.Unmarshal(entry, &props); err != nil {
		return fmt.Errorf("%w: key properties: %v", ErrFormat, err)
	}

	number := func(name string) (float64, bool, error) {
		raw, ok := props[name]
		if !ok {
			return 0, false, nil
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0, false, fmt.Errorf("%w: property %q must be numeric", ErrFormat, name)
		}
		return v, true, nil
	}
	boolean := func(name string, dst *bool) error {
		raw, ok := props[name]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%w: property %q must be boolean", ErrFormat, name)
		}
		return nil
	}

	if v, ok, err := number("r"); err != nil {
		return err
	} else if ok {
		cur.RotationAngle = v
	}
	if v, ok, err := number("rx"); err != nil {
		return err
	} else if ok {
		cur.RotationX = v
		*clusterX = v
		cur.X, cur.Y = *clusterX, *clusterY
	}
	if v, ok, err := number("ry"); err != nil {
		return err
	} else if ok {
		cur.RotationY = v
		*clusterY = v
		cur.X, cur.Y = *clusterX, *clusterY
	}
	if v, ok, err := number("x"); err != nil {
		return err
	} else if ok {
		cur.X += v
	}
	if v, ok, err := number("y"); err != nil {
		return err
	} else if ok {
		cur.Y += v
	}
	if v, ok, err := number("w"); err != nil {
		return err
	} else if ok {
		cur.Width, cur.Width2 = v, v
	}
	if v, ok, err := number("h"); err != nil {
		return err
	} else if ok {
		cur.Height, cur.Height2 = v, v
	}
	if v, ok, err := number("x2"); err != nil {
		return err
	} else if ok {
		cur.X2 = v
	}
	if v, ok, err := number("y2"); err != nil {
		return err
	} else if ok {
		cur.Y2 = v
	}
	if v, ok, err := number("w2"); err != nil {
		return err
	} else if ok {
		cur.Width2 = v
	}
	if v, ok, err := number("h2"); err != nil {
		return err
	} else if ok {
		cur.Height2 = v
	}
	if err := boolean("n", &cur.Nub); err != nil {
		return err
	}
	if err := boolean("l", &cur.Stepped); err != nil {
		return err
	}
	if err := boolean("d", &cur.Decal); err != nil {
		return err
	}
	if err := boolean("g", &cur.Ghost); err != nil {
		return err
	}
	if raw, ok := props["p"]; ok {
		if err := json.Unmarshal(raw, &cur.Profile); err != nil {
			return fmt.Errorf("%w: property %q must be a string", ErrFormat, "p")
		}
	}
	if raw, ok := props["c"]; ok {
		if err := json.Unmarshal(raw, &cur.Color); err != nil {
			return fmt.Errorf("%w: property %q must be a string", ErrFormat, "c")
		}
	}

	return nil
}
