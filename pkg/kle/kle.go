// Package kle models keyboard layouts exported from the KLE layout
// editor. Both published encodings are accepted: the editor's internal
// object form with an explicit key list, and the raw row form where a
// running property state is mutated between keys.
//
// Keys stay in layout units (one unit per key pitch); scaling to board
// millimeters belongs to the placement layer.
package kle

// Key is one key of a layout. X/Y locate the top-left corner of the
// key's primary rectangle in layout units; the secondary rectangle
// (X2/Y2/Width2/Height2) describes non-rectangular caps such as the
// ISO enter. Rotation is a signed angle about the explicit
// (RotationX, RotationY) anchor, not about the key's own center, so
// that multi-key clusters rotate as one block.
type Key struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	X2      float64 `json:"x2"`
	Y2      float64 `json:"y2"`
	Width2  float64 `json:"width2"`
	Height2 float64 `json:"height2"`

	RotationX     float64 `json:"rotation_x"`
	RotationY     float64 `json:"rotation_y"`
	RotationAngle float64 `json:"rotation_angle"`

	Labels  []string `json:"labels,omitempty"`
	Color   string   `json:"color,omitempty"`
	Profile string   `json:"profile,omitempty"`

	Decal   bool `json:"decal"`
	Ghost   bool `json:"ghost"`
	Stepped bool `json:"stepped"`
	Nub     bool `json:"nub"`
}

// Metadata is the layout-level information block.
type Metadata struct {
	Author    string `json:"author,omitempty"`
	Backcolor string `json:"backcolor,omitempty"`
	Name      string `json:"name,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Layout is an ordered key sequence plus metadata. Key order is the
// order the layout was authored in and is load-bearing: placement
// joins keys to schematic pairs by index.
type Layout struct {
	Meta Metadata `json:"meta"`
	Keys []Key    `json:"keys"`
}

// CenterX returns the x coordinate of the primary rectangle's center.
func (k Key) CenterX() float64 { return k.X + k.Width/2 }

// CenterY returns the y coordinate of the primary rectangle's center.
func (k Key) CenterY() float64 { return k.Y + k.Height/2 }

// IsISOEnter reports whether the key has the ISO enter shape, the one
// non-rectangular cap that changes stabilizer orientation.
func (k Key) IsISOEnter() bool {
	return k.Width == 1.25 && k.Height == 2 && k.Width2 == 1.5 && k.Height2 == 1
}
