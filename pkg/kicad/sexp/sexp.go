// Package sexp implements a streaming S-expression reader and writer for
// KiCad files. Unlike general-purpose sexp libraries it keeps quoted and
// bare atoms distinct, so a parsed document can be mutated in place and
// serialized back without losing information the typed layers above do
// not understand.
package sexp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Node is a single S-expression node: an atom or a list.
type Node interface {
	// IsLeaf returns true for atoms.
	IsLeaf() bool

	// String returns the compact single-line form.
	String() string
}

// Symbol is a bare atom (identifier, number, keyword).
type Symbol string

func (s Symbol) IsLeaf() bool   { return true }
func (s Symbol) String() string { return string(s) }

// Str is a quoted atom. The value is stored unquoted; serialization
// restores the quotes and escapes.
type Str string

func (s Str) IsLeaf() bool   { return true }
func (s Str) String() string { return Quote(string(s)) }

// List is a parenthesized sequence of nodes. Items may be mutated;
// the writer serializes whatever the list currently holds.
type List struct {
	Items []Node
}

// NewList builds a list with the given head symbol and items.
func NewList(name string, items ...Node) *List {
	l := &List{Items: make([]Node, 0, len(items)+1)}
	l.Items = append(l.Items, Symbol(name))
	l.Items = append(l.Items, items...)
	return l
}

func (l *List) IsLeaf() bool { return false }

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, item := range l.Items {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(item.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Len returns the number of items including the head.
func (l *List) Len() int { return len(l.Items) }

// At returns the item at index, or nil when out of range.
func (l *List) At(index int) Node {
	if index < 0 || index >= len(l.Items) {
		return nil
	}
	return l.Items[index]
}

// Name returns the head symbol, or "" when the list is empty or its
// head is not a bare symbol.
func (l *List) Name() string {
	if len(l.Items) == 0 {
		return ""
	}
	if sym, ok := l.Items[0].(Symbol); ok {
		return string(sym)
	}
	return ""
}

// Child returns the first sub-list whose head symbol matches name.
func (l *List) Child(name string) *List {
	for _, item := range l.Items {
		if sub, ok := item.(*List); ok && sub.Name() == name {
			return sub
		}
	}
	return nil
}

// Children returns every sub-list whose head symbol matches name.
func (l *List) Children(name string) []*List {
	var out []*List
	for _, item := range l.Items {
		if sub, ok := item.(*List); ok && sub.Name() == name {
			out = append(out, sub)
		}
	}
	return out
}

// Lists returns every sub-list regardless of head.
func (l *List) Lists() []*List {
	var out []*List
	for _, item := range l.Items {
		if sub, ok := item.(*List); ok {
			out = append(out, sub)
		}
	}
	return out
}

// HasFlag reports whether a bare symbol appears among the items after
// the head, as in (segment ... locked).
func (l *List) HasFlag(name string) bool {
	for i, item := range l.Items {
		if i == 0 {
			continue
		}
		if sym, ok := item.(Symbol); ok && string(sym) == name {
			return true
		}
	}
	return false
}

// Text returns the textual value of an atom regardless of quoting.
func Text(n Node) (string, bool) {
	switch v := n.(type) {
	case Symbol:
		return string(v), true
	case Str:
		return string(v), true
	default:
		return "", false
	}
}

// StringAt returns the atom at index as text. Index 0 is the head.
func (l *List) StringAt(index int) (string, error) {
	item := l.At(index)
	if item == nil {
		return "", fmt.Errorf("index %d out of bounds (length %d)", index, len(l.Items))
	}
	if text, ok := Text(item); ok {
		return text, nil
	}
	return "", fmt.Errorf("expected atom at index %d, got list", index)
}

// FloatAt parses the atom at index as a float64.
func (l *List) FloatAt(index int) (float64, error) {
	text, err := l.StringAt(index)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float %q: %w", text, err)
	}
	return val, nil
}

// IntAt parses the atom at index as an int.
func (l *List) IntAt(index int) (int, error) {
	text, err := l.StringAt(index)
	if err != nil {
		return 0, err
	}
	val, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("parse int %q: %w", text, err)
	}
	return val, nil
}

// SetAt replaces the item at index. Out-of-range indexes are ignored.
func (l *List) SetAt(index int, n Node) {
	if index >= 0 && index < len(l.Items) {
		l.Items[index] = n
	}
}

// SetFloatAt replaces the item at index with a bare numeric atom,
// extending the list when the index is exactly one past the end
// (optional trailing fields such as rotation angles).
func (l *List) SetFloatAt(index int, v float64) {
	if index == len(l.Items) {
		l.Items = append(l.Items, Float(v))
		return
	}
	l.SetAt(index, Float(v))
}

// Append adds items to the end of the list.
func (l *List) Append(items ...Node) {
	l.Items = append(l.Items, items...)
}

// InsertBefore inserts an item ahead of the first sub-list whose head
// matches name; falls back to appending when no such child exists.
func (l *List) InsertBefore(name string, n Node) {
	for i, item := range l.Items {
		if sub, ok := item.(*List); ok && sub.Name() == name {
			l.Items = append(l.Items, nil)
			copy(l.Items[i+1:], l.Items[i:])
			l.Items[i] = n
			return
		}
	}
	l.Items = append(l.Items, n)
}

// Remove deletes the first item identical to n. Returns false when n
// is not a direct child.
func (l *List) Remove(n Node) bool {
	for i, item := range l.Items {
		if item == n {
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveChild deletes the first sub-list whose head matches name.
func (l *List) RemoveChild(name string) bool {
	if sub := l.Child(name); sub != nil {
		return l.Remove(sub)
	}
	return false
}

// FormatFloat renders a float the way KiCad does: fixed precision up
// to six decimals with trailing zeros trimmed.
func FormatFloat(v float64) string {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		r = 0 // normalize -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// Float builds a bare numeric atom.
func Float(v float64) Symbol { return Symbol(FormatFloat(v)) }

// Int builds a bare integer atom.
func Int(v int) Symbol { return Symbol(strconv.Itoa(v)) }

// Quote returns the quoted, escaped form of a string value.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
