// Package netlist reads KiCad netlist exports (the s-expression
// format produced by Export Netlist). Only components and nets are
// modeled; design metadata, libparts and libraries are parsed over
// and dropped.
package netlist

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Component is one (comp ...) entry.
type Component struct {
	Ref       string
	Value     string
	Footprint string
}

// Node is one pad-to-net connection.
type Node struct {
	Ref string
	Pin string
}

// Net is one (net ...) entry with its connected pads.
type Net struct {
	Code  int
	Name  string
	Nodes []Node
}

// Netlist is the parsed export.
type Netlist struct {
	Components []Component
	Nets       []Net
}

// ComponentRefs returns every component reference designator in file
// order.
func (n *Netlist) ComponentRefs() []string {
	refs := make([]string, len(n.Components))
	for i, c := range n.Components {
		refs[i] = c.Ref
	}
	return refs
}

// FindComponent returns the component with the given reference.
func (n *Netlist) FindComponent(ref string) (Component, bool) {
	for _, c := range n.Components {
		if c.Ref == ref {
			return c, true
		}
	}
	return Component{}, false
}

// NetOfNode returns the net a component pin connects to.
func (n *Netlist) NetOfNode(ref, pin string) (Net, bool) {
	for _, net := range n.Nets {
		for _, node := range net.Nodes {
			if node.Ref == ref && node.Pin == pin {
				return net, true
			}
		}
	}
	return Net{}, false
}

// Newer exports quote every atom, older ones leave bare atoms
// unquoted; a single catch-all atom rule accepts both.
var netlistLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "Atom", Pattern: `[^\s()"]+`},
})

type file struct {
	Sections []*section `parser:"'(' 'export' @@* ')'"`
}

type section struct {
	Body sectionBody `parser:"'(' @@ ')'"`
}

type sectionBody struct {
	Components []*component `parser:"  'components' @@*"`
	Nets       []*netEntry  `parser:"| 'nets' @@*"`
	Other      *genericList `parser:"| @@"`
}

type component struct {
	Fields []*compField `parser:"'(' 'comp' @@* ')'"`
}

type compField struct {
	Body compFieldBody `parser:"'(' @@ ')'"`
}

type compFieldBody struct {
	Ref       *string      `parser:"  'ref' @(String | Atom)"`
	Value     *string      `parser:"| 'value' @(String | Atom)"`
	Footprint *string      `parser:"| 'footprint' @(String | Atom)"`
	Other     *genericList `parser:"| @@"`
}

type netEntry struct {
	Fields []*netField `parser:"'(' 'net' @@* ')'"`
}

type netField struct {
	Body netFieldBody `parser:"'(' @@ ')'"`
}

type netFieldBody struct {
	Code  *string      `parser:"  'code' @(String | Atom)"`
	Name  *string      `parser:"| 'name' @(String | Atom)"`
	Node  []*nodeField `parser:"| 'node' @@*"`
	Other *genericList `parser:"| @@"`
}

type nodeField struct {
	Body nodeFieldBody `parser:"'(' @@ ')'"`
}

type nodeFieldBody struct {
	Ref   *string      `parser:"  'ref' @(String | Atom)"`
	Pin   *string      `parser:"| 'pin' @(String | Atom)"`
	Other *genericList `parser:"| @@"`
}

// genericList swallows any section the typed grammar does not model:
// a head atom followed by arbitrary nested values.
type genericList struct {
	Head string      `parser:"@Atom"`
	Rest []*anyValue `parser:"@@*"`
}

type anyValue struct {
	Atom *string     `parser:"  @(String | Atom)"`
	List []*anyValue `parser:"| '(' @@* ')'"`
}

var netlistParser = participle.MustBuild[file](
	participle.Lexer(netlistLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// Parse reads a netlist export.
func Parse(r io.Reader) (*Netlist, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parseBytes("netlist", data)
}

// Load reads a netlist export from a file.
func Load(path string) (*Netlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseBytes(path, data)
}

func parseBytes(name string, data []byte) (*Netlist, error) {
	ast, err := netlistParser.ParseBytes(name, data)
	if err != nil {
		return nil, fmt.Errorf("parsing netlist: %w", err)
	}
	return fromAST(ast)
}

func fromAST(ast *file) (*Netlist, error) {
	out := &Netlist{}
	for _, sec := range ast.Sections {
		switch {
		case sec.Body.Components != nil:
			for _, c := range sec.Body.Components {
				out.Components = append(out.Components, c.toComponent())
			}
		case sec.Body.Nets != nil:
			for _, n := range sec.Body.Nets {
				net, err := n.toNet()
				if err != nil {
					return nil, err
				}
				out.Nets = append(out.Nets, net)
			}
		}
	}
	return out, nil
}

func (c *component) toComponent() Component {
	var out Component
	for _, f := range c.Fields {
		switch {
		case f.Body.Ref != nil:
			out.Ref = *f.Body.Ref
		case f.Body.Value != nil:
			out.Value = *f.Body.Value
		case f.Body.Footprint != nil:
			out.Footprint = *f.Body.Footprint
		}
	}
	return out
}

func (n *netEntry) toNet() (Net, error) {
	var out Net
	for _, f := range n.Fields {
		switch {
		case f.Body.Code != nil:
			code, err := strconv.Atoi(*f.Body.Code)
			if err != nil {
				return Net{}, fmt.Errorf("net code %q: %w", *f.Body.Code, err)
			}
			out.Code = code
		case f.Body.Name != nil:
			out.Name = *f.Body.Name
		case f.Body.Node != nil:
			var node Node
			for _, nf := range f.Body.Node {
				switch {
				case nf.Body.Ref != nil:
					node.Ref = *nf.Body.Ref
				case nf.Body.Pin != nil:
					node.Pin = *nf.Body.Pin
				}
			}
			out.Nodes = append(out.Nodes, node)
		}
	}
	return out, nil
}
