package sexp

import (
	"bufio"
	"io"
	"strings"
)

const indentUnit = "  "

// Write serializes a node in the layout KiCad itself produces: lists
// holding only atoms stay on one line, lists holding sub-lists break
// each child onto its own indented line.
func Write(w io.Writer, n Node) error {
	bw := bufio.NewWriter(w)
	writeNode(bw, n, 0)
	return bw.Flush()
}

// WriteDocument serializes a complete document root followed by a
// trailing newline.
func WriteDocument(w io.Writer, root *List) error {
	bw := bufio.NewWriter(w)
	writeNode(bw, root, 0)
	bw.WriteByte('\n')
	return bw.Flush()
}

func writeNode(w *bufio.Writer, n Node, depth int) {
	list, ok := n.(*List)
	if !ok {
		w.WriteString(n.String())
		return
	}

	if !hasSubList(list) {
		w.WriteString(list.String())
		return
	}

	w.WriteByte('(')

	// Leading atoms share the head line.
	i := 0
	for ; i < len(list.Items); i++ {
		if _, isList := list.Items[i].(*List); isList {
			break
		}
		if i > 0 {
			w.WriteByte(' ')
		}
		w.WriteString(list.Items[i].String())
	}

	childIndent := strings.Repeat(indentUnit, depth+1)
	for ; i < len(list.Items); i++ {
		w.WriteByte('\n')
		w.WriteString(childIndent)
		writeNode(w, list.Items[i], depth+1)
	}

	w.WriteByte('\n')
	w.WriteString(strings.Repeat(indentUnit, depth))
	w.WriteByte(')')
}

func hasSubList(l *List) bool {
	for _, item := range l.Items {
		if _, ok := item.(*List); ok {
			return true
		}
	}
	return false
}
