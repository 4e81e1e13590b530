package pcb

import (
	"fmt"
	"io"
	"os"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/sexp"
)

// Write serializes the board document to w. Boards built without a
// source tree (synthetic test boards) cannot be serialized.
func (b *Board) Write(w io.Writer) error {
	if b.root == nil {
		return fmt.Errorf("board has no document tree to write")
	}
	return sexp.WriteDocument(w, b.root)
}

// Save writes the board document to a file.
func (b *Board) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create board file: %w", err)
	}

	if err := b.Write(file); err != nil {
		file.Close()
		return fmt.Errorf("write board: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close board file: %w", err)
	}
	return nil
}

// Tree exposes the underlying document root for callers that need to
// inspect content the typed model does not cover.
func (b *Board) Tree() *sexp.List {
	return b.root
}
