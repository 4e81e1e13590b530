package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/pcb"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/render"
)

var (
	renderOut    string
	renderMargin float64
)

var renderCmd = &cobra.Command{
	Use:   "render <board_file>",
	Short: "Render an SVG preview of the board",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	f := renderCmd.Flags()
	f.StringVarP(&renderOut, "out", "o", "", "output SVG file (default: board name with .svg)")
	f.Float64Var(&renderMargin, "margin", 2, "margin around the board extent in mm")
}

func runRender(cmd *cobra.Command, args []string) error {
	board, err := pcb.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading board: %w", err)
	}

	out := renderOut
	if out == "" {
		out = strings.TrimSuffix(args[0], ".kicad_pcb") + ".svg"
	}

	if err := render.SaveSVG(out, board, render.Options{Margin: renderMargin}); err != nil {
		return fmt.Errorf("rendering: %w", err)
	}
	logger.Info("preview written", "path", out,
		"footprints", len(board.Footprints), "tracks", len(board.Tracks))
	return nil
}
