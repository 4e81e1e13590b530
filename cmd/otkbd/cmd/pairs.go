package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceKBD/pkg/annotation"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/netlist"
	"github.com/OpenTraceLab/OpenTraceKBD/pkg/kicad/pcb"
)

var (
	pairsNetlist  string
	pairsScheme   string
	pairsStride   int
	pairsKeyFmt   string
	pairsDiodeFmt string
)

var pairsCmd = &cobra.Command{
	Use:   "pairs [board_file]",
	Short: "Preview switch-diode pairing without touching the board",
	Long: `Resolves which diode each switch would be paired with and prints the
result. References come from the board file, or from a netlist export
with --netlist. Nothing is modified.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPairs,
}

func init() {
	rootCmd.AddCommand(pairsCmd)

	f := pairsCmd.Flags()
	f.StringVar(&pairsNetlist, "netlist", "", "netlist export to take component references from")
	f.StringVar(&pairsScheme, "scheme", "shared", "pairing scheme: shared or stride")
	f.IntVar(&pairsStride, "stride", 1, "diode ordinal offset for the stride scheme")
	f.StringVar(&pairsKeyFmt, "key-format", "SW{}", "switch reference template")
	f.StringVar(&pairsDiodeFmt, "diode-format", "D{}", "diode reference template")
}

func runPairs(cmd *cobra.Command, args []string) error {
	var refs []string
	switch {
	case pairsNetlist != "":
		nl, err := netlist.Load(pairsNetlist)
		if err != nil {
			return fmt.Errorf("loading netlist: %w", err)
		}
		refs = nl.ComponentRefs()
	case len(args) == 1:
		board, err := pcb.Load(args[0])
		if err != nil {
			return fmt.Errorf("loading board: %w", err)
		}
		for _, fp := range board.Footprints {
			refs = append(refs, fp.Reference)
		}
	default:
		return errors.New("need a board file or --netlist")
	}

	scheme, err := annotation.ParseScheme(pairsScheme)
	if err != nil {
		return err
	}
	resolution, err := annotation.Resolve(refs, scheme, annotation.Options{
		SwitchFormat: pairsKeyFmt,
		DiodeFormat:  pairsDiodeFmt,
		Stride:       pairsStride,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORDINAL\tSWITCH\tDIODE")
	for _, pair := range resolution.Pairs {
		fmt.Fprintf(w, "%d\t%s\t%s\n", pair.Ordinal, pair.SwitchRef, pair.DiodeRef)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, skip := range resolution.Skipped {
		fmt.Printf("skipped %s: %v\n", skip.Ref, skip.Err)
	}
	fmt.Printf("%d pairs, %d skipped\n", len(resolution.Pairs), len(resolution.Skipped))
	return nil
}
