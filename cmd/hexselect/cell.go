package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/hexselect/internal/mapper"
	h3mapper "github.com/mohammed-shakir/hexselect/internal/mapper/h3"
)

var cellCmd = &cobra.Command{
	Use:   "cell <h3-index>",
	Short: "Show centroid, boundary, parent and children of an H3 cell",
	Args:  cobra.ExactArgs(1),
	RunE:  runCell,
}

func init() {
	rootCmd.AddCommand(cellCmd)
}

func runCell(cmd *cobra.Command, args []string) error {
	id := args[0]
	var m mapper.Interface = h3mapper.New()
	res, err := m.Resolution(id)
	if err != nil {
		return err
	}
	lat, lng, err := m.CellToLatLng(id)
	if err != nil {
		return err
	}
	ring, err := m.CellToPolygon(id)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "cell        %s\n", id)
	fmt.Fprintf(w, "resolution  %d\n", res)
	fmt.Fprintf(w, "centroid    %.6f, %.6f\n", lat, lng)
	if res > 0 {
		parent, err := m.ToParent(id, res-1)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "parent      %s\n", parent)
	}
	if res < 15 {
		kids, err := m.ToChildren(id, res+1)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "children    %s\n", strings.Join(kids, " "))
	}
	fmt.Fprintln(w, "boundary    (lng, lat)")
	for _, p := range ring {
		fmt.Fprintf(w, "  %.6f, %.6f\n", p[0], p[1])
	}
	return nil
}
