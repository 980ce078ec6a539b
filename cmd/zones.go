package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/zoning-cli/internal/rules"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List the zone rule catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := initCatalog()
		if err != nil {
			return err
		}
		return printCatalog(cmd.OutOrStdout(), catalog)
	},
}

func init() {
	rootCmd.AddCommand(zonesCmd)
}

func printCatalog(out io.Writer, c *rules.Catalog) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ZONE\tNAME\tMAX OCC %\tFAR\tMIN PERM %\tMAX FLOORS\tMIN SETBACK m")
	for _, p := range c.Zones() {
		fmt.Fprintf(w, "%s\t%s\t%.0f\t%.2f\t%.0f\t%d\t%.2f\n",
			p.Zone, p.Name, p.MaxOccupancyRate, p.BaseFloorAreaRatio, p.MinPermeabilityRate, p.MaxFloors, p.MinFrontSetback)
	}
	fb := c.Fallback()
	fmt.Fprintf(w, "%s\t%s\t%.0f\t%.2f\t%.0f\t%d\t%.2f\n",
		"(default)", "unrecognized zones", fb.MaxOccupancyRate, fb.BaseFloorAreaRatio, fb.MinPermeabilityRate, fb.MaxFloors, fb.MinFrontSetback)
	return w.Flush()
}
