package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kasuganosora/gildedrose/resource"
	"github.com/kasuganosora/gildedrose/stock"
	"github.com/spf13/cobra"
)

func simulateCmd() *cobra.Command {
	var days int
	var catalog string
	var format string

	c := &cobra.Command{
		Use:   "simulate",
		Short: "Print how a catalog ages over N days without touching storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			items, err := resource.LoadCatalog(catalog)
			if err != nil {
				return err
			}
			return printForecast(cmd.OutOrStdout(), stock.Forecast(items, days), format)
		},
	}
	c.Flags().IntVarP(&days, "days", "d", 2, "number of nightly updates to simulate")
	c.Flags().StringVar(&catalog, "catalog", "", "YAML or JSON catalog (default: built-in shelf)")
	c.Flags().StringVar(&format, "format", "pretty", "Output format: pretty|json")
	return c
}

func printForecast(w io.Writer, snaps [][]stock.Item, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snaps)
	case "pretty", "":
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	for day, items := range snaps {
		fmt.Fprintf(w, "-------- day %d --------\n", day)
		fmt.Fprintln(w, "name, sellIn, quality")
		for _, it := range items {
			fmt.Fprintf(w, "%s, %d, %d\n", it.Name, it.SellIn, it.Quality)
		}
		fmt.Fprintln(w)
	}
	return nil
}
