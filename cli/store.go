package cli

import (
	"context"
	"fmt"

	"github.com/kasuganosora/gildedrose/resource"
	"github.com/kasuganosora/gildedrose/shop"
	"github.com/spf13/cobra"
)

func seedCmd(f *rootFlags) *cobra.Command {
	var catalog string

	c := &cobra.Command{
		Use:   "seed",
		Short: "Insert a catalog into the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(f)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			path := catalog
			if path == "" {
				path = a.cfg.Aging.SeedPath
			}
			items, err := resource.LoadCatalog(path)
			if err != nil {
				return err
			}
			n, err := a.shop.Seed(cmd.Context(), items)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d item(s)\n", n)
			return nil
		},
	}
	c.Flags().StringVar(&catalog, "catalog", "", "YAML or JSON catalog (default: aging.seed_path, then the built-in shelf)")
	return c
}

func advanceCmd(f *rootFlags) *cobra.Command {
	var days int

	c := &cobra.Command{
		Use:   "advance",
		Short: "Run the nightly update against the configured database now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			a, err := openApp(f)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			out := cmd.OutOrStdout()
			for i := 0; i < days; i++ {
				run, err := a.shop.AdvanceDay(cmd.Context(), shop.TriggerCLI)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "day %d: %d item(s), %d overdue, run %s\n",
					run.Day, run.ItemCount, run.Overdue, run.RunID)
			}
			return nil
		},
	}
	c.Flags().IntVarP(&days, "days", "d", 1, "number of nightly updates to apply")
	return c
}
